package dummydb

import (
	"context"
	"sort"

	"github.com/guigasprogramador/oneeduca/core/course"
)

type courseRepository struct {
	db *DB
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *DB) course.Repository {
	return &courseRepository{db: db}
}

func (repo *courseRepository) CreateCourse(_ context.Context, c course.Course) (course.Course, error) {
	t := repo.db.course
	t.Lock()
	defer t.Unlock()
	t.courses[c.ID] = &c
	return c, nil
}

func (repo *courseRepository) GetCourse(_ context.Context, id string) (course.Course, error) {
	if err := repo.db.hit(OpGetCourse); err != nil {
		return course.Course{}, err
	}
	t := repo.db.course
	t.RLock()
	defer t.RUnlock()
	if c, ok := t.courses[id]; ok {
		return *c, nil
	}
	return course.Course{}, course.ErrNotFound
}

func (repo *courseRepository) ListCourses(_ context.Context) ([]course.Course, error) {
	t := repo.db.course
	t.RLock()
	defer t.RUnlock()
	courses := make([]course.Course, 0, len(t.courses))
	for _, c := range t.courses {
		courses = append(courses, *c)
	}
	sort.Slice(courses, func(i, j int) bool { return courses[i].CreatedAt.Before(courses[j].CreatedAt) })
	return courses, nil
}

func (repo *courseRepository) CreateModule(_ context.Context, m course.Module) (course.Module, error) {
	t := repo.db.course
	t.Lock()
	defer t.Unlock()
	if _, ok := t.courses[m.CourseID]; !ok {
		return course.Module{}, course.ErrNotFound
	}
	t.modules[m.ID] = &m
	return m, nil
}

func (repo *courseRepository) GetModule(_ context.Context, id string) (course.Module, error) {
	t := repo.db.course
	t.RLock()
	defer t.RUnlock()
	if m, ok := t.modules[id]; ok {
		return *m, nil
	}
	return course.Module{}, course.ErrModuleNotFound
}

func (repo *courseRepository) ListModules(_ context.Context, courseID string) ([]course.Module, error) {
	if err := repo.db.hit(OpListModules); err != nil {
		return nil, err
	}
	t := repo.db.course
	t.RLock()
	defer t.RUnlock()
	modules := make([]course.Module, 0)
	for _, m := range t.modules {
		if m.CourseID == courseID {
			modules = append(modules, *m)
		}
	}
	sort.Slice(modules, func(i, j int) bool { return modules[i].Position < modules[j].Position })
	return modules, nil
}

func (repo *courseRepository) CreateLesson(_ context.Context, l course.Lesson) (course.Lesson, error) {
	t := repo.db.course
	t.Lock()
	defer t.Unlock()
	if _, ok := t.modules[l.ModuleID]; !ok {
		return course.Lesson{}, course.ErrModuleNotFound
	}
	t.lessons[l.ID] = &l
	return l, nil
}

func (repo *courseRepository) GetLesson(_ context.Context, id string) (course.Lesson, error) {
	t := repo.db.course
	t.RLock()
	defer t.RUnlock()
	if l, ok := t.lessons[id]; ok {
		return *l, nil
	}
	return course.Lesson{}, course.ErrLessonNotFound
}

func (repo *courseRepository) ListLessons(_ context.Context, moduleIDs ...string) ([]course.Lesson, error) {
	t := repo.db.course
	t.RLock()
	defer t.RUnlock()
	wanted := toSet(moduleIDs)
	lessons := make([]course.Lesson, 0)
	for _, l := range t.lessons {
		if _, ok := wanted[l.ModuleID]; ok {
			lessons = append(lessons, *l)
		}
	}
	sort.Slice(lessons, func(i, j int) bool { return lessons[i].Position < lessons[j].Position })
	return lessons, nil
}

func (repo *courseRepository) CreateEnrollment(_ context.Context, e course.Enrollment) (course.Enrollment, error) {
	t := repo.db.course
	t.Lock()
	defer t.Unlock()
	key := [2]string{e.LearnerID, e.CourseID}
	if _, ok := t.enrollments[key]; ok {
		return course.Enrollment{}, course.ErrAlreadyEnrolled
	}
	t.enrollments[key] = &e
	return e, nil
}

func (repo *courseRepository) FindEnrollment(_ context.Context, learnerID, courseID string) (course.Enrollment, error) {
	if err := repo.db.hit(OpFindEnrollment); err != nil {
		return course.Enrollment{}, err
	}
	t := repo.db.course
	t.RLock()
	defer t.RUnlock()
	if e, ok := t.enrollments[[2]string{learnerID, courseID}]; ok {
		return *e, nil
	}
	return course.Enrollment{}, course.ErrEnrollmentNotFound
}

func (repo *courseRepository) UpdateEnrollmentProgress(_ context.Context, learnerID, courseID string, progress int) error {
	if err := repo.db.hit(OpUpdateEnrollment); err != nil {
		return err
	}
	t := repo.db.course
	t.Lock()
	defer t.Unlock()
	e, ok := t.enrollments[[2]string{learnerID, courseID}]
	if !ok {
		return course.ErrEnrollmentNotFound
	}
	e.Progress = progress
	return nil
}

func (repo *courseRepository) ListEnrollments(_ context.Context, filter course.EnrollmentFilter) ([]course.Enrollment, error) {
	if err := repo.db.hit(OpListEnrollments); err != nil {
		return nil, err
	}
	t := repo.db.course
	t.RLock()
	defer t.RUnlock()
	enrollments := make([]course.Enrollment, 0)
	for _, e := range t.enrollments {
		if filter.CourseID != "" && e.CourseID != filter.CourseID {
			continue
		}
		if filter.LearnerID != "" && e.LearnerID != filter.LearnerID {
			continue
		}
		if e.Progress < filter.MinProgress {
			continue
		}
		enrollments = append(enrollments, *e)
	}
	sort.Slice(enrollments, func(i, j int) bool { return enrollments[i].EnrolledAt.Before(enrollments[j].EnrolledAt) })
	return enrollments, nil
}

func (repo *courseRepository) UpsertCompletion(_ context.Context, c course.LessonCompletion) (course.LessonCompletion, error) {
	t := repo.db.course
	t.Lock()
	defer t.Unlock()
	key := [2]string{c.LearnerID, c.LessonID}
	if existing, ok := t.completions[key]; ok {
		existing.Completed = c.Completed
		existing.CompletedAt = c.CompletedAt
		return *existing, nil
	}
	t.completions[key] = &c
	return c, nil
}

func (repo *courseRepository) ListCompletions(_ context.Context, learnerID string, lessonIDs ...string) ([]course.LessonCompletion, error) {
	if err := repo.db.hit(OpListCompletions); err != nil {
		return nil, err
	}
	t := repo.db.course
	t.RLock()
	defer t.RUnlock()
	completions := make([]course.LessonCompletion, 0, len(lessonIDs))
	for _, id := range lessonIDs {
		if c, ok := t.completions[[2]string{learnerID, id}]; ok {
			completions = append(completions, *c)
		}
	}
	return completions, nil
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
