package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/guigasprogramador/oneeduca/core/course"
	"github.com/guigasprogramador/oneeduca/storage/database"
)

type courseRepository struct {
	db *sqlx.DB
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *sqlx.DB) course.Repository {
	return &courseRepository{db: db}
}

func notFound(err error, target error, action string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return target
	}
	return errors.Wrap(err, action)
}

func (repo *courseRepository) CreateCourse(ctx context.Context, c course.Course) (course.Course, error) {
	_, err := repo.db.NamedExecContext(ctx,
		`INSERT INTO courses (id, title, description, duration, created_at)
		VALUES (:id, :title, :description, :duration, :created_at)`, c)
	return c, errors.Wrap(err, "inserting course")
}

func (repo *courseRepository) GetCourse(ctx context.Context, id string) (course.Course, error) {
	var c course.Course
	q := repo.db.Rebind("SELECT id, title, description, duration, created_at FROM courses WHERE id = ?")
	if err := repo.db.GetContext(ctx, &c, q, id); err != nil {
		return course.Course{}, notFound(err, course.ErrNotFound, "querying course")
	}
	return c, nil
}

func (repo *courseRepository) ListCourses(ctx context.Context) ([]course.Course, error) {
	courses := make([]course.Course, 0)
	err := repo.db.SelectContext(ctx, &courses,
		"SELECT id, title, description, duration, created_at FROM courses ORDER BY created_at")
	return courses, errors.Wrap(err, "querying courses")
}

func (repo *courseRepository) CreateModule(ctx context.Context, m course.Module) (course.Module, error) {
	_, err := repo.db.NamedExecContext(ctx,
		"INSERT INTO modules (id, course_id, title, position) VALUES (:id, :course_id, :title, :position)", m)
	return m, errors.Wrap(err, "inserting module")
}

func (repo *courseRepository) GetModule(ctx context.Context, id string) (course.Module, error) {
	var m course.Module
	q := repo.db.Rebind("SELECT id, course_id, title, position FROM modules WHERE id = ?")
	if err := repo.db.GetContext(ctx, &m, q, id); err != nil {
		return course.Module{}, notFound(err, course.ErrModuleNotFound, "querying module")
	}
	return m, nil
}

func (repo *courseRepository) ListModules(ctx context.Context, courseID string) ([]course.Module, error) {
	modules := make([]course.Module, 0)
	q := repo.db.Rebind("SELECT id, course_id, title, position FROM modules WHERE course_id = ? ORDER BY position")
	err := repo.db.SelectContext(ctx, &modules, q, courseID)
	return modules, errors.Wrap(err, "querying modules")
}

func (repo *courseRepository) CreateLesson(ctx context.Context, l course.Lesson) (course.Lesson, error) {
	_, err := repo.db.NamedExecContext(ctx,
		"INSERT INTO lessons (id, module_id, title, position) VALUES (:id, :module_id, :title, :position)", l)
	return l, errors.Wrap(err, "inserting lesson")
}

func (repo *courseRepository) GetLesson(ctx context.Context, id string) (course.Lesson, error) {
	var l course.Lesson
	q := repo.db.Rebind("SELECT id, module_id, title, position FROM lessons WHERE id = ?")
	if err := repo.db.GetContext(ctx, &l, q, id); err != nil {
		return course.Lesson{}, notFound(err, course.ErrLessonNotFound, "querying lesson")
	}
	return l, nil
}

func (repo *courseRepository) ListLessons(ctx context.Context, moduleIDs ...string) ([]course.Lesson, error) {
	lessons := make([]course.Lesson, 0)
	if len(moduleIDs) == 0 {
		return lessons, nil
	}
	q, args, err := sqlx.In("SELECT id, module_id, title, position FROM lessons WHERE module_id IN (?) ORDER BY position", moduleIDs)
	if err != nil {
		return nil, errors.Wrap(err, "building lessons query")
	}
	err = repo.db.SelectContext(ctx, &lessons, repo.db.Rebind(q), args...)
	return lessons, errors.Wrap(err, "querying lessons")
}

func (repo *courseRepository) CreateEnrollment(ctx context.Context, e course.Enrollment) (course.Enrollment, error) {
	_, err := repo.db.NamedExecContext(ctx,
		`INSERT INTO enrollments (id, user_id, course_id, progress, enrolled_at)
		VALUES (:id, :user_id, :course_id, :progress, :enrolled_at)`, e)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return course.Enrollment{}, course.ErrAlreadyEnrolled
		}
		return course.Enrollment{}, errors.Wrap(err, "inserting enrollment")
	}
	return e, nil
}

func (repo *courseRepository) FindEnrollment(ctx context.Context, learnerID, courseID string) (course.Enrollment, error) {
	var e course.Enrollment
	q := repo.db.Rebind(`SELECT id, user_id, course_id, progress, enrolled_at FROM enrollments
		WHERE user_id = ? AND course_id = ?`)
	if err := repo.db.GetContext(ctx, &e, q, learnerID, courseID); err != nil {
		return course.Enrollment{}, notFound(err, course.ErrEnrollmentNotFound, "querying enrollment")
	}
	return e, nil
}

func (repo *courseRepository) UpdateEnrollmentProgress(ctx context.Context, learnerID, courseID string, progress int) error {
	q := repo.db.Rebind("UPDATE enrollments SET progress = ? WHERE user_id = ? AND course_id = ?")
	res, err := repo.db.ExecContext(ctx, q, progress, learnerID, courseID)
	if err != nil {
		return errors.Wrap(err, "updating enrollment progress")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return course.ErrEnrollmentNotFound
	}
	return nil
}

func (repo *courseRepository) ListEnrollments(ctx context.Context, filter course.EnrollmentFilter) ([]course.Enrollment, error) {
	q := "SELECT id, user_id, course_id, progress, enrolled_at FROM enrollments WHERE progress >= ?"
	args := []interface{}{filter.MinProgress}
	if filter.CourseID != "" {
		q += " AND course_id = ?"
		args = append(args, filter.CourseID)
	}
	if filter.LearnerID != "" {
		q += " AND user_id = ?"
		args = append(args, filter.LearnerID)
	}
	q += " ORDER BY enrolled_at"

	enrollments := make([]course.Enrollment, 0)
	err := repo.db.SelectContext(ctx, &enrollments, repo.db.Rebind(q), args...)
	return enrollments, errors.Wrap(err, "querying enrollments")
}

func (repo *courseRepository) UpsertCompletion(ctx context.Context, c course.LessonCompletion) (course.LessonCompletion, error) {
	_, err := repo.db.NamedExecContext(ctx,
		`INSERT INTO lesson_progress (id, user_id, lesson_id, completed, completed_at)
		VALUES (:id, :user_id, :lesson_id, :completed, :completed_at)
		ON CONFLICT (user_id, lesson_id)
		DO UPDATE SET completed = excluded.completed, completed_at = excluded.completed_at`, c)
	if err != nil {
		return course.LessonCompletion{}, errors.Wrap(err, "upserting lesson completion")
	}

	var saved course.LessonCompletion
	q := repo.db.Rebind(`SELECT id, user_id, lesson_id, completed, completed_at FROM lesson_progress
		WHERE user_id = ? AND lesson_id = ?`)
	err = repo.db.GetContext(ctx, &saved, q, c.LearnerID, c.LessonID)
	return saved, errors.Wrap(err, "querying lesson completion")
}

func (repo *courseRepository) ListCompletions(ctx context.Context, learnerID string, lessonIDs ...string) ([]course.LessonCompletion, error) {
	completions := make([]course.LessonCompletion, 0)
	if len(lessonIDs) == 0 {
		return completions, nil
	}
	q, args, err := sqlx.In(`SELECT id, user_id, lesson_id, completed, completed_at FROM lesson_progress
		WHERE user_id = ? AND lesson_id IN (?)`, learnerID, lessonIDs)
	if err != nil {
		return nil, errors.Wrap(err, "building completions query")
	}
	err = repo.db.SelectContext(ctx, &completions, repo.db.Rebind(q), args...)
	return completions, errors.Wrap(err, "querying lesson completions")
}
