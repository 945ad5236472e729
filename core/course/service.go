package course

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// errors
	ErrNotFound           = errors.New("course not found")
	ErrModuleNotFound     = errors.New("module not found")
	ErrLessonNotFound     = errors.New("lesson not found")
	ErrEnrollmentNotFound = errors.New("enrollment not found")
	ErrAlreadyEnrolled    = errors.New("learner already enrolled in this course")
)

var NowFunc = time.Now // mockable

type (
	// Repository is the persistence collaborator for courses and learner activity.
	Repository interface {
		CreateCourse(ctx context.Context, c Course) (Course, error)
		GetCourse(ctx context.Context, id string) (Course, error)
		ListCourses(ctx context.Context) ([]Course, error)

		CreateModule(ctx context.Context, m Module) (Module, error)
		GetModule(ctx context.Context, id string) (Module, error)
		ListModules(ctx context.Context, courseID string) ([]Module, error)

		CreateLesson(ctx context.Context, l Lesson) (Lesson, error)
		GetLesson(ctx context.Context, id string) (Lesson, error)
		// ListLessons returns the lessons of every given module.
		ListLessons(ctx context.Context, moduleIDs ...string) ([]Lesson, error)

		// CreateEnrollment returns ErrAlreadyEnrolled when the pair is already enrolled.
		CreateEnrollment(ctx context.Context, e Enrollment) (Enrollment, error)
		// FindEnrollment returns ErrEnrollmentNotFound when the pair is not enrolled.
		FindEnrollment(ctx context.Context, learnerID, courseID string) (Enrollment, error)
		UpdateEnrollmentProgress(ctx context.Context, learnerID, courseID string, progress int) error
		ListEnrollments(ctx context.Context, filter EnrollmentFilter) ([]Enrollment, error)

		// UpsertCompletion inserts or updates the record of (LearnerID, LessonID).
		UpsertCompletion(ctx context.Context, c LessonCompletion) (LessonCompletion, error)
		// ListCompletions returns the learner's records restricted to lessonIDs.
		ListCompletions(ctx context.Context, learnerID string, lessonIDs ...string) ([]LessonCompletion, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) Get(ctx context.Context, id string) (Course, error) {
	return svc.repo.GetCourse(ctx, id)
}

// Enroll registers the learner in the course with progress 0.
func (svc *Service) Enroll(ctx context.Context, learnerID, courseID string) (Enrollment, error) {
	if _, err := svc.repo.GetCourse(ctx, courseID); err != nil {
		return Enrollment{}, err
	}
	return svc.repo.CreateEnrollment(ctx, Enrollment{
		ID:         uuid.NewString(),
		LearnerID:  learnerID,
		CourseID:   courseID,
		EnrolledAt: NowFunc().UTC(),
	})
}

func (svc *Service) Enrollment(ctx context.Context, learnerID, courseID string) (Enrollment, error) {
	return svc.repo.FindEnrollment(ctx, learnerID, courseID)
}

// CourseOfLesson resolves lesson -> module -> course.
func (svc *Service) CourseOfLesson(ctx context.Context, lessonID string) (string, error) {
	return CourseOfLesson(ctx, svc.repo, lessonID)
}

func CourseOfLesson(ctx context.Context, repo Repository, lessonID string) (string, error) {
	lesson, err := repo.GetLesson(ctx, lessonID)
	if err != nil {
		return "", err
	}
	module, err := repo.GetModule(ctx, lesson.ModuleID)
	if err != nil {
		return "", err
	}
	return module.CourseID, nil
}
