package testutil

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/guigasprogramador/oneeduca/core"
	"github.com/guigasprogramador/oneeduca/core/course"
	"github.com/guigasprogramador/oneeduca/core/user"
	"github.com/guigasprogramador/oneeduca/storage/database"
)

// PrepareDB opens a migrated sqlite database in a temp dir, closed when the test ends.
func PrepareDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := database.Open(core.DatabaseConfig{
		Engine: database.EngineSQLite,
		Path:   filepath.Join(t.TempDir(), "test.db"),
	})
	if err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	if err = database.Migrate(db); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// CreateProfile stores a profile with a random id.
func CreateProfile(t *testing.T, repo user.Repository, name, email string, roles ...string) user.Profile {
	t.Helper()
	p, err := repo.CreateProfile(context.Background(), user.Profile{
		ID:        uuid.NewString(),
		Name:      name,
		Email:     email,
		Roles:     roles,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateProfile() failed: %v", err)
	}
	return p
}

// CreateCourse stores a course with one module per entry of lessonsPerModule, holding that many lessons.
// The lessons are returned in module then position order.
func CreateCourse(t *testing.T, repo course.Repository, title, duration string, lessonsPerModule ...int) (course.Course, []course.Lesson) {
	t.Helper()
	ctx := context.Background()

	c, err := repo.CreateCourse(ctx, course.Course{
		ID:        uuid.NewString(),
		Title:     title,
		Duration:  duration,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateCourse() failed: %v", err)
	}

	var lessons []course.Lesson
	for i, n := range lessonsPerModule {
		m, err := repo.CreateModule(ctx, course.Module{
			ID:       uuid.NewString(),
			CourseID: c.ID,
			Title:    fmt.Sprintf("Module %d", i+1),
			Position: i,
		})
		if err != nil {
			t.Fatalf("CreateCourse() failed: %v", err)
		}
		for j := 0; j < n; j++ {
			l, err := repo.CreateLesson(ctx, course.Lesson{
				ID:       uuid.NewString(),
				ModuleID: m.ID,
				Title:    fmt.Sprintf("Lesson %d.%d", i+1, j+1),
				Position: j,
			})
			if err != nil {
				t.Fatalf("CreateCourse() failed: %v", err)
			}
			lessons = append(lessons, l)
		}
	}
	return c, lessons
}

// Enroll enrolls the learner with the given stored progress (0 by default).
func Enroll(t *testing.T, repo course.Repository, learnerID, courseID string, progress ...int) course.Enrollment {
	t.Helper()
	ctx := context.Background()
	e, err := repo.CreateEnrollment(ctx, course.Enrollment{
		ID:         uuid.NewString(),
		LearnerID:  learnerID,
		CourseID:   courseID,
		EnrolledAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("Enroll() failed: %v", err)
	}
	if len(progress) > 0 {
		if err = repo.UpdateEnrollmentProgress(ctx, learnerID, courseID, progress[0]); err != nil {
			t.Fatalf("Enroll() failed: %v", err)
		}
		e.Progress = progress[0]
	}
	return e
}

// CompleteLessons marks the lessons as completed by the learner, bypassing progress computation.
func CompleteLessons(t *testing.T, repo course.Repository, learnerID string, lessons ...course.Lesson) {
	t.Helper()
	now := time.Now().UTC()
	for _, l := range lessons {
		_, err := repo.UpsertCompletion(context.Background(), course.LessonCompletion{
			ID:          uuid.NewString(),
			LearnerID:   learnerID,
			LessonID:    l.ID,
			Completed:   true,
			CompletedAt: &now,
		})
		if err != nil {
			t.Fatalf("CompleteLessons() failed: %v", err)
		}
	}
}
