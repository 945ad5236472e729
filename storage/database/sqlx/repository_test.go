package sqlxrepos

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guigasprogramador/oneeduca/core"
	"github.com/guigasprogramador/oneeduca/core/certificate"
	"github.com/guigasprogramador/oneeduca/core/course"
	"github.com/guigasprogramador/oneeduca/core/user"
	"github.com/guigasprogramador/oneeduca/tests"
)

func TestProfileRepository(t *testing.T) {
	repo := NewProfileRepository(testutil.PrepareDB(t))
	ctx := context.Background()

	p := testutil.CreateProfile(t, repo, "Ana", "ana@test.br", user.RoleStudent, user.RoleProfessor)

	got, err := repo.GetProfileByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ana", got.Name)
	assert.Equal(t, []string{user.RoleStudent, user.RoleProfessor}, got.Roles)

	got, err = repo.GetProfileByEmail(ctx, "ana@test.br")
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	_, err = repo.GetProfileByID(ctx, "nope")
	assert.True(t, errors.Is(err, user.ErrNotFound), "got %v", err)

	_, err = repo.CreateProfile(ctx, user.Profile{ID: uuid.NewString(), Email: "ana@test.br", CreatedAt: time.Now()})
	assert.True(t, errors.Is(err, user.ErrEmailExists), "got %v", err)
}

func TestCourseRepository(t *testing.T) {
	repo := NewCourseRepository(testutil.PrepareDB(t))
	ctx := context.Background()

	crs, lessons := testutil.CreateCourse(t, repo, "Go", "40h", 2, 3)
	require.Len(t, lessons, 5)

	t.Run("course tree", func(t *testing.T) {
		got, err := repo.GetCourse(ctx, crs.ID)
		require.NoError(t, err)
		assert.Equal(t, "Go", got.Title)

		modules, err := repo.ListModules(ctx, crs.ID)
		require.NoError(t, err)
		require.Len(t, modules, 2)

		ls, err := repo.ListLessons(ctx, modules[0].ID, modules[1].ID)
		require.NoError(t, err)
		assert.Len(t, ls, 5)

		courseID, err := course.CourseOfLesson(ctx, repo, lessons[4].ID)
		require.NoError(t, err)
		assert.Equal(t, crs.ID, courseID)

		_, err = repo.GetCourse(ctx, "nope")
		assert.True(t, errors.Is(err, course.ErrNotFound), "got %v", err)
		_, err = repo.GetLesson(ctx, "nope")
		assert.True(t, errors.Is(err, course.ErrLessonNotFound), "got %v", err)
	})

	t.Run("enrollments", func(t *testing.T) {
		testutil.Enroll(t, repo, "ana", crs.ID)
		testutil.Enroll(t, repo, "bob", crs.ID, 100)

		_, err := repo.CreateEnrollment(ctx, course.Enrollment{
			ID: uuid.NewString(), LearnerID: "ana", CourseID: crs.ID, EnrolledAt: time.Now(),
		})
		assert.True(t, errors.Is(err, course.ErrAlreadyEnrolled), "got %v", err)

		require.NoError(t, repo.UpdateEnrollmentProgress(ctx, "ana", crs.ID, 60))
		e, err := repo.FindEnrollment(ctx, "ana", crs.ID)
		require.NoError(t, err)
		assert.Equal(t, 60, e.Progress)

		err = repo.UpdateEnrollmentProgress(ctx, "carla", crs.ID, 10)
		assert.True(t, errors.Is(err, course.ErrEnrollmentNotFound), "got %v", err)

		completed, err := repo.ListEnrollments(ctx, course.EnrollmentFilter{CourseID: crs.ID, MinProgress: 100})
		require.NoError(t, err)
		require.Len(t, completed, 1)
		assert.Equal(t, "bob", completed[0].LearnerID)
	})

	t.Run("completions are upserted", func(t *testing.T) {
		testutil.CompleteLessons(t, repo, "ana", lessons[0], lessons[1])
		_, err := repo.UpsertCompletion(ctx, course.LessonCompletion{
			ID: uuid.NewString(), LearnerID: "ana", LessonID: lessons[1].ID, Completed: false,
		})
		require.NoError(t, err)

		ids := make([]string, 0, len(lessons))
		for _, l := range lessons {
			ids = append(ids, l.ID)
		}
		completions, err := repo.ListCompletions(ctx, "ana", ids...)
		require.NoError(t, err)
		require.Len(t, completions, 2)

		done := 0
		for _, c := range completions {
			if c.Completed {
				done++
			}
		}
		assert.Equal(t, 1, done)
	})
}

func TestCertificateRepository(t *testing.T) {
	repo := NewCertificateRepository(testutil.PrepareDB(t))
	ctx := context.Background()

	issued := time.Date(2024, time.March, 5, 12, 0, 0, 0, time.UTC)
	newCert := func(learner, courseID, name string, at time.Time) certificate.Certificate {
		return certificate.Certificate{
			ID:          uuid.NewString(),
			LearnerID:   learner,
			CourseID:    courseID,
			LearnerName: name,
			CourseTitle: "Go",
			CourseHours: 40,
			IssuedAt:    at,
			Document:    "<html></html>",
		}
	}

	ana, err := repo.CreateCertificate(ctx, newCert("ana", "go", "Ana", issued))
	require.NoError(t, err)
	_, err = repo.CreateCertificate(ctx, newCert("bob", "go", "Bob", issued.Add(time.Hour)))
	require.NoError(t, err)
	_, err = repo.CreateCertificate(ctx, newCert("ana", "rust", "Ana", issued.Add(2*time.Hour)))
	require.NoError(t, err)

	t.Run("one certificate per learner & course", func(t *testing.T) {
		_, err := repo.CreateCertificate(ctx, newCert("ana", "go", "Ana", issued))
		assert.True(t, errors.Is(err, certificate.ErrDuplicate), "got %v", err)
	})

	t.Run("get", func(t *testing.T) {
		got, err := repo.GetCertificate(ctx, "ana", "go")
		require.NoError(t, err)
		assert.Equal(t, ana.ID, got.ID)
		assert.Equal(t, certificate.Durable, got.Provenance)
		assert.True(t, issued.Equal(got.IssuedAt))
		assert.Equal(t, "<html></html>", got.Document)

		_, err = repo.GetCertificate(ctx, "carla", "go")
		assert.True(t, errors.Is(err, certificate.ErrNotFound), "got %v", err)
	})

	t.Run("filter", func(t *testing.T) {
		tests := []struct {
			name    string
			filter  certificate.QueryFilter
			wantLen int
		}{
			{name: "all", wantLen: 3},
			{name: "by learner", filter: certificate.QueryFilter{LearnerID: "ana"}, wantLen: 2},
			{name: "by course", filter: certificate.QueryFilter{CourseID: "go"}, wantLen: 2},
			{name: "search", filter: certificate.QueryFilter{Search: "BOB"}, wantLen: 1},
			{name: "limit", filter: certificate.QueryFilter{Limit: 2}, wantLen: 2},
			{name: "offset", filter: certificate.QueryFilter{Limit: 2, Offset: 2}, wantLen: 1},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				certs, err := repo.FilterCertificates(ctx, tt.filter)
				require.NoError(t, err)
				assert.Len(t, certs, tt.wantLen)
			})
		}

		certs, err := repo.FilterCertificates(ctx, certificate.QueryFilter{
			Ordering: []core.DBOrdering{{Field: "issue_date", Ascending: true}},
		})
		require.NoError(t, err)
		assert.Equal(t, ana.ID, certs[0].ID)
	})

	t.Run("count", func(t *testing.T) {
		n, err := repo.CountCertificates(ctx, "go")
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		n, err = repo.CountCertificates(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, 3, n)
	})

	t.Run("update & delete", func(t *testing.T) {
		cert := ana
		cert.IssuedAt = issued.Add(24 * time.Hour)
		cert.Document = "<html>v2</html>"
		updated, err := repo.UpdateCertificate(ctx, cert)
		require.NoError(t, err)
		assert.Equal(t, "<html>v2</html>", updated.Document)

		require.NoError(t, repo.DeleteCertificate(ctx, ana.ID))
		err = repo.DeleteCertificate(ctx, ana.ID)
		assert.True(t, errors.Is(err, certificate.ErrNotFound), "got %v", err)
	})
}

func TestCertificateRepository_duplicatePair(t *testing.T) {
	db := testutil.PrepareDB(t)
	ctx := context.Background()

	// same table, without the (user_id, course_id) unique constraint
	for _, stmt := range []string{
		`DROP TABLE certificates`,
		`CREATE TABLE certificates (
			id               TEXT PRIMARY KEY,
			user_id          TEXT      NOT NULL,
			course_id        TEXT      NOT NULL,
			user_name        TEXT      NOT NULL,
			course_name      TEXT      NOT NULL,
			course_hours     INTEGER   NOT NULL,
			issue_date       TIMESTAMP NOT NULL,
			expiry_date      TIMESTAMP NULL,
			certificate_url  TEXT      NULL,
			certificate_html TEXT      NULL
		)`,
	} {
		_, err := db.ExecContext(ctx, stmt)
		require.NoError(t, err)
	}
	repo := NewCertificateRepository(db)

	for i := 0; i < 2; i++ {
		_, err := repo.CreateCertificate(ctx, certificate.Certificate{
			ID: uuid.NewString(), LearnerID: "ana", CourseID: "go", LearnerName: "Ana", CourseTitle: "Go", IssuedAt: time.Now().UTC(),
		})
		require.NoError(t, err)
	}

	_, err := repo.GetCertificate(ctx, "ana", "go")
	require.Error(t, err)
	assert.True(t, core.IsShutdown(err), "got %v", err)
}
