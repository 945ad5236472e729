package dummydb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guigasprogramador/oneeduca/core"
	"github.com/guigasprogramador/oneeduca/core/certificate"
	"github.com/guigasprogramador/oneeduca/core/course"
)

func TestDB_faults(t *testing.T) {
	db, err := Open()
	require.NoError(t, err)
	repo := NewCourseRepository(db)
	ctx := context.Background()

	boom := errors.New("boom")
	db.SetFault(OpFindEnrollment, boom)

	_, err = repo.FindEnrollment(ctx, "ana", "go")
	assert.Equal(t, boom, err)
	_, err = repo.FindEnrollment(ctx, "ana", "go")
	assert.Equal(t, boom, err)
	assert.Equal(t, 2, db.Calls(OpFindEnrollment))

	db.SetFault(OpFindEnrollment, nil)
	_, err = repo.FindEnrollment(ctx, "ana", "go")
	assert.Equal(t, course.ErrEnrollmentNotFound, err)
	assert.Equal(t, 3, db.Calls(OpFindEnrollment))
	assert.Equal(t, 0, db.Calls(OpGetCourse))
}

func TestCertificateRepository(t *testing.T) {
	db, err := Open()
	require.NoError(t, err)
	repo := NewCertificateRepository(db)
	ctx := context.Background()

	day := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	newCert := func(id, learner, crs, name string, age int) certificate.Certificate {
		return certificate.Certificate{
			ID:          id,
			LearnerID:   learner,
			CourseID:    crs,
			LearnerName: name,
			CourseTitle: "Curso " + crs,
			IssuedAt:    day.AddDate(0, 0, -age),
			Provenance:  certificate.Virtual,
		}
	}

	for _, c := range []certificate.Certificate{
		newCert("c1", "ana", "go", "Ana", 2),
		newCert("c2", "bob", "go", "Bob", 1),
		newCert("c3", "ana", "rust", "Ana", 0),
	} {
		saved, err := repo.CreateCertificate(ctx, c)
		require.NoError(t, err)
		assert.Equal(t, certificate.Durable, saved.Provenance)
	}

	_, err = repo.CreateCertificate(ctx, newCert("c4", "ana", "go", "Ana", 0))
	assert.Equal(t, certificate.ErrDuplicate, err)

	got, err := repo.GetCertificate(ctx, "bob", "go")
	require.NoError(t, err)
	assert.Equal(t, "c2", got.ID)
	_, err = repo.GetCertificate(ctx, "bob", "rust")
	assert.Equal(t, certificate.ErrNotFound, err)

	tests := []struct {
		name    string
		filter  certificate.QueryFilter
		wantIDs []string
	}{
		{name: "all, newest first", wantIDs: []string{"c3", "c2", "c1"}},
		{name: "by learner", filter: certificate.QueryFilter{LearnerID: "ana"}, wantIDs: []string{"c3", "c1"}},
		{name: "by course", filter: certificate.QueryFilter{CourseID: "go"}, wantIDs: []string{"c2", "c1"}},
		{name: "search name", filter: certificate.QueryFilter{Search: " BOB "}, wantIDs: []string{"c2"}},
		{name: "search title", filter: certificate.QueryFilter{Search: "rust"}, wantIDs: []string{"c3"}},
		{name: "limit", filter: certificate.QueryFilter{Limit: 1}, wantIDs: []string{"c3"}},
		{name: "offset", filter: certificate.QueryFilter{Offset: 1, Limit: 5}, wantIDs: []string{"c2", "c1"}},
		{name: "offset past end", filter: certificate.QueryFilter{Offset: 3}, wantIDs: []string{}},
		{name: "oldest first", filter: certificate.QueryFilter{Ordering: []core.DBOrdering{{Field: "issue_date", Ascending: true}}}, wantIDs: []string{"c1", "c2", "c3"}},
		{name: "by name, then newest", filter: certificate.QueryFilter{Ordering: []core.DBOrdering{{Field: "user_name", Ascending: true}}}, wantIDs: []string{"c3", "c1", "c2"}},
		{name: "by course desc", filter: certificate.QueryFilter{Ordering: []core.DBOrdering{{Field: "course_name"}}}, wantIDs: []string{"c3", "c2", "c1"}},
		{name: "unknown field ignored", filter: certificate.QueryFilter{Ordering: []core.DBOrdering{{Field: "lol", Ascending: true}}}, wantIDs: []string{"c3", "c2", "c1"}},
		{name: "ordered page", filter: certificate.QueryFilter{Ordering: []core.DBOrdering{{Field: "issue_date", Ascending: true}}, Offset: 1, Limit: 1}, wantIDs: []string{"c2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			certs, err := repo.FilterCertificates(ctx, tt.filter)
			require.NoError(t, err)
			ids := make([]string, 0, len(certs))
			for _, c := range certs {
				ids = append(ids, c.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}

	n, err := repo.CountCertificates(ctx, "go")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got.URL = "https://oneeduca.test/c2"
	updated, err := repo.UpdateCertificate(ctx, got)
	require.NoError(t, err)
	assert.Equal(t, got.URL, updated.URL)

	require.NoError(t, repo.DeleteCertificate(ctx, "c2"))
	assert.Equal(t, certificate.ErrNotFound, repo.DeleteCertificate(ctx, "c2"))
	_, err = repo.UpdateCertificate(ctx, got)
	assert.Equal(t, certificate.ErrNotFound, err)
	_, err = repo.GetCertificateByID(ctx, "c2")
	assert.Equal(t, certificate.ErrNotFound, err)
}
