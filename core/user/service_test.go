package user_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guigasprogramador/oneeduca/core"
	"github.com/guigasprogramador/oneeduca/core/user"
	dummydb "github.com/guigasprogramador/oneeduca/storage/database/dummy"
)

func newService(t *testing.T) *user.Service {
	db, err := dummydb.Open()
	require.NoError(t, err)
	validate, _ := core.NewValidator()
	return user.NewService(dummydb.NewProfileRepository(db), validate)
}

func TestService_Create(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	user.NowFunc = func() time.Time { return now }
	defer func() { user.NowFunc = time.Now }()

	svc := newService(t)
	ctx := context.Background()

	p, err := svc.Create(ctx, user.NewProfile{Name: " Ana ", Email: " ANA@Test.br ", Roles: []string{user.RoleStudent}})
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "Ana", p.Name)
	assert.Equal(t, "ana@test.br", p.Email)
	assert.Equal(t, now, p.CreatedAt)

	got, err := svc.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p, got)

	withID, err := svc.Create(ctx, user.NewProfile{ID: "auth0-42", FullName: "Bruno Souza", Email: "bruno@test.br"})
	require.NoError(t, err)
	assert.Equal(t, "auth0-42", withID.ID)

	_, err = svc.Create(ctx, user.NewProfile{Name: "Other", Email: "ana@test.br"})
	assertEmailTaken(t, err)

	_, err = svc.GetByID(ctx, "nope")
	assert.Equal(t, user.ErrNotFound, err)
}

// staleLookupRepo misses every email lookup, as if a concurrent create had not landed yet.
type staleLookupRepo struct {
	user.Repository
}

func (staleLookupRepo) GetProfileByEmail(context.Context, string) (user.Profile, error) {
	return user.Profile{}, user.ErrNotFound
}

func TestService_Create_lostRace(t *testing.T) {
	db, err := dummydb.Open()
	require.NoError(t, err)
	validate, _ := core.NewValidator()
	svc := user.NewService(staleLookupRepo{dummydb.NewProfileRepository(db)}, validate)
	ctx := context.Background()

	_, err = svc.Create(ctx, user.NewProfile{Name: "Ana", Email: "ana@test.br"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, user.NewProfile{Name: "Ana 2", Email: "ana@test.br"})
	assertEmailTaken(t, err)
}

func assertEmailTaken(t *testing.T, err error) {
	t.Helper()
	var vErr *core.ValidationError
	require.True(t, errors.As(err, &vErr), "got %v", err)
	assert.True(t, errors.Is(err, user.ErrEmailExists))
	assert.Equal(t, []core.FieldError{{Field: "email", Error: user.ErrEmailExists.Error()}}, vErr.Fields)
}

func TestService_Create_validation(t *testing.T) {
	svc := newService(t)

	tests := []struct {
		name  string
		np    user.NewProfile
		field string
	}{
		{name: "no email", np: user.NewProfile{Name: "Ana"}, field: "email"},
		{name: "bad email", np: user.NewProfile{Name: "Ana", Email: "nope"}, field: "email"},
		{name: "no name", np: user.NewProfile{Email: "ana@test.br"}, field: "name"},
		{name: "bad role", np: user.NewProfile{Name: "Ana", Email: "ana@test.br", Roles: []string{"root"}}, field: "roles[0]"},
		{name: "bad id", np: user.NewProfile{ID: "a b", Name: "Ana", Email: "ana@test.br"}, field: "id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tt.np)
			var vErrs validator.ValidationErrors
			require.True(t, errors.As(err, &vErrs), "error = %v", err)
			assert.Equal(t, tt.field, vErrs[0].Field())
		})
	}
}
