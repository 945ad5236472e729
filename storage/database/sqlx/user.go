package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/guigasprogramador/oneeduca/core/user"
	"github.com/guigasprogramador/oneeduca/storage/database"
)

type profileRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	FullName  string    `db:"full_name"`
	Email     string    `db:"email"`
	Roles     string    `db:"roles"`
	CreatedAt time.Time `db:"created_at"`
}

func (r profileRow) toProfile() user.Profile {
	p := user.Profile{ID: r.ID, Name: r.Name, FullName: r.FullName, Email: r.Email, CreatedAt: r.CreatedAt}
	if r.Roles != "" {
		p.Roles = strings.Split(r.Roles, ",")
	}
	return p
}

type profileRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*profileRepository)(nil) // interface compliance check

func NewProfileRepository(db *sqlx.DB) user.Repository {
	return &profileRepository{db: db}
}

func (repo *profileRepository) CreateProfile(ctx context.Context, p user.Profile) (user.Profile, error) {
	row := profileRow{
		ID:        p.ID,
		Name:      p.Name,
		FullName:  p.FullName,
		Email:     p.Email,
		Roles:     strings.Join(p.Roles, ","),
		CreatedAt: p.CreatedAt,
	}
	_, err := repo.db.NamedExecContext(ctx,
		`INSERT INTO profiles (id, name, full_name, email, roles, created_at)
		VALUES (:id, :name, :full_name, :email, :roles, :created_at)`, row)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return user.Profile{}, user.ErrEmailExists
		}
		return user.Profile{}, errors.Wrap(err, "inserting profile")
	}
	return row.toProfile(), nil
}

func (repo *profileRepository) getBy(ctx context.Context, column, value string) (user.Profile, error) {
	var row profileRow
	q := repo.db.Rebind("SELECT id, name, full_name, email, roles, created_at FROM profiles WHERE " + column + " = ?")
	if err := repo.db.GetContext(ctx, &row, q, value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return user.Profile{}, user.ErrNotFound
		}
		return user.Profile{}, errors.Wrap(err, "querying profile")
	}
	return row.toProfile(), nil
}

func (repo *profileRepository) GetProfileByID(ctx context.Context, id string) (user.Profile, error) {
	return repo.getBy(ctx, "id", id)
}

func (repo *profileRepository) GetProfileByEmail(ctx context.Context, email string) (user.Profile, error) {
	return repo.getBy(ctx, "email", email)
}
