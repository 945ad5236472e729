package dummydb

import (
	"context"

	"github.com/guigasprogramador/oneeduca/core/user"
)

type profileRepository struct {
	db *DB
}

var _ user.Repository = (*profileRepository)(nil) // interface compliance check

func NewProfileRepository(db *DB) user.Repository {
	return &profileRepository{db: db}
}

func (repo *profileRepository) CreateProfile(_ context.Context, p user.Profile) (user.Profile, error) {
	t := repo.db.profile
	t.Lock()
	defer t.Unlock()

	for _, existing := range t.table {
		if existing.Email == p.Email {
			return user.Profile{}, user.ErrEmailExists
		}
	}
	p.Roles = append([]string(nil), p.Roles...)
	t.table[p.ID] = &p
	return p, nil
}

func (repo *profileRepository) GetProfileByID(_ context.Context, id string) (user.Profile, error) {
	if err := repo.db.hit(OpGetProfile); err != nil {
		return user.Profile{}, err
	}
	t := repo.db.profile
	t.RLock()
	defer t.RUnlock()

	if p, ok := t.table[id]; ok {
		return *p, nil
	}
	return user.Profile{}, user.ErrNotFound
}

func (repo *profileRepository) GetProfileByEmail(_ context.Context, email string) (user.Profile, error) {
	t := repo.db.profile
	t.RLock()
	defer t.RUnlock()

	for _, p := range t.table {
		if p.Email == email {
			return *p, nil
		}
	}
	return user.Profile{}, user.ErrNotFound
}
