package user

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/guigasprogramador/oneeduca/core"
)

var (
	// errors
	ErrNotFound    = errors.New("profile not found")
	ErrEmailExists = errors.New("a profile with this email already exists")
)

var NowFunc = time.Now // mockable

type (
	Repository interface {
		CreateProfile(ctx context.Context, p Profile) (Profile, error)
		GetProfileByID(ctx context.Context, id string) (Profile, error)
		GetProfileByEmail(ctx context.Context, email string) (Profile, error)
	}

	Service struct {
		repo     Repository
		validate *validator.Validate
	}
)

func NewService(repo Repository, validate *validator.Validate) *Service {
	return &Service{repo: repo, validate: validate}
}

func (svc *Service) Create(ctx context.Context, np NewProfile) (Profile, error) {
	if err := np.Validate(svc.validate); err != nil {
		return Profile{}, err
	}
	if _, err := svc.repo.GetProfileByEmail(ctx, np.Email); err == nil {
		return Profile{}, emailTaken()
	} else if !errors.Is(err, ErrNotFound) {
		return Profile{}, err
	}

	id := np.ID
	if id == "" {
		id = uuid.NewString()
	}
	p, err := svc.repo.CreateProfile(ctx, Profile{
		ID:        id,
		Name:      np.Name,
		FullName:  np.FullName,
		Email:     np.Email,
		Roles:     np.Roles,
		CreatedAt: NowFunc().UTC(),
	})
	if errors.Is(err, ErrEmailExists) {
		// lost a race with a concurrent create
		return Profile{}, emailTaken()
	}
	return p, err
}

func emailTaken() error {
	return core.NewValidationError(ErrEmailExists, core.FieldError{Field: "email", Error: ErrEmailExists.Error()})
}

func (svc *Service) GetByID(ctx context.Context, id string) (Profile, error) {
	return svc.repo.GetProfileByID(ctx, id)
}
