package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-auth-api/internal/domain"
	"github.com/go-auth-api/internal/pkg/id"
	"github.com/go-auth-api/internal/pkg/secret"
	"github.com/go-auth-api/internal/pkg/validate"
)

type Service interface {
	List(ctx context.Context) ([]domain.PublicUser, error)
	GetByUsername(ctx context.Context, username string) (*domain.PublicUser, error)
	GetByEmail(ctx context.Context, email string) (*domain.PublicUser, error)
	Update(ctx context.Context, username string, req domain.UpdateUserRequest) (*domain.PublicUser, error)
	Patch(ctx context.Context, username string, req domain.PatchUserRequest) (*domain.PublicUser, error)
	Delete(ctx context.Context, username string) error
	EnsureAdmin(ctx context.Context, username, email, password string) error
}

type userStore interface {
	Create(ctx context.Context, u *domain.User) error
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Update(ctx context.Context, match domain.UserMatch, updates map[string]interface{}) error
	DeleteByUsername(ctx context.Context, username string) error
	List(ctx context.Context) ([]domain.User, error)
}

type service struct {
	repo      userStore
	passwords secret.Hasher
}

type ServiceDeps struct {
	UserRepo       userStore
	PasswordHasher secret.Hasher
}

func NewService(deps ServiceDeps) Service {
	return &service{
		repo:      deps.UserRepo,
		passwords: deps.PasswordHasher,
	}
}

func (s *service) List(ctx context.Context) ([]domain.PublicUser, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.PublicUser, 0, len(users))
	for i := range users {
		out = append(out, *users[i].Public())
	}
	return out, nil
}

func (s *service) GetByUsername(ctx context.Context, username string) (*domain.PublicUser, error) {
	u, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	return u.Public(), nil
}

func (s *service) GetByEmail(ctx context.Context, email string) (*domain.PublicUser, error) {
	if err := validate.Email(email); err != nil {
		return nil, err
	}
	u, err := s.repo.GetByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		return nil, err
	}
	return u.Public(), nil
}

// Update replaces every editable field. Verification state and admin flag
// are never touched here.
func (s *service) Update(ctx context.Context, username string, req domain.UpdateUserRequest) (*domain.PublicUser, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	hash, err := s.passwords.Hash(req.Password)
	if err != nil {
		return nil, err
	}
	updates := map[string]interface{}{
		domain.FieldUsername:      req.Username,
		domain.FieldEmail:         domain.NormalizeEmail(req.Email),
		domain.FieldPasswordHash:  hash,
		domain.FieldRecoveryEmail: optionalEmail(req.RecoveryEmail),
	}
	if err := s.repo.Update(ctx, domain.ByUsername(username), updates); err != nil {
		return nil, err
	}
	return s.GetByUsername(ctx, req.Username)
}

func (s *service) Patch(ctx context.Context, username string, req domain.PatchUserRequest) (*domain.PublicUser, error) {
	if req.Empty() {
		return nil, fmt.Errorf("at least one of email, password or recovery_email is required: %w", domain.ErrValidation)
	}
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	updates := map[string]interface{}{}
	if req.Email != nil {
		updates[domain.FieldEmail] = domain.NormalizeEmail(*req.Email)
	}
	if req.Password != nil {
		hash, err := s.passwords.Hash(*req.Password)
		if err != nil {
			return nil, err
		}
		updates[domain.FieldPasswordHash] = hash
	}
	if req.RecoveryEmail != nil {
		updates[domain.FieldRecoveryEmail] = optionalEmail(req.RecoveryEmail)
	}
	if err := s.repo.Update(ctx, domain.ByUsername(username), updates); err != nil {
		return nil, err
	}
	return s.GetByUsername(ctx, username)
}

func (s *service) Delete(ctx context.Context, username string) error {
	return s.repo.DeleteByUsername(ctx, username)
}

// EnsureAdmin creates a verified admin account. An existing account with the
// same email or username is left as is.
func (s *service) EnsureAdmin(ctx context.Context, username, email, password string) error {
	hash, err := s.passwords.Hash(password)
	if err != nil {
		return err
	}
	u := &domain.User{
		UserID:       id.New(),
		Username:     username,
		Email:        domain.NormalizeEmail(email),
		PasswordHash: hash,
		Verified:     true,
		IsAdmin:      true,
	}
	err = s.repo.Create(ctx, u)
	if errors.Is(err, domain.ErrConflict) {
		slog.Info("admin account already exists, skipping seed", "username", username, "email", u.Email)
		return nil
	}
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	slog.Info("admin account created", "username", username, "email", u.Email)
	return nil
}

// optionalEmail maps an absent or empty address to nil so the store clears it.
func optionalEmail(email *string) interface{} {
	if email == nil || *email == "" {
		return nil
	}
	return domain.NormalizeEmail(*email)
}
