// Package authz decides whether an authenticated principal may modify a
// target user record.
package authz

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-auth-api/internal/domain"
)

type userStore interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
}

// Decide is the pure access rule. principal is the stored account behind the
// token; target is nil when the requested user does not exist.
func Decide(principal, target *domain.User) error {
	if principal == nil {
		return fmt.Errorf("principal account no longer exists: %w", domain.ErrUnauthorized)
	}
	if principal.IsAdmin {
		return nil
	}
	if target == nil {
		return fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	if domain.NormalizeEmail(target.Email) == domain.NormalizeEmail(principal.Email) {
		return nil
	}
	return fmt.Errorf("not allowed to modify another user: %w", domain.ErrForbidden)
}

// Gate loads both parties and applies Decide. Admin status is read from the
// store, not from the token, so a revoked admin loses access immediately.
type Gate struct {
	repo userStore
}

func NewGate(repo userStore) *Gate {
	return &Gate{repo: repo}
}

func (g *Gate) Check(ctx context.Context, principalEmail, targetUsername string) error {
	principal, err := g.repo.GetByEmail(ctx, domain.NormalizeEmail(principalEmail))
	if errors.Is(err, domain.ErrNotFound) {
		return Decide(nil, nil)
	}
	if err != nil {
		return err
	}
	if principal.IsAdmin {
		return nil
	}

	target, err := g.repo.GetByUsername(ctx, targetUsername)
	if errors.Is(err, domain.ErrNotFound) {
		return Decide(principal, nil)
	}
	if err != nil {
		return err
	}
	return Decide(principal, target)
}
