package http

import (
	"context"

	"github.com/go-auth-api/internal/domain"
)

// UserRepository is the minimal interface the router requires from a user store.
// Both the DynamoDB and the Postgres repositories satisfy it.
type UserRepository interface {
	Create(ctx context.Context, u *domain.User) error
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	// Update applies a partial update to the matched user. Unique fields are
	// re-checked by the store.
	Update(ctx context.Context, match domain.UserMatch, updates map[string]interface{}) error
	DeleteByUsername(ctx context.Context, username string) error
	List(ctx context.Context) ([]domain.User, error)
}

// Notifier delivers outbound mail.
type Notifier interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Locker serializes lifecycle operations per key.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}
