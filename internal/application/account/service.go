// Package account implements the account lifecycle: registration, email
// verification, login and password reset.
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-auth-api/internal/domain"
	"github.com/go-auth-api/internal/pkg/code"
	"github.com/go-auth-api/internal/pkg/id"
	"github.com/go-auth-api/internal/pkg/keylock"
	"github.com/go-auth-api/internal/pkg/secret"
	"github.com/go-auth-api/internal/pkg/validate"
)

const defaultNotifyTimeout = 15 * time.Second

type Service interface {
	Register(ctx context.Context, req domain.CreateUserRequest) (*domain.PublicUser, error)
	VerifyAccount(ctx context.Context, req domain.VerifyAccountRequest) error
	Login(ctx context.Context, req domain.LoginRequest) (string, *domain.PublicUser, error)
	RequestPasswordReset(ctx context.Context, req domain.PasswordResetRequest) error
	ResetPassword(ctx context.Context, email string, req domain.ResetPasswordRequest) error
}

type userStore interface {
	Create(ctx context.Context, u *domain.User) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	Update(ctx context.Context, match domain.UserMatch, updates map[string]interface{}) error
}

type tokenIssuer interface {
	Sign(u *domain.User) (string, error)
}

type notifier interface {
	Send(ctx context.Context, to, subject, body string) error
}

type locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

type ServiceDeps struct {
	UserRepo       userStore
	PasswordHasher secret.Hasher
	CodeHasher     secret.Hasher
	Codes          code.Generator
	Tokens         tokenIssuer
	Notifier       notifier
	// Locker serializes lifecycle operations per email. Defaults to an
	// in-process lock.
	Locker        locker
	NotifyTimeout time.Duration
	// Background runs fire-and-forget work. Defaults to a new goroutine.
	Background func(func())
}

type service struct {
	repo          userStore
	passwords     secret.Hasher
	codeHasher    secret.Hasher
	codes         code.Generator
	tokens        tokenIssuer
	notifier      notifier
	locks         locker
	notifyTimeout time.Duration
	background    func(func())

	dummyOnce   sync.Once
	dummyDigest string
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		repo:          deps.UserRepo,
		passwords:     deps.PasswordHasher,
		codeHasher:    deps.CodeHasher,
		codes:         deps.Codes,
		tokens:        deps.Tokens,
		notifier:      deps.Notifier,
		locks:         deps.Locker,
		notifyTimeout: deps.NotifyTimeout,
		background:    deps.Background,
	}
	if s.locks == nil {
		s.locks = keylock.New()
	}
	if s.notifyTimeout <= 0 {
		s.notifyTimeout = defaultNotifyTimeout
	}
	if s.background == nil {
		s.background = func(f func()) { go f() }
	}
	return s
}

func (s *service) Register(ctx context.Context, req domain.CreateUserRequest) (*domain.PublicUser, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	email := domain.NormalizeEmail(req.Email)

	unlock, err := s.locks.Lock(ctx, email)
	if err != nil {
		return nil, err
	}
	defer unlock()

	// The store enforces uniqueness on Create as well; these lookups only
	// give the common case a clean error without hashing first.
	if err := s.ensureAbsent(ctx, email, req.Username); err != nil {
		return nil, err
	}

	pwHash, err := s.passwords.Hash(req.Password)
	if err != nil {
		return nil, err
	}
	plain, digest, err := s.newCode()
	if err != nil {
		return nil, err
	}

	u := &domain.User{
		UserID:           id.New(),
		Username:         req.Username,
		Email:            email,
		PasswordHash:     pwHash,
		RecoveryEmail:    normalizeOptional(req.RecoveryEmail),
		Verified:         false,
		VerificationCode: &digest,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}

	msg := verificationMessage(u.Username, plain)
	s.background(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.notifyTimeout)
		defer cancel()
		if err := s.notifier.Send(ctx, u.Email, msg.subject, msg.body); err != nil {
			slog.Warn("failed to send verification code", "email", u.Email, "err", err)
		}
	})
	return u.Public(), nil
}

func (s *service) VerifyAccount(ctx context.Context, req domain.VerifyAccountRequest) error {
	if err := validate.Struct(req); err != nil {
		return err
	}
	email := domain.NormalizeEmail(req.Email)

	unlock, err := s.locks.Lock(ctx, email)
	if err != nil {
		return err
	}
	defer unlock()

	u, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if u.Verified {
		return fmt.Errorf("account already verified: %w", domain.ErrConflict)
	}
	if err := s.checkCode(req.VerificationCode, u); err != nil {
		return err
	}

	err = s.repo.Update(ctx, domain.ByEmail(email).WithCode(*u.VerificationCode), map[string]interface{}{
		domain.FieldVerified:         true,
		domain.FieldVerificationCode: nil,
	})
	if err != nil {
		return err
	}

	s.notifyAwait(ctx, u.Email, verifiedMessage(u.Username))
	return nil
}

func (s *service) Login(ctx context.Context, req domain.LoginRequest) (string, *domain.PublicUser, error) {
	if err := validate.Struct(req); err != nil {
		return "", nil, err
	}
	email := domain.NormalizeEmail(req.Email)

	u, err := s.repo.GetByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		// Spend the same hashing time as a real attempt.
		_, _ = s.passwords.Verify(req.Password, s.dummy())
		return "", nil, err
	}
	if err != nil {
		return "", nil, err
	}
	if !u.Verified {
		return "", nil, fmt.Errorf("account not verified: %w", domain.ErrForbidden)
	}
	ok, err := s.passwords.Verify(req.Password, u.PasswordHash)
	if err != nil {
		return "", nil, err
	}
	if !ok {
		return "", nil, fmt.Errorf("invalid email or password: %w", domain.ErrInvalidCredentials)
	}

	token, err := s.tokens.Sign(u)
	if err != nil {
		return "", nil, err
	}
	return token, u.Public(), nil
}

func (s *service) RequestPasswordReset(ctx context.Context, req domain.PasswordResetRequest) error {
	if err := validate.Struct(req); err != nil {
		return err
	}
	email := domain.NormalizeEmail(req.Email)

	unlock, err := s.locks.Lock(ctx, email)
	if err != nil {
		return err
	}
	defer unlock()

	u, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	plain, digest, err := s.newCode()
	if err != nil {
		return err
	}
	if err := s.repo.Update(ctx, domain.ByEmail(email), map[string]interface{}{
		domain.FieldVerificationCode: digest,
	}); err != nil {
		return err
	}

	msg := resetCodeMessage(u.Username, plain)
	sendCtx, cancel := context.WithTimeout(ctx, s.notifyTimeout)
	defer cancel()
	if err := s.notifier.Send(sendCtx, u.Email, msg.subject, msg.body); err != nil {
		return fmt.Errorf("send reset code: %w", err)
	}
	return nil
}

func (s *service) ResetPassword(ctx context.Context, email string, req domain.ResetPasswordRequest) error {
	if err := validate.Email(email); err != nil {
		return err
	}
	if err := validate.Struct(req); err != nil {
		return err
	}
	email = domain.NormalizeEmail(email)

	unlock, err := s.locks.Lock(ctx, email)
	if err != nil {
		return err
	}
	defer unlock()

	u, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !u.Verified {
		return fmt.Errorf("account not verified: %w", domain.ErrForbidden)
	}
	if !u.PendingCode() {
		return fmt.Errorf("no password reset pending: %w", domain.ErrConflict)
	}
	if err := s.checkCode(req.VerificationCode, u); err != nil {
		return err
	}

	pwHash, err := s.passwords.Hash(req.Password)
	if err != nil {
		return err
	}
	err = s.repo.Update(ctx, domain.ByEmail(email).WithCode(*u.VerificationCode), map[string]interface{}{
		domain.FieldPasswordHash:     pwHash,
		domain.FieldVerificationCode: nil,
	})
	if err != nil {
		return err
	}

	s.notifyAwait(ctx, u.Email, passwordChangedMessage(u.Username))
	return nil
}

func (s *service) ensureAbsent(ctx context.Context, email, username string) error {
	_, err := s.repo.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return domain.ErrDuplicateEmail
	case !errors.Is(err, domain.ErrNotFound):
		return err
	}
	_, err = s.repo.GetByUsername(ctx, username)
	switch {
	case err == nil:
		return domain.ErrDuplicateUsername
	case !errors.Is(err, domain.ErrNotFound):
		return err
	}
	return nil
}

func (s *service) newCode() (plain, digest string, err error) {
	plain, err = s.codes.Generate()
	if err != nil {
		return "", "", err
	}
	digest, err = s.codeHasher.Hash(plain)
	if err != nil {
		return "", "", err
	}
	return plain, digest, nil
}

func (s *service) checkCode(plain string, u *domain.User) error {
	if !u.PendingCode() {
		return fmt.Errorf("invalid verification code: %w", domain.ErrInvalidCode)
	}
	ok, err := s.codeHasher.Verify(plain, *u.VerificationCode)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("invalid verification code: %w", domain.ErrInvalidCode)
	}
	return nil
}

// notifyAwait sends a confirmation and waits for the attempt. Failure is
// logged only: the state change it confirms has already been stored.
func (s *service) notifyAwait(ctx context.Context, to string, msg message) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTimeout)
	defer cancel()
	if err := s.notifier.Send(ctx, to, msg.subject, msg.body); err != nil {
		slog.Warn("failed to send confirmation", "email", to, "subject", msg.subject, "err", err)
	}
}

func (s *service) dummy() string {
	s.dummyOnce.Do(func() {
		s.dummyDigest, _ = s.passwords.Hash("dummy-password")
	})
	return s.dummyDigest
}

func normalizeOptional(email *string) *string {
	if email == nil || *email == "" {
		return nil
	}
	n := domain.NormalizeEmail(*email)
	return &n
}
