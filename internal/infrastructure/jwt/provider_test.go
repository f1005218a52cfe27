package jwtinfra

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/go-auth-api/internal/config"
	"github.com/go-auth-api/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func newTestProvider(t *testing.T, clock *fakeClock) *Provider {
	t.Helper()
	p, err := NewProvider(&config.Config{JWTSecret: "test-secret", JWTExpiry: 30 * time.Minute}, WithClock(clock.Now))
	require.NoError(t, err)
	return p
}

var alice = &domain.User{UserID: "01HZX", Username: "alice", Email: "alice@x.com", IsAdmin: false}

func TestNewProvider_RejectsBadConfig(t *testing.T) {
	_, err := NewProvider(&config.Config{JWTExpiry: time.Minute})
	assert.Error(t, err)
	_, err = NewProvider(&config.Config{JWTSecret: "s"})
	assert.Error(t, err)
}

func TestSignVerify_ClaimsMatchIssuance(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	p := newTestProvider(t, clock)

	tok, err := p.Sign(alice)
	require.NoError(t, err)

	claims, err := p.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, domain.Principal{ID: "01HZX", Username: "alice", Email: "alice@x.com", IsAdmin: false}, claims.Principal())
}

func TestVerify_ExpiresAfterWindow(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	p := newTestProvider(t, clock)

	tok, err := p.Sign(alice)
	require.NoError(t, err)

	clock.t = clock.t.Add(29 * time.Minute)
	_, err = p.Verify(tok)
	require.NoError(t, err)

	clock.t = clock.t.Add(2 * time.Minute)
	_, err = p.Verify(tok)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
}

func TestVerify_FailuresCollapseToUnauthorized(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	p := newTestProvider(t, clock)
	tok, err := p.Sign(alice)
	require.NoError(t, err)

	other, err := NewProvider(&config.Config{JWTSecret: "other-secret", JWTExpiry: time.Minute}, WithClock(clock.Now))
	require.NoError(t, err)
	foreign, err := other.Sign(alice)
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{Email: "alice@x.com"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	parts := strings.Split(tok, ".")
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]

	for name, bad := range map[string]string{
		"garbage":  "not-a-token",
		"empty":    "",
		"foreign":  foreign,
		"alg none": none,
		"tampered": tampered,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := p.Verify(bad)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrUnauthorized))
			assert.Equal(t, "invalid token: unauthorized", err.Error())
		})
	}
}

func TestVerify_RequiresExpiry(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	p := newTestProvider(t, clock)
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{Email: "alice@x.com"}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = p.Verify(tok)
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
}
