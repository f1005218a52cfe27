package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-auth-api/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockUserSvc struct{ mock.Mock }

func (m *mockUserSvc) List(ctx context.Context) ([]domain.PublicUser, error) {
	args := m.Called(ctx)
	users, _ := args.Get(0).([]domain.PublicUser)
	return users, args.Error(1)
}
func (m *mockUserSvc) GetByUsername(ctx context.Context, username string) (*domain.PublicUser, error) {
	args := m.Called(ctx, username)
	if u, _ := args.Get(0).(*domain.PublicUser); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockUserSvc) GetByEmail(ctx context.Context, email string) (*domain.PublicUser, error) {
	args := m.Called(ctx, email)
	if u, _ := args.Get(0).(*domain.PublicUser); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockUserSvc) Update(ctx context.Context, username string, req domain.UpdateUserRequest) (*domain.PublicUser, error) {
	args := m.Called(ctx, username, req)
	if u, _ := args.Get(0).(*domain.PublicUser); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockUserSvc) Patch(ctx context.Context, username string, req domain.PatchUserRequest) (*domain.PublicUser, error) {
	args := m.Called(ctx, username, req)
	if u, _ := args.Get(0).(*domain.PublicUser); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockUserSvc) Delete(ctx context.Context, username string) error {
	return m.Called(ctx, username).Error(0)
}
func (m *mockUserSvc) EnsureAdmin(ctx context.Context, username, email, password string) error {
	return m.Called(ctx, username, email, password).Error(0)
}

type mockAccountSvc struct{ mock.Mock }

func (m *mockAccountSvc) Register(ctx context.Context, req domain.CreateUserRequest) (*domain.PublicUser, error) {
	args := m.Called(ctx, req)
	if u, _ := args.Get(0).(*domain.PublicUser); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockAccountSvc) VerifyAccount(ctx context.Context, req domain.VerifyAccountRequest) error {
	return m.Called(ctx, req).Error(0)
}
func (m *mockAccountSvc) Login(ctx context.Context, req domain.LoginRequest) (string, *domain.PublicUser, error) {
	args := m.Called(ctx, req)
	u, _ := args.Get(1).(*domain.PublicUser)
	return args.String(0), u, args.Error(2)
}
func (m *mockAccountSvc) RequestPasswordReset(ctx context.Context, req domain.PasswordResetRequest) error {
	return m.Called(ctx, req).Error(0)
}
func (m *mockAccountSvc) ResetPassword(ctx context.Context, email string, req domain.ResetPasswordRequest) error {
	return m.Called(ctx, email, req).Error(0)
}

// --- helpers ---

func jsonReq(t *testing.T, method, target string, v interface{}) *http.Request {
	t.Helper()
	body, err := json.Marshal(v)
	require.NoError(t, err)
	return httptest.NewRequest(method, target, bytes.NewReader(body))
}

// withParam injects a chi URL param into the request context.
func withParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&env))
	return env
}
