package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-auth-api/internal/application/account"
	"github.com/go-auth-api/internal/domain"
	"github.com/go-chi/chi/v5"
)

// AuthHandler exposes the account lifecycle under /auth.
type AuthHandler struct {
	svc account.Service
}

func NewAuthHandler(svc account.Service) *AuthHandler { return &AuthHandler{svc: svc} }

func (h *AuthHandler) VerifyAccount(w http.ResponseWriter, r *http.Request) {
	var req domain.VerifyAccountRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.svc.VerifyAccount(r.Context(), req); err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "account verified", nil)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	token, u, err := h.svc.Login(r.Context(), req)
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrInvalidCredentials) {
		// One answer for unknown email and wrong password.
		err = fmt.Errorf("invalid email or password: %w", domain.ErrInvalidCredentials)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Envelope{
		Status:   http.StatusOK,
		Message:  "login successful",
		Response: u,
		Token:    token,
	})
}

func (h *AuthHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req domain.PasswordResetRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.svc.RequestPasswordReset(r.Context(), req); err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "password reset code sent", nil)
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req domain.ResetPasswordRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.svc.ResetPassword(r.Context(), chi.URLParam(r, "email"), req); err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "password updated", nil)
}
