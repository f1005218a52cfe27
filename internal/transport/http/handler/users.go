package handler

import (
	"net/http"

	"github.com/go-auth-api/internal/application/account"
	"github.com/go-auth-api/internal/application/user"
	"github.com/go-auth-api/internal/domain"
	"github.com/go-chi/chi/v5"
)

// UserHandler handles registration and user CRUD endpoints.
type UserHandler struct {
	svc      user.Service
	accounts account.Service
}

func NewUserHandler(svc user.Service, accounts account.Service) *UserHandler {
	return &UserHandler{svc: svc, accounts: accounts}
}

func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateUserRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	u, err := h.accounts.Register(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, "user registered, check your email for the verification code", u)
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "users", users)
}

func (h *UserHandler) GetByUsername(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.GetByUsername(r.Context(), chi.URLParam(r, "user"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "user", u)
}

func (h *UserHandler) GetByEmail(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.GetByEmail(r.Context(), chi.URLParam(r, "email"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "user", u)
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateUserRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	u, err := h.svc.Update(r.Context(), chi.URLParam(r, "user"), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "user updated", u)
}

func (h *UserHandler) Patch(w http.ResponseWriter, r *http.Request) {
	var req domain.PatchUserRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	u, err := h.svc.Patch(r.Context(), chi.URLParam(r, "user"), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "user updated", u)
}

func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "user")); err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "user deleted", nil)
}
