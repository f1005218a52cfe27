package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-auth-api/internal/domain"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

const internalMessage = "internal server error"

// Envelope is the response wrapper for every endpoint.
type Envelope struct {
	Status   int         `json:"status"`
	Message  string      `json:"message"`
	Response interface{} `json:"response,omitempty"`
	Token    string      `json:"token,omitempty"`
	Error    string      `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeOK(w http.ResponseWriter, status int, msg string, payload interface{}) {
	writeJSON(w, status, Envelope{Status: status, Message: msg, Response: payload})
}

// writeError maps err onto its status code. Internal failures are logged in
// full and answered with a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	detail := err.Error()
	if status == http.StatusInternalServerError {
		slog.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", chimiddleware.GetReqID(r.Context()),
			"err", err,
		)
		detail = internalMessage
	}
	writeJSON(w, status, Envelope{Status: status, Message: http.StatusText(status), Error: detail})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrInvalidCode):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidCredentials), errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// decode reads a JSON body into v. A malformed body is a validation error.
func decode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", domain.ErrValidation)
	}
	return nil
}

func NotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, Envelope{
		Status:  http.StatusNotFound,
		Message: http.StatusText(http.StatusNotFound),
		Error:   "route " + r.URL.Path + " not found",
	})
}

func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, Envelope{
		Status:  http.StatusMethodNotAllowed,
		Message: http.StatusText(http.StatusMethodNotAllowed),
		Error:   "method " + r.Method + " not allowed on " + r.URL.Path,
	})
}
