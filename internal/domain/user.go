package domain

import "strings"

type User struct {
	UserID           string  `json:"id" dynamodbav:"user_id"`
	Username         string  `json:"user" dynamodbav:"username"`
	Email            string  `json:"email" dynamodbav:"email"`
	PasswordHash     string  `json:"-" dynamodbav:"password_hash"`
	RecoveryEmail    *string `json:"recovery_email,omitempty" dynamodbav:"recovery_email,omitempty"`
	Verified         bool    `json:"verified" dynamodbav:"verified"`
	VerificationCode *string `json:"-" dynamodbav:"verification_code,omitempty"`
	IsAdmin          bool    `json:"isAdmin" dynamodbav:"is_admin"`
}

// PendingCode reports whether a verification or reset code digest is stored.
func (u *User) PendingCode() bool {
	return u.VerificationCode != nil && *u.VerificationCode != ""
}

// PublicUser is the only user shape that leaves the service boundary.
type PublicUser struct {
	UserID        string  `json:"id"`
	Username      string  `json:"user"`
	Email         string  `json:"email"`
	RecoveryEmail *string `json:"recovery_email,omitempty"`
	Verified      bool    `json:"verified"`
	IsAdmin       bool    `json:"isAdmin"`
}

func (u *User) Public() *PublicUser {
	if u == nil {
		return nil
	}
	return &PublicUser{
		UserID:        u.UserID,
		Username:      u.Username,
		Email:         u.Email,
		RecoveryEmail: u.RecoveryEmail,
		Verified:      u.Verified,
		IsAdmin:       u.IsAdmin,
	}
}

type CreateUserRequest struct {
	Username      string  `json:"user" validate:"required,min=5,max=15"`
	Email         string  `json:"email" validate:"required,email"`
	Password      string  `json:"password" validate:"required,min=6,max=20,bcryptmax"`
	RecoveryEmail *string `json:"recovery_email" validate:"omitempty,email"`
}

// UpdateUserRequest is the full replacement body for PUT.
type UpdateUserRequest struct {
	Username      string  `json:"user" validate:"required,min=5,max=15"`
	Email         string  `json:"email" validate:"required,email"`
	Password      string  `json:"password" validate:"required,min=6,max=20,bcryptmax"`
	RecoveryEmail *string `json:"recovery_email" validate:"omitempty,email"`
}

// PatchUserRequest carries the subset of fields a PATCH may change.
type PatchUserRequest struct {
	Email         *string `json:"email" validate:"omitempty,email"`
	Password      *string `json:"password" validate:"omitempty,min=6,max=20,bcryptmax"`
	RecoveryEmail *string `json:"recovery_email" validate:"omitempty,email"`
}

func (r PatchUserRequest) Empty() bool {
	return r.Email == nil && r.Password == nil && r.RecoveryEmail == nil
}

// NormalizeEmail lower-cases and trims an address so that lookups and
// uniqueness checks agree on one canonical form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
