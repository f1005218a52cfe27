package domain

type VerifyAccountRequest struct {
	Email            string `json:"email" validate:"required,email"`
	VerificationCode string `json:"verificationCode" validate:"required,len=6,numeric"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type PasswordResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordRequest struct {
	VerificationCode string `json:"verificationCode" validate:"required,len=6,numeric"`
	Password         string `json:"password" validate:"required,min=6,max=20,bcryptmax"`
}
