package domain

// Stored attribute names used in partial update maps. The same names are the
// DynamoDB attribute names and the Postgres column names.
const (
	FieldUsername         = "username"
	FieldEmail            = "email"
	FieldPasswordHash     = "password_hash"
	FieldRecoveryEmail    = "recovery_email"
	FieldVerified         = "verified"
	FieldVerificationCode = "verification_code"
	FieldIsAdmin          = "is_admin"
)

// UserMatch selects the record an update applies to. Exactly one of Email or
// Username is set. When CodeHash is non-nil the update only applies while the
// stored verification code digest still equals it.
type UserMatch struct {
	Email    string
	Username string
	CodeHash *string
}

func ByEmail(email string) UserMatch { return UserMatch{Email: email} }

func ByUsername(username string) UserMatch { return UserMatch{Username: username} }

// WithCode returns a copy of m guarded by the given code digest.
func (m UserMatch) WithCode(hash string) UserMatch {
	m.CodeHash = &hash
	return m
}
