package domain

// Principal is the identity carried by a verified bearer token.
type Principal struct {
	ID       string `json:"id"`
	Username string `json:"user"`
	Email    string `json:"email"`
	IsAdmin  bool   `json:"isAdmin"`
}
