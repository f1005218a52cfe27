package dynamo

// Key attribute names and guard prefixes. Using constants prevents silent runtime bugs
// caused by key typos.
const (
	attrUserID   = "user_id"
	attrIdentity = "identity"

	identityEmail    = "email#"
	identityUsername = "username#"
)

func emailIdentity(email string) string { return identityEmail + email }

func usernameIdentity(username string) string { return identityUsername + username }
