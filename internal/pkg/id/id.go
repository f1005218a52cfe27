package id

import (
	"crypto/rand"

	"github.com/oklog/ulid/v2"
)

// New generates a new ULID string used as the stable user identifier
// carried in the token id claim.
func New() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}
