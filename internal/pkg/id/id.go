package id

import (
	"crypto/rand"

	"github.com/oklog/ulid/v2"
)

// New returns a fresh ULID string. Notification ids sort lexicographically by
// creation time, which keeps a tenant's range keys roughly in insert order
// without a separate sequence.
func New() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}
