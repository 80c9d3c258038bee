package token

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"golang.org/x/crypto/blake2b"
)

// Generator produces verification challenge tokens. Uniqueness must hold
// across the lifetime of the system: a collision would let one user's
// completion satisfy another's pending challenge. The input combines the
// user, the subject, a nanosecond timestamp and 16 random bytes; the
// digest exists to yield a fixed-length, URL-safe opaque string, not for
// confidentiality.
type Generator struct{}

// New returns a 64-character hex token for the given user/subject pair.
func (Generator) New(userID, subjectID string, now time.Time) (string, error) {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate token nonce: %w", err)
	}
	seed := fmt.Sprintf("%s|%s|%d|%x", userID, subjectID, now.UnixNano(), nonce)
	sum := blake2b.Sum256([]byte(seed))
	return hex.EncodeToString(sum[:]), nil
}
