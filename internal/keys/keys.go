// Package keys generates plaintext license keys and derives the digests
// under which they are stored. Plaintext keys exist only in transit: the
// store only ever sees the digest.
package keys

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/pkg/errors"
)

// DefaultPrefix is the product tag prepended to generated keys.
const DefaultPrefix = "SMARTCOPY"

const (
	segmentCount = 3
	segmentLen   = 4
	// charset is uppercase alphanumeric; 12 chars drawn from 36 give a
	// little over 62 bits of entropy.
	charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// Digest returns the SHA-256 hex digest of a plaintext license key. It is
// deterministic and is the only form in which keys are persisted.
func Digest(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

// IsDigest reports whether s already looks like a key digest rather than a
// plaintext key.
func IsDigest(s string) bool {
	if len(s) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// Generate produces a fresh human-typeable license key of the form
// PREFIX-XXXX-XXXX-XXXX. An empty prefix falls back to DefaultPrefix.
func Generate(prefix string) (string, error) {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	raw := make([]byte, segmentCount*segmentLen)
	if _, err := rand.Read(raw); err != nil {
		return "", errors.Wrap(err, "failed to gather key entropy")
	}
	var b strings.Builder
	b.WriteString(prefix)
	for i, c := range raw {
		if i%segmentLen == 0 {
			b.WriteByte('-')
		}
		b.WriteByte(charset[int(c)%len(charset)])
	}
	return b.String(), nil
}
