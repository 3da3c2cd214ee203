// Package fingerprint derives the one-way index key for an invite link.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
)

// Of returns the hex-encoded SHA-256 of the invite link value. The same link
// always fingerprints to the same key, and the link cannot be recovered from it.
func Of(link string) string {
	sum := sha256.Sum256([]byte(link))
	return hex.EncodeToString(sum[:])
}
