// Package checksum provides content hashing for blocks and store state.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Canonical returns the hex-encoded SHA-256 digest of v serialized as
// RFC 8785 canonical JSON, so the hash is stable across key ordering and
// encoder whitespace differences.
func Canonical(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("checksum: marshal: %w", err)
	}
	canon, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("checksum: canonicalize: %w", err)
	}
	return Sum(canon), nil
}
