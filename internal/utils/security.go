package contextutils

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// HashIP returns a keyed BLAKE2b-256 digest of the client address so attempts can
// be correlated without storing the raw IP. An empty ip yields "".
func HashIP(ip, salt string) string {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return ""
	}

	var key []byte
	if salt != "" {
		key = []byte(salt)
		if len(key) > blake2b.Size {
			sum := blake2b.Sum256(key)
			key = sum[:]
		}
	}

	h, err := blake2b.New256(key)
	if err != nil {
		// only reachable with an oversized key, which is folded above
		sum := blake2b.Sum256([]byte(salt + ip))
		return hex.EncodeToString(sum[:])
	}
	h.Write([]byte(ip))
	return hex.EncodeToString(h.Sum(nil))
}

// MaskSecret masks a credential for logging, keeping only the first and last 4 characters.
func MaskSecret(secret string) string {
	if secret == "" {
		return "[EMPTY]"
	}

	if len(secret) <= 8 {
		return strings.Repeat("*", len(secret))
	}

	return secret[:4] + strings.Repeat("*", len(secret)-8) + secret[len(secret)-4:]
}
