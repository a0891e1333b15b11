package utils

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

// separator keeps ("ab", "c") and ("a", "bc") from hashing to the same key.
const separator = "\x1f"

func digest(parts ...string) [sha256.Size]byte {
	h := sha256.New()
	for i, part := range parts {
		if i > 0 {
			h.Write([]byte(separator))
		}
		h.Write([]byte(part))
	}

	var sum [sha256.Size]byte
	copy(sum[:], h.Sum(nil))
	return sum
}

// ContentHash returns a stable hex digest of the given parts.
func ContentHash(parts ...string) string {
	sum := digest(parts...)
	return hex.EncodeToString(sum[:])
}

// Seed derives a deterministic non-negative 31-bit seed from the given parts.
// The value fits both int32 and int64 seed parameters of the evaluator backends.
func Seed(parts ...string) int64 {
	sum := digest(parts...)
	return int64(binary.BigEndian.Uint32(sum[:4]) & 0x7fffffff)
}
