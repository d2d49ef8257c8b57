package normalize

import (
	"crypto/sha256"
	"fmt"
)

// BytesHash computes the hex-encoded SHA-256 of the input files of a run.
// A zero byte follows each part, so ("ab","c") and ("a","bc") differ.
func BytesHash(parts ...[]byte) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}
