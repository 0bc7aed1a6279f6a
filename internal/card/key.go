package card

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// NormalizeContent lowercases, trims, and normalizes line endings in a
// content field so that cosmetic edits in the source markdown do not
// change a pair's identity during reconciliation.
func NormalizeContent(s string) string {
	s = strings.ToLower(s)
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return s
}

// ContentKey returns a stable identity for a (text, answer) pair: the
// SHA-256 of the normalized fields joined with a newline. The newline
// keeps "ab"+"c" and "a"+"bc" distinct.
func ContentKey(text, answer string) string {
	normalized := NormalizeContent(text) + "\n" + NormalizeContent(answer)
	sum := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("%x", sum)
}
