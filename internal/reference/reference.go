package reference

import (
	"crypto/rand"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

const (
	Prefix     = "TRX"
	alphabet   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	shortLen   = 8
	fallbackLn = 12
)

var alphabetLen = big.NewInt(int64(len(alphabet)))

// New returns TRX followed by 8 uppercase alphanumerics.
func New() string {
	var b strings.Builder
	b.Grow(len(Prefix) + shortLen)
	b.WriteString(Prefix)
	for i := 0; i < shortLen; i++ {
		n, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			// crypto/rand failing is not recoverable here; the uuid suffix is still random.
			return Fallback()
		}
		b.WriteByte(alphabet[n.Int64()])
	}
	return b.String()
}

// Fallback returns TRX followed by 12 uppercase hex chars of a random uuid.
// Used when a short reference collides.
func Fallback() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return Prefix + strings.ToUpper(hex[:fallbackLn])
}

// Valid reports whether s looks like a reference produced by this package.
func Valid(s string) bool {
	if !strings.HasPrefix(s, Prefix) {
		return false
	}
	rest := s[len(Prefix):]
	if len(rest) != shortLen && len(rest) != fallbackLn {
		return false
	}
	for i := 0; i < len(rest); i++ {
		if !strings.ContainsRune(alphabet, rune(rest[i])) {
			return false
		}
	}
	return true
}
