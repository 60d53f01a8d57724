// Package identity generates customer-facing loyalty codes and normalizes
// phone numbers into canonical identity keys.
package identity

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
)

// ErrInvalidPhone indicates a phone number that cannot be normalized
// into a canonical 10-digit key.
var ErrInvalidPhone = errors.New("identity: invalid phone number")

// Source is the randomness used for code generation. *rand.Rand satisfies
// it; tests inject a seeded source for deterministic codes.
type Source interface {
	IntN(n int) int
}

// CodeDigits is the fixed length of a loyalty code.
const CodeDigits = 6

const (
	codeMin  = 100000
	codeSpan = 900000 // codes are uniform over [100000, 999999]
)

// Generator produces loyalty codes from an injected randomness source.
type Generator struct {
	src Source
}

// NewGenerator creates a Generator backed by the given source.
// A nil source falls back to the shared math/rand/v2 generator.
func NewGenerator(src Source) *Generator {
	if src == nil {
		src = defaultSource{}
	}
	return &Generator{src: src}
}

// LoyaltyCode returns a uniformly random 6-digit code as a string.
// Leading zeros never occur: the range is [100000, 999999].
func (g *Generator) LoyaltyCode() string {
	return fmt.Sprintf("%d", codeMin+g.src.IntN(codeSpan))
}

// IsLoyaltyCode reports whether s has the shape of a loyalty code:
// exactly six ASCII digits with a nonzero leading digit.
func IsLoyaltyCode(s string) bool {
	if len(s) != CodeDigits {
		return false
	}
	if s[0] < '1' || s[0] > '9' {
		return false
	}
	for i := 1; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// NormalizePhone strips all non-digit characters and reduces the result to
// the canonical 10-digit key. Inputs longer than 10 digits keep the last 10,
// so "+1 (555) 123-4567" and "5551234567" normalize to the same key.
// Fewer than 10 digits is an ErrInvalidPhone.
func NormalizePhone(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}

	digits := b.String()
	if len(digits) < 10 {
		return "", fmt.Errorf("%w: %q has %d digits, need at least 10", ErrInvalidPhone, raw, len(digits))
	}

	return digits[len(digits)-10:], nil
}

type defaultSource struct{}

func (defaultSource) IntN(n int) int { return rand.IntN(n) }
