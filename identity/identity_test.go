package identity_test

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/xraph/loyalty/identity"
)

func TestLoyaltyCodeShape(t *testing.T) {
	gen := identity.NewGenerator(nil)
	for range 100 {
		code := gen.LoyaltyCode()
		if !identity.IsLoyaltyCode(code) {
			t.Fatalf("generated code %q is not a valid loyalty code", code)
		}
	}
}

func TestLoyaltyCodeDeterministic(t *testing.T) {
	a := identity.NewGenerator(rand.New(rand.NewPCG(1, 2)))
	b := identity.NewGenerator(rand.New(rand.NewPCG(1, 2)))

	for range 10 {
		if ca, cb := a.LoyaltyCode(), b.LoyaltyCode(); ca != cb {
			t.Fatalf("seeded generators diverged: %q != %q", ca, cb)
		}
	}
}

func TestIsLoyaltyCode(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"123456", true},
		{"999999", true},
		{"100000", true},
		{"012345", false}, // leading zero
		{"12345", false},  // too short
		{"1234567", false},
		{"12345a", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := identity.IsLoyaltyCode(tt.input); got != tt.want {
				t.Errorf("IsLoyaltyCode(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"bare digits", "5551234567", "5551234567"},
		{"formatted", "(555) 123-4567", "5551234567"},
		{"with country code", "+1 (555) 123-4567", "5551234567"},
		{"dots", "555.123.4567", "5551234567"},
		{"eleven digits keeps last ten", "15551234567", "5551234567"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := identity.NormalizePhone(tt.input)
			if err != nil {
				t.Fatalf("NormalizePhone(%q) error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("NormalizePhone(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizePhoneInvalid(t *testing.T) {
	for _, input := range []string{"", "555-1234", "abc", "123456789"} {
		t.Run(input, func(t *testing.T) {
			_, err := identity.NormalizePhone(input)
			if !errors.Is(err, identity.ErrInvalidPhone) {
				t.Errorf("NormalizePhone(%q) error = %v, want ErrInvalidPhone", input, err)
			}
		})
	}
}
