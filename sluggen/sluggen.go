// Package sluggen provides short code generation.
// Generators should be safe for concurrent use.
package sluggen

import (
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
)

const (
	// Alphabet is the 62-symbol set codes are drawn from.
	Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	// DefaultLength gives 62^6 (about 5.6e10) possible codes.
	DefaultLength = 6
)

var alphabetSize = big.NewInt(int64(len(Alphabet)))

// Generator generates short codes.
// Implementations should be safe for concurrent use.
type Generator interface {
	Generate(length int) (string, error)
}

// base62Generator draws every symbol independently and uniformly from Alphabet.
type base62Generator struct{}

// NewBase62 returns a new base62 code generator.
func NewBase62() Generator {
	return base62Generator{}
}

// Generate returns a random code of the given length.
func (base62Generator) Generate(length int) (string, error) {
	if length <= 0 {
		return "", errors.New("length must be positive")
	}

	var b strings.Builder
	b.Grow(length)
	for range length {
		// rand.Int is uniform over [0, 62); a byte modulo 62 would favour the first symbols.
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", err
		}
		b.WriteByte(Alphabet[n.Int64()])
	}
	return b.String(), nil
}

// Custom reports whether a caller supplied a custom code.
// Any non-empty string, whitespace included, is accepted verbatim; an empty
// one means a code should be generated instead.
func Custom(code string) (string, bool) {
	if code == "" {
		return "", false
	}
	return code, true
}
