// Package codegen produces candidate activation codes. Uniqueness is the
// store's job; a generator only needs to make collisions unlikely.
package codegen

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
)

// Generator returns a new candidate activation code.
type Generator interface {
	Generate() (string, error)
}

const (
	prefixBytes  = 16
	suffixLength = 16
	suffixChars  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789abcdefghijklmnopqrstuvwxyz"

	// CodeLength is 32 hex characters followed by a 16 character suffix.
	CodeLength = prefixBytes*2 + suffixLength
)

// Random draws every character from crypto/rand.
type Random struct{}

func NewRandom() Random {
	return Random{}
}

func (Random) Generate() (string, error) {
	prefix := make([]byte, prefixBytes)
	if _, err := rand.Read(prefix); err != nil {
		return "", fmt.Errorf("read random prefix: %w", err)
	}

	chars := []byte(suffixChars)
	max := big.NewInt(int64(len(chars)))
	suffix := make([]byte, suffixLength)
	for i := range suffix {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("read random suffix: %w", err)
		}
		suffix[i] = chars[n.Int64()]
	}

	return hex.EncodeToString(prefix) + string(suffix), nil
}
