package services

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"strings"
)

const pinDigits = 6

// GeneratePin returns a uniformly random 6-digit numeric code.
func GeneratePin() (string, error) {
	var b strings.Builder
	b.Grow(pinDigits)
	ten := big.NewInt(10)
	for i := 0; i < pinDigits; i++ {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", fmt.Errorf("generate pin: %w", err)
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}

func pinEqual(stored, given string) bool {
	return subtle.ConstantTimeCompare([]byte(stored), []byte(given)) == 1
}
