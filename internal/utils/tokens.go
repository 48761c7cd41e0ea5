package utils

import (
	"crypto/rand"
	"encoding/hex"
)

// RandomHex returns nBytes of crypto/rand entropy hex-encoded.
func RandomHex(nBytes int) (string, error) {
	if nBytes <= 0 {
		nBytes = 16
	}
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
