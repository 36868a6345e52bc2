package utils

import (
	"crypto/rand"
	"math/big"
)

// RandomDigits returns an n-digit numeric code drawn from crypto/rand, used
// for email one-time passwords.
func RandomDigits(n int) (string, error) {
	buf := make([]byte, n)
	ten := big.NewInt(10)
	for i := range buf {
		d, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		buf[i] = byte('0' + d.Int64())
	}
	return string(buf), nil
}

// RandomToken returns a URL-safe random token of 2*n hex characters, used
// for password reset links.
func RandomToken(n int) (string, error) {
	return randomHex(n)
}
