package utils

import (
	"crypto/rand"
	"math/big"
)

// GenerateCode returns a string of length decimal digits, each drawn
// independently from crypto/rand. Leading zeros are allowed.
func GenerateCode(length int) (string, error) {
	digits := make([]byte, length)
	for i := range digits {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		digits[i] = '0' + byte(n.Int64())
	}
	return string(digits), nil
}
