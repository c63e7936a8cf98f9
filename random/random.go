// Package random produces unguessable strings for tokens.
package random

import (
	crand "crypto/rand"
	"io"
	"math/big"
)

const charset = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// StringSecure returns length characters drawn uniformly from charset using
// crypto/rand.
func StringSecure(length int) (string, error) {
	return StringFrom(crand.Reader, length)
}

// StringFrom is StringSecure reading its entropy from r.
func StringFrom(r io.Reader, length int) (string, error) {
	b := make([]byte, length)
	l := big.NewInt(int64(len(charset)))
	for i := range b {
		num, err := crand.Int(r, l)
		if err != nil {
			return "", err
		}
		b[i] = charset[num.Int64()]
	}
	return string(b), nil
}
