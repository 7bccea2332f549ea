package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

// Session id namespaces.
const (
	PrefixOTP     = "otp"
	PrefixHandoff = "bio"
	PrefixReset   = "reset"
)

// NewSessionID returns "<prefix>_<uuid>".
func NewSessionID(prefix string) string {
	return prefix + "_" + uuid.NewString()
}

// NewOTP returns a uniformly random numeric code of the given length.
// Leading zeros are kept.
func NewOTP(digits int) (string, error) {
	if digits < 6 || digits > 10 {
		return "", errors.New("invalid otp digits")
	}

	var b strings.Builder
	b.Grow(digits)

	max := big.NewInt(10)
	for i := 0; i < digits; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}

// HashCode digests a one-time code for storage.
func HashCode(code string) [32]byte {
	return sha256.Sum256([]byte(code))
}

// CodeMatches compares a submitted code against a stored digest in constant
// time.
func CodeMatches(stored [32]byte, submitted string) bool {
	got := HashCode(submitted)
	return subtle.ConstantTimeCompare(stored[:], got[:]) == 1
}
