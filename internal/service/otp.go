package service

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"time"

	"edu-consult/internal/domain"
)

const (
	DefaultOTPLength = 6
	DefaultOTPTTL    = 10 * time.Minute
	maxOTPLength     = 18
)

// GenerateOTP devuelve un código numérico uniforme en [10^(length-1), 10^length - 1]
// usando crypto/rand.
func GenerateOTP(length int) (string, error) {
	if length < 1 || length > maxOTPLength {
		return "", fmt.Errorf("otp length must be between 1 and %d, got %d", maxOTPLength, length)
	}
	ten := big.NewInt(10)
	lo := new(big.Int).Exp(ten, big.NewInt(int64(length-1)), nil)
	hi := new(big.Int).Exp(ten, big.NewInt(int64(length)), nil)
	span := new(big.Int).Sub(hi, lo)

	n, err := rand.Int(rand.Reader, span)
	if err != nil {
		return "", err
	}
	return n.Add(n, lo).String(), nil
}

// ExpiryFromNow devuelve now + ttl en UTC.
func ExpiryFromNow(now time.Time, ttl time.Duration) time.Time {
	return now.UTC().Add(ttl)
}

// OTPMatches exige coincidencia exacta del código y expiración estrictamente futura.
func OTPMatches(user domain.User, code string, now time.Time) bool {
	if !user.HasPendingReset() || code == "" {
		return false
	}
	if !user.ResetCodeExpiresAt.After(now) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(user.ResetCode), []byte(code)) == 1
}
