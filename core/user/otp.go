package user

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

const loginCodeDigits = 6

var ErrOTPNotFound = errors.New("login code not found")

type (
	// OTPEntry is a pending one-time sign-in code.
	OTPEntry struct {
		Hash     []byte
		Attempts int
	}

	// OTPStore keeps at most one pending code per email, for a limited time.
	OTPStore interface {
		// Save replaces any pending code of email and resets its attempts counter.
		Save(ctx context.Context, email string, hash []byte, ttl time.Duration) error
		// Get returns ErrOTPNotFound when no unexpired code is pending.
		Get(ctx context.Context, email string) (OTPEntry, error)
		IncrAttempts(ctx context.Context, email string) (int, error)
		Delete(ctx context.Context, email string) error
	}
)

func newLoginCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", loginCodeDigits, n.Int64()), nil
}

func hashLoginCode(code string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(code), bcrypt.MinCost)
}

func checkLoginCode(hash []byte, code string) bool {
	return bcrypt.CompareHashAndPassword(hash, []byte(code)) == nil
}
