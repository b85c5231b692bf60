// Package codegen generates the short codes printed on tickets and vouchers.
package codegen

import (
	"context"
	"crypto/rand"
	"math/big"

	"github.com/pkg/errors"
)

const (
	// MaxAttempts is how many candidates are tried before giving up.
	MaxAttempts = 5

	// Alphabet is uppercase alphanumeric without the look-alikes 0/O and 1/I.
	Alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

	TicketCodeLength  = 8
	VoucherCodeLength = 10
)

var ErrCodeExhausted = errors.New("could not generate a unique code")

// ExistsFunc reports whether code is already taken.
type ExistsFunc func(ctx context.Context, code string) (bool, error)

type Generator struct {
	// Candidate returns the next code to try. Defaults to RandomCode(length).
	Candidate func() (string, error)
}

func New(length int) *Generator {
	return &Generator{Candidate: func() (string, error) { return RandomCode(length) }}
}

// Generate returns the first candidate that exists does not report as taken.
// After MaxAttempts collisions it fails with ErrCodeExhausted; a colliding code is never returned.
func (g *Generator) Generate(ctx context.Context, exists ExistsFunc) (string, error) {
	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		code, err := g.Candidate()
		if err != nil {
			return "", errors.Wrap(err, "generating candidate")
		}
		taken, err := exists(ctx, code)
		if err != nil {
			return "", errors.Wrap(err, "checking code uniqueness")
		}
		if !taken {
			return code, nil
		}
	}
	return "", ErrCodeExhausted
}

// RandomCode returns a crypto/rand code of the given length over Alphabet.
func RandomCode(length int) (string, error) {
	max := big.NewInt(int64(len(Alphabet)))
	buf := make([]byte, length)
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = Alphabet[n.Int64()]
	}
	return string(buf), nil
}
