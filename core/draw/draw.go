// Package draw implements the weighted random pick behind the spin wheel.
package draw

import (
	"crypto/rand"
	"math/big"

	"github.com/pkg/errors"
)

// Unlimited marks an item whose stock never runs out.
const Unlimited = -1

var ErrNothingToDraw = errors.New("nothing left to draw")

// Item is one slot of the wheel.
type Item struct {
	ID       string
	Weight   int
	Quantity int // remaining stock; Unlimited (or any negative value) for no limit
}

// Eligible reports whether it can currently be drawn.
func (it Item) Eligible() bool {
	return it.Weight > 0 && it.Quantity != 0
}

// Source yields uniform integers in [0, n).
type Source interface {
	Int63n(n int64) int64
}

// CryptoSource draws from crypto/rand. It is safe for concurrent use.
type CryptoSource struct{}

func (CryptoSource) Int63n(n int64) int64 {
	v, err := rand.Int(rand.Reader, big.NewInt(n))
	if err != nil {
		panic(errors.Wrap(err, "reading crypto/rand"))
	}
	return v.Int64()
}

// TotalWeight sums the weights of the eligible items.
func TotalWeight(items []Item) int64 {
	var total int64
	for _, it := range items {
		if it.Eligible() {
			total += int64(it.Weight)
		}
	}
	return total
}

// Pick draws r uniformly in [0, totalWeight) over the eligible items and returns the index of the
// item whose cumulative weight bucket contains r. Out of stock items are never picked.
func Pick(items []Item, src Source) (int, error) {
	total := TotalWeight(items)
	if total <= 0 {
		return -1, ErrNothingToDraw
	}

	r := src.Int63n(total)
	var cumulative int64
	for i, it := range items {
		if !it.Eligible() {
			continue
		}
		cumulative += int64(it.Weight)
		if r < cumulative {
			return i, nil
		}
	}
	return -1, errors.Errorf("draw out of range: r=%d total=%d", r, total) // unreachable with a conforming Source
}
