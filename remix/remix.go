// Package remix implements the pair-preserving shuffle and homomorphic
// rerandomisation kernel at the heart of the mix network: a Fisher-Yates
// permutation applied identically to two parallel ciphertext sequences, an
// intra-pair coin-flip swap, and independent rerandomisation of every
// ciphertext under a shared public key.
package remix

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/gtank/ristretto255"
	"golang.org/x/sync/errgroup"

	"github.com/biomix/mixnode/curve"
)

// ErrInvalidLength is returned when the two sequences passed to Remix (or
// any of its stages) do not have equal, even length.
var ErrInvalidLength = fmt.Errorf("remix: invalid length")

// checkLengths validates the length invariant shared by every stage:
// len(x) == len(y) and len(x) is even.
func checkLengths(x, y []*curve.Ciphertext) error {
	if len(x) != len(y) {
		return fmt.Errorf("%w: len(x)=%d != len(y)=%d", ErrInvalidLength, len(x), len(y))
	}
	if len(x)%2 != 0 {
		return fmt.Errorf("%w: len(x)=%d is odd", ErrInvalidLength, len(x))
	}
	return nil
}

// randIntN draws a cryptographically secure uniform integer in [0, n).
func randIntN(n int) (int, error) {
	if n <= 0 {
		return 0, nil
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("remix: drawing random index: %w", err)
	}
	return int(v.Int64()), nil
}

// randBool draws a cryptographically secure uniform coin flip.
func randBool() (bool, error) {
	n, err := randIntN(2)
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ShufflePairs performs a Fisher-Yates permutation over pair indices
// [0, n/2) and applies the same permutation to both x and y, swapping
// positions (2p, 2p+1) with (2q, 2q+1) simultaneously in both sequences.
// This preserves the relation between x[i] and y[i] for every i.
func ShufflePairs(x, y []*curve.Ciphertext) error {
	if err := checkLengths(x, y); err != nil {
		return err
	}
	numPairs := len(x) / 2
	for p := 0; p < numPairs; p++ {
		q, err := randIntNInRange(p, numPairs)
		if err != nil {
			return err
		}
		swapPair(x, p, q)
		swapPair(y, p, q)
	}
	return nil
}

// randIntNInRange draws a uniform integer in [lo, hi).
func randIntNInRange(lo, hi int) (int, error) {
	offset, err := randIntN(hi - lo)
	if err != nil {
		return 0, err
	}
	return lo + offset, nil
}

func swapPair(s []*curve.Ciphertext, p, q int) {
	s[2*p], s[2*q] = s[2*q], s[2*p]
	s[2*p+1], s[2*q+1] = s[2*q+1], s[2*p+1]
}

// ShuffleBits independently swaps the two positions within each pair, with
// probability 1/2, in both sequences simultaneously.
func ShuffleBits(x, y []*curve.Ciphertext) error {
	if err := checkLengths(x, y); err != nil {
		return err
	}
	numPairs := len(x) / 2
	for p := 0; p < numPairs; p++ {
		swap, err := randBool()
		if err != nil {
			return err
		}
		if swap {
			x[2*p], x[2*p+1] = x[2*p+1], x[2*p]
			y[2*p], y[2*p+1] = y[2*p+1], y[2*p]
		}
	}
	return nil
}

// Rerandomise replaces every ciphertext in x and y with a fresh encryption
// of the same plaintext, using independent randomness per (sequence,
// position). The two sequences are processed concurrently over an
// errgroup, one goroutine per (sequence, position), so each index of x and
// of y is rerandomised in parallel.
func Rerandomise(ctx context.Context, x, y []*curve.Ciphertext, pk *ristretto255.Element) error {
	if err := checkLengths(x, y); err != nil {
		return err
	}
	g, _ := errgroup.WithContext(ctx)
	for i := range x {
		i := i
		g.Go(func() error {
			rerandomised, err := curve.Rerandomise(x[i], pk)
			if err != nil {
				return fmt.Errorf("remix: rerandomising x[%d]: %w", i, err)
			}
			x[i] = rerandomised
			return nil
		})
		g.Go(func() error {
			rerandomised, err := curve.Rerandomise(y[i], pk)
			if err != nil {
				return fmt.Errorf("remix: rerandomising y[%d]: %w", i, err)
			}
			y[i] = rerandomised
			return nil
		})
	}
	return g.Wait()
}

// Remix composes ShufflePairs, ShuffleBits and Rerandomise, in that order,
// the full transformation a mix node applies to one batch of ciphertexts.
func Remix(ctx context.Context, x, y []*curve.Ciphertext, pk *ristretto255.Element) error {
	if err := checkLengths(x, y); err != nil {
		return err
	}
	if err := ShufflePairs(x, y); err != nil {
		return err
	}
	if err := ShuffleBits(x, y); err != nil {
		return err
	}
	return Rerandomise(ctx, x, y, pk)
}
