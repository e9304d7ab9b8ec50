// Package dealer implements the offline key-generation ceremony used to
// bootstrap a mix network: a single trusted process samples a random
// polynomial, splits its constant term into n Shamir shares with
// threshold t, and hands each participant its own share plus the public
// parameters everyone needs to verify and combine decryption shares later.
//
// Key generation itself is out of scope for the online node; this package
// exists only because a concrete `gen_keys` CLI surface must run this
// ceremony.
package dealer

import (
	"fmt"

	"github.com/gtank/ristretto255"

	"github.com/biomix/mixnode/curve"
	"github.com/biomix/mixnode/types"
)

// Deal runs the dealer: samples a degree-(threshold-1) random polynomial,
// computes n shares of its constant term (the shared secret key), and
// returns one ActiveParticipant record per share. Every record carries the
// same PublicKeySet; only SecretShare and Index differ.
func Deal(n, threshold uint32) ([]*curve.ActiveParticipant, error) {
	if threshold < 1 || threshold > n {
		return nil, fmt.Errorf("dealer: threshold must satisfy 1 <= t <= n (got t=%d, n=%d)", threshold, n)
	}

	coeffs := make([]*ristretto255.Scalar, threshold)
	for i := range coeffs {
		s, err := curve.RandomScalar()
		if err != nil {
			return nil, fmt.Errorf("dealer: sampling polynomial coefficient %d: %w", i, err)
		}
		coeffs[i] = s
	}
	secret := coeffs[0]
	sharedKey := ristretto255.NewElement().ScalarBaseMult(secret)

	shares := make([]*ristretto255.Scalar, n)
	verificationKeys := make([]types.HexBytes, n)
	for i := uint32(0); i < n; i++ {
		shares[i] = evaluatePolynomial(coeffs, uint64(i)+1)
		vk := ristretto255.NewElement().ScalarBaseMult(shares[i])
		verificationKeys[i] = curve.EncodeElement(vk)
	}

	keySet := curve.PublicKeySet{
		N:                n,
		T:                threshold,
		SharedKey:        curve.EncodeElement(sharedKey),
		VerificationKeys: verificationKeys,
	}

	participants := make([]*curve.ActiveParticipant, n)
	for i := uint32(0); i < n; i++ {
		participants[i] = &curve.ActiveParticipant{
			KeySet:      keySet,
			Index:       i,
			SecretShare: curve.EncodeScalar(shares[i]),
		}
	}
	return participants, nil
}

// evaluatePolynomial evaluates the dealer's polynomial at x using Horner's
// method over the Ristretto scalar field.
func evaluatePolynomial(coeffs []*ristretto255.Scalar, x uint64) *ristretto255.Scalar {
	xs := scalarFromUint64(x)
	result := ristretto255.NewScalar()
	for i := len(coeffs) - 1; i >= 0; i-- {
		result.Multiply(result, xs)
		result.Add(result, coeffs[i])
	}
	return result
}

func scalarFromUint64(v uint64) *ristretto255.Scalar {
	var buf [32]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(v >> (8 * i))
	}
	s := ristretto255.NewScalar()
	if err := s.Decode(buf[:]); err != nil {
		panic(fmt.Sprintf("dealer: decoding small scalar %d: %v", v, err))
	}
	return s
}
