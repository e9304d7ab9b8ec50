package curve

import (
	"encoding/json"
	"fmt"

	"github.com/gtank/ristretto255"
	"golang.org/x/crypto/blake2b"

	"github.com/biomix/mixnode/types"
)

// LogEqualityProof is a non-interactive Chaum-Pedersen proof that the same
// discrete log d relates (G, Y) and (E, S): Y = d*G and S = d*E, without
// revealing d. It accompanies every partial decryption so a collector can
// verify a share before trusting it.
type LogEqualityProof struct {
	A1 *ristretto255.Element `json:"-"`
	A2 *ristretto255.Element `json:"-"`
	Z  *ristretto255.Scalar  `json:"-"`
}

// wireLogEqualityProof is the JSON-serialisable form of LogEqualityProof.
type wireLogEqualityProof struct {
	A1 types.HexBytes `json:"a1"`
	A2 types.HexBytes `json:"a2"`
	Z  types.HexBytes `json:"z"`
}

// MarshalJSON encodes the proof's three components as compressed points /
// a canonical scalar.
func (p LogEqualityProof) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireLogEqualityProof{
		A1: EncodeElement(p.A1),
		A2: EncodeElement(p.A2),
		Z:  EncodeScalar(p.Z),
	})
}

// UnmarshalJSON decodes a proof produced by MarshalJSON.
func (p *LogEqualityProof) UnmarshalJSON(data []byte) error {
	var w wireLogEqualityProof
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	a1, err := DecodeElement(w.A1)
	if err != nil {
		return fmt.Errorf("curve: decoding proof A1: %w", err)
	}
	a2, err := DecodeElement(w.A2)
	if err != nil {
		return fmt.Errorf("curve: decoding proof A2: %w", err)
	}
	z, err := DecodeScalar(w.Z)
	if err != nil {
		return fmt.Errorf("curve: decoding proof Z: %w", err)
	}
	p.A1, p.A2, p.Z = a1, a2, z
	return nil
}

// VerifiablePartialDecryption is one participant's contribution to the
// threshold decryption of a single ciphertext.
type VerifiablePartialDecryption struct {
	Decryption types.HexBytes   `json:"decryption"`
	Proof      LogEqualityProof `json:"proof"`
}

// hashToScalar implements the Fiat-Shamir transform: it hashes an ordered
// list of group elements with blake2b-512 and reduces the digest into a
// scalar via FromUniformBytes.
func hashToScalar(elements ...*ristretto255.Element) *ristretto255.Scalar {
	h, err := blake2b.New512(nil)
	if err != nil {
		panic(fmt.Sprintf("curve: blake2b init: %v", err))
	}
	for _, el := range elements {
		b := el.Encode(nil)
		_, _ = h.Write(b)
	}
	return ristretto255.NewScalar().FromUniformBytes(h.Sum(nil))
}

// BuildDecryptionShare computes the partial decryption of ct under
// secretShare together with a Chaum-Pedersen proof that it was computed honestly
// with the secret share corresponding to verificationKey.
func BuildDecryptionShare(
	ct *Ciphertext,
	secretShare *ristretto255.Scalar,
	verificationKey *ristretto255.Element,
) (*VerifiablePartialDecryption, error) {
	s := ristretto255.NewElement().ScalarMult(secretShare, ct.E)

	k, err := RandomScalar()
	if err != nil {
		return nil, err
	}
	a1 := ristretto255.NewElement().ScalarBaseMult(k)
	a2 := ristretto255.NewElement().ScalarMult(k, ct.E)
	e := hashToScalar(verificationKey, ct.E, s, a1, a2)

	z := ristretto255.NewScalar().Multiply(e, secretShare)
	z.Add(z, k)

	return &VerifiablePartialDecryption{
		Decryption: EncodeElement(s),
		Proof:      LogEqualityProof{A1: a1, A2: a2, Z: z},
	}, nil
}

// VerifyShare checks a partial decryption against the claimed
// verification key and ciphertext. An error return means the share must be
// treated as a PeerUnavailable-equivalent failure, never trusted.
func VerifyShare(ct *Ciphertext, verificationKey *ristretto255.Element, share *VerifiablePartialDecryption) (*ristretto255.Element, error) {
	s, err := DecodeElement(share.Decryption)
	if err != nil {
		return nil, fmt.Errorf("curve: decoding share: %w", err)
	}
	proof := share.Proof
	e := hashToScalar(verificationKey, ct.E, s, proof.A1, proof.A2)

	lhs1 := ristretto255.NewElement().ScalarBaseMult(proof.Z)
	rhs1 := ristretto255.NewElement().ScalarMult(e, verificationKey)
	rhs1.Add(rhs1, proof.A1)
	if lhs1.Equal(rhs1) != 1 {
		return nil, ErrVerificationFailed
	}

	lhs2 := ristretto255.NewElement().ScalarMult(proof.Z, ct.E)
	rhs2 := ristretto255.NewElement().ScalarMult(e, s)
	rhs2.Add(rhs2, proof.A2)
	if lhs2.Equal(rhs2) != 1 {
		return nil, ErrVerificationFailed
	}
	return s, nil
}

// lagrangeCoefficients computes, for each index in indices, the Lagrange
// coefficient lambda_i that interpolates the polynomial at x=0:
//
//	lambda_i = prod_{j != i} x_j / (x_j - x_i)
//
// Participant indices are 1-based scalars (index+1) so that x=0 remains
// reserved for the secret itself.
func lagrangeCoefficients(indices []uint32) (map[uint32]*ristretto255.Scalar, error) {
	coeffs := make(map[uint32]*ristretto255.Scalar, len(indices))
	for _, i := range indices {
		xi := scalarFromUint64(uint64(i) + 1)
		num := ristretto255.NewScalar()
		den := ristretto255.NewScalar()
		one := [32]byte{1}
		if err := num.Decode(one[:]); err != nil {
			return nil, err
		}
		if err := den.Decode(one[:]); err != nil {
			return nil, err
		}
		for _, j := range indices {
			if j == i {
				continue
			}
			xj := scalarFromUint64(uint64(j) + 1)
			num.Multiply(num, xj)
			diff := ristretto255.NewScalar().Subtract(xj, xi)
			den.Multiply(den, diff)
		}
		denInv := ristretto255.NewScalar().Invert(den)
		coeffs[i] = ristretto255.NewScalar().Multiply(num, denInv)
	}
	return coeffs, nil
}

// CombinedDecryption is the group element M = C - sum(lambda_i * S_i),
// which equals m*G for the original plaintext scalar m once at least
// threshold verified shares have been combined.
type CombinedDecryption struct {
	M *ristretto255.Element
}

// CombineShares combines a set of already-verified partial decryptions
// into the candidate plaintext point M. Returns ErrInsufficientShares if
// fewer shares than required are supplied by the caller — callers are
// expected to have already checked len(shares) against the threshold, but
// this function re-validates against the supplied threshold as a defence
// in depth measure since proceeding with too few shares would silently
// return a wrong Hamming distance.
func CombineShares(
	ct *Ciphertext,
	shares map[uint32]*ristretto255.Element,
	threshold uint32,
) (*CombinedDecryption, error) {
	if uint32(len(shares)) < threshold {
		return nil, ErrInsufficientShares
	}
	indices := make([]uint32, 0, len(shares))
	for idx := range shares {
		indices = append(indices, idx)
	}
	lambdas, err := lagrangeCoefficients(indices)
	if err != nil {
		return nil, fmt.Errorf("curve: computing lagrange coefficients: %w", err)
	}

	s := ristretto255.NewElement()
	for idx, share := range shares {
		term := ristretto255.NewElement().ScalarMult(lambdas[idx], share)
		s.Add(s, term)
	}

	neg := ristretto255.NewElement().Negate(s)
	m := ristretto255.NewElement().Add(ct.C, neg)
	return &CombinedDecryption{M: m}, nil
}

// DecryptWithTable recovers the plaintext bit from a combined decryption,
// restricted to {0, 1} per the biometric-bit domain of this system.
func DecryptWithTable(combined *CombinedDecryption) (bool, error) {
	identity := ristretto255.NewElement()
	if combined.M.Equal(identity) == 1 {
		return false, nil
	}
	one := ristretto255.NewElement().ScalarBaseMult(ScalarFromBit(true))
	if combined.M.Equal(one) == 1 {
		return true, nil
	}
	return false, ErrDecryptionOutOfRange
}
