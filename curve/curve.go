// Package curve wraps ElGamal encryption and n-of-t threshold decryption
// over the Ristretto prime-order group. It pins the algebraic contract the
// rest of the node depends on (encrypt, rerandomise, decryption shares,
// share verification, share combination) without exposing the underlying
// curve library to callers.
package curve

import (
	"crypto/rand"
	"fmt"

	"github.com/gtank/ristretto255"

	"github.com/biomix/mixnode/types"
)

// PublicKeySet describes the parameters of a threshold ElGamal key: the
// total number of participants, the threshold required to decrypt, the
// shared public key, and each participant's individual verification key.
type PublicKeySet struct {
	N                uint32           `json:"n"`
	T                uint32           `json:"t"`
	SharedKey        types.HexBytes   `json:"sharedKey"`
	VerificationKeys []types.HexBytes `json:"verificationKeys"`
}

// Valid reports whether the key set satisfies 1 <= t <= n and carries one
// verification key per participant.
func (ks PublicKeySet) Valid() bool {
	if ks.T < 1 || ks.T > ks.N {
		return false
	}
	return uint32(len(ks.VerificationKeys)) == ks.N
}

// SharedPublicKey decodes the shared public key into a group element.
func (ks PublicKeySet) SharedPublicKey() (*ristretto255.Element, error) {
	return DecodeElement(ks.SharedKey)
}

// VerificationKey decodes the verification key of participant index (0-based).
func (ks PublicKeySet) VerificationKey(index uint32) (*ristretto255.Element, error) {
	if index >= uint32(len(ks.VerificationKeys)) {
		return nil, fmt.Errorf("curve: verification key index %d out of range", index)
	}
	return DecodeElement(ks.VerificationKeys[index])
}

// ActiveParticipant is the key material a single node holds: the public
// parameters shared with everyone, its position in the scheme, and its
// share of the secret key. The secret share must never cross the process
// boundary except through the offline dealer's own output file.
type ActiveParticipant struct {
	KeySet      PublicKeySet   `json:"keySet"`
	Index       uint32         `json:"index"`
	SecretShare types.HexBytes `json:"secretShare"`
}

// Scalar decodes the participant's secret share into a scalar.
func (p ActiveParticipant) Scalar() (*ristretto255.Scalar, error) {
	return DecodeScalar(p.SecretShare)
}

// Ciphertext is an ElGamal ciphertext over Ristretto: the pair (E, C) =
// (rG, mG + rK) for public key K, plaintext scalar m and randomness r.
type Ciphertext struct {
	E *ristretto255.Element
	C *ristretto255.Element
}

// RandomScalar draws a uniformly random scalar from a cryptographically
// secure source, matching the remix kernel's requirement that every
// rerandomisation draw fresh randomness.
func RandomScalar() (*ristretto255.Scalar, error) {
	var buf [64]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return nil, fmt.Errorf("curve: reading random bytes: %w", err)
	}
	return ristretto255.NewScalar().FromUniformBytes(buf[:]), nil
}

// ScalarFromBit encodes a bit as the scalar 0 (false) or 1 (true); only
// binary plaintexts are meaningful in this system.
func ScalarFromBit(bit bool) *ristretto255.Scalar {
	s := ristretto255.NewScalar()
	if bit {
		one := [32]byte{1}
		if err := s.Decode(one[:]); err != nil {
			panic(fmt.Sprintf("curve: decoding scalar one: %v", err))
		}
	}
	return s
}

// Encrypt produces a fresh ElGamal encryption of m under public key pk.
func Encrypt(pk *ristretto255.Element, m *ristretto255.Scalar) (*Ciphertext, error) {
	r, err := RandomScalar()
	if err != nil {
		return nil, err
	}
	return EncryptWithRandomness(pk, m, r)
}

// EncryptWithRandomness encrypts m under pk using the caller-supplied
// randomness r. Exposed so the remix kernel and tests can pin randomness
// for deterministic-permutation debugging in tests.
func EncryptWithRandomness(pk *ristretto255.Element, m, r *ristretto255.Scalar) (*Ciphertext, error) {
	e := ristretto255.NewElement().ScalarBaseMult(r)
	shared := ristretto255.NewElement().ScalarMult(r, pk)
	mG := ristretto255.NewElement().ScalarBaseMult(m)
	c := ristretto255.NewElement().Add(mG, shared)
	return &Ciphertext{E: e, C: c}, nil
}

// Add homomorphically adds two ciphertexts; the result decrypts to the sum
// of the two plaintexts under the same key.
func Add(a, b *Ciphertext) *Ciphertext {
	return &Ciphertext{
		E: ristretto255.NewElement().Add(a.E, b.E),
		C: ristretto255.NewElement().Add(a.C, b.C),
	}
}

// Rerandomise replaces ct with an encryption of the same plaintext under
// fresh randomness, by adding an encryption of zero under pk.
func Rerandomise(ct *Ciphertext, pk *ristretto255.Element) (*Ciphertext, error) {
	zero, err := Encrypt(pk, ristretto255.NewScalar())
	if err != nil {
		return nil, err
	}
	return Add(ct, zero), nil
}

// Encode serialises a ciphertext as the concatenation of its two 32-byte
// compressed Ristretto points.
func (ct *Ciphertext) Encode() types.HexBytes {
	out := make(types.HexBytes, 0, 64)
	out = append(out, ct.E.Encode(nil)...)
	out = append(out, ct.C.Encode(nil)...)
	return out
}

// DecodeCiphertext parses the wire format produced by Encode.
func DecodeCiphertext(b types.HexBytes) (*Ciphertext, error) {
	if len(b) != 64 {
		return nil, fmt.Errorf("curve: invalid ciphertext length %d", len(b))
	}
	e := ristretto255.NewElement()
	if err := e.Decode(b[:32]); err != nil {
		return nil, fmt.Errorf("curve: decoding ciphertext E: %w", err)
	}
	c := ristretto255.NewElement()
	if err := c.Decode(b[32:]); err != nil {
		return nil, fmt.Errorf("curve: decoding ciphertext C: %w", err)
	}
	return &Ciphertext{E: e, C: c}, nil
}

// DecodeElement decodes a single compressed Ristretto point, used for
// public keys and verification keys.
func DecodeElement(b types.HexBytes) (*ristretto255.Element, error) {
	el := ristretto255.NewElement()
	if err := el.Decode(b); err != nil {
		return nil, fmt.Errorf("curve: decoding element: %w", err)
	}
	return el, nil
}

// EncodeElement serialises a group element to its compressed form.
func EncodeElement(el *ristretto255.Element) types.HexBytes {
	return el.Encode(nil)
}

// DecodeScalar decodes a 32-byte canonical scalar.
func DecodeScalar(b types.HexBytes) (*ristretto255.Scalar, error) {
	s := ristretto255.NewScalar()
	if err := s.Decode(b); err != nil {
		return nil, fmt.Errorf("curve: decoding scalar: %w", err)
	}
	return s, nil
}

// EncodeScalar serialises a scalar to its canonical 32-byte form.
func EncodeScalar(s *ristretto255.Scalar) types.HexBytes {
	return s.Encode(nil)
}

// scalarFromUint64 encodes a small non-negative integer as a scalar. Used
// for participant indices in Lagrange interpolation.
func scalarFromUint64(v uint64) *ristretto255.Scalar {
	var buf [32]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(v >> (8 * i))
	}
	s := ristretto255.NewScalar()
	if err := s.Decode(buf[:]); err != nil {
		panic(fmt.Sprintf("curve: decoding small scalar %d: %v", v, err))
	}
	return s
}
