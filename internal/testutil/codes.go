package testutil

import (
	"testing"

	"github.com/gtank/ristretto255"

	"github.com/biomix/mixnode/curve"
)

// EncryptCode encrypts a sequence of code bits under pk, one ciphertext
// per bit, failing the test on any encryption error.
func EncryptCode(t *testing.T, pk *ristretto255.Element, bits []bool) []*curve.Ciphertext {
	t.Helper()
	out := make([]*curve.Ciphertext, len(bits))
	for i, b := range bits {
		ct, err := curve.Encrypt(pk, curve.ScalarFromBit(b))
		if err != nil {
			t.Fatalf("encrypting bit %d: %v", i, err)
		}
		out[i] = ct
	}
	return out
}
