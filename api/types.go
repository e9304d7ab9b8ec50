package api

import (
	"fmt"

	"github.com/biomix/mixnode/curve"
	"github.com/biomix/mixnode/types"
)

// WireCiphertext is the JSON shape of a single ElGamal ciphertext on the
// wire: two compressed Ristretto points.
type WireCiphertext struct {
	E types.HexBytes `json:"e"`
	C types.HexBytes `json:"c"`
}

func toWireCiphertext(ct *curve.Ciphertext) WireCiphertext {
	return WireCiphertext{E: curve.EncodeElement(ct.E), C: curve.EncodeElement(ct.C)}
}

func toWireCiphertexts(cts []*curve.Ciphertext) []WireCiphertext {
	out := make([]WireCiphertext, len(cts))
	for i, ct := range cts {
		out[i] = toWireCiphertext(ct)
	}
	return out
}

func fromWireCiphertext(w WireCiphertext) (*curve.Ciphertext, error) {
	e, err := curve.DecodeElement(w.E)
	if err != nil {
		return nil, fmt.Errorf("decoding e: %w", err)
	}
	c, err := curve.DecodeElement(w.C)
	if err != nil {
		return nil, fmt.Errorf("decoding c: %w", err)
	}
	return &curve.Ciphertext{E: e, C: c}, nil
}

func fromWireCiphertexts(ws []WireCiphertext) ([]*curve.Ciphertext, error) {
	out := make([]*curve.Ciphertext, len(ws))
	for i, w := range ws {
		ct, err := fromWireCiphertext(w)
		if err != nil {
			return nil, err
		}
		out[i] = ct
	}
	return out, nil
}

// EncryptedCodes is the wire body for /remix and /hamming: two parallel
// ciphertext sequences plus an optional override of the encryption key the
// remix step rerandomises under (defaults to the shared public key).
type EncryptedCodes struct {
	XCode  []WireCiphertext `json:"x_code"`
	YCode  []WireCiphertext `json:"y_code"`
	EncKey *types.HexBytes  `json:"enc_key,omitempty"`
}

// Bits is the wire body for /encrypt: a plaintext bit vector.
type Bits struct {
	Bits []bool `json:"bits"`
}

// DecryptionShare is the wire response for /decrypt-share.
type DecryptionShare struct {
	Index uint32                              `json:"index"`
	Share []curve.VerifiablePartialDecryption `json:"share"`
}

// HammingResponse is the wire response for /hamming.
type HammingResponse struct {
	HammingDistance int `json:"hamming_distance"`
}
