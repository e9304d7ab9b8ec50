package mixnet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/gtank/ristretto255"

	"github.com/biomix/mixnode/curve"
	"github.com/biomix/mixnode/types"
)

// wireCiphertext is the JSON shape of a ciphertext on the wire: the
// concatenation's two named fields ("e" the random element, "c"
// the blinded element).
type wireCiphertext struct {
	E types.HexBytes `json:"e"`
	C types.HexBytes `json:"c"`
}

func toWire(ct *curve.Ciphertext) wireCiphertext {
	return wireCiphertext{E: curve.EncodeElement(ct.E), C: curve.EncodeElement(ct.C)}
}

func toWireSlice(cts []*curve.Ciphertext) []wireCiphertext {
	out := make([]wireCiphertext, len(cts))
	for i, ct := range cts {
		out[i] = toWire(ct)
	}
	return out
}

func fromWire(w wireCiphertext) (*curve.Ciphertext, error) {
	e, err := curve.DecodeElement(w.E)
	if err != nil {
		return nil, fmt.Errorf("mixnet: decoding ciphertext e: %w", err)
	}
	c, err := curve.DecodeElement(w.C)
	if err != nil {
		return nil, fmt.Errorf("mixnet: decoding ciphertext c: %w", err)
	}
	return &curve.Ciphertext{E: e, C: c}, nil
}

func fromWireSlice(ws []wireCiphertext) ([]*curve.Ciphertext, error) {
	out := make([]*curve.Ciphertext, len(ws))
	for i, w := range ws {
		ct, err := fromWire(w)
		if err != nil {
			return nil, err
		}
		out[i] = ct
	}
	return out, nil
}

// encryptedCodesWire mirrors the EncryptedCodes wire schema.
type encryptedCodesWire struct {
	XCode  []wireCiphertext `json:"x_code"`
	YCode  []wireCiphertext `json:"y_code"`
	EncKey *types.HexBytes  `json:"enc_key,omitempty"`
}

// decryptShareResponseWire mirrors the DecryptionShare wire schema.
type decryptShareResponseWire struct {
	Index uint32                              `json:"index"`
	Share []curve.VerifiablePartialDecryption `json:"share"`
}

// ErrPeerUnavailable is returned for any peer call failure: transport,
// non-2xx status, or response decode failure. The coordinator treats it as
// recoverable.
var ErrPeerUnavailable = fmt.Errorf("mixnet: peer unavailable")

func (n *Network) doJSON(ctx context.Context, peer ParticipantId, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%w: encoding request: %v", ErrPeerUnavailable, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, peer.URL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: building request: %v", ErrPeerUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if n.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+n.AuthToken)
	}

	resp, err := n.Client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPeerUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: peer %d returned status %d", ErrPeerUnavailable, peer.Index, resp.StatusCode)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: reading response: %v", ErrPeerUnavailable, err)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("%w: decoding response: %v", ErrPeerUnavailable, err)
	}
	return nil
}

// RemixWithPeer posts the current (x, y) batch to one peer's /remix
// endpoint and returns the transformed batch. On any failure the caller is
// expected to keep the previous (x, y) and move on to the next peer
// S2) — this function only reports the failure, it never recovers on its
// own.
func RemixWithPeer(ctx context.Context, n *Network, peer ParticipantId, x, y []*curve.Ciphertext, encKey *types.HexBytes) (newX, newY []*curve.Ciphertext, err error) {
	var resp encryptedCodesWire
	req := encryptedCodesWire{
		XCode:  toWireSlice(x),
		YCode:  toWireSlice(y),
		EncKey: encKey,
	}
	if err := n.doJSON(ctx, peer, "/remix", req, &resp); err != nil {
		return nil, nil, err
	}
	newX, err = fromWireSlice(resp.XCode)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrPeerUnavailable, err)
	}
	newY, err = fromWireSlice(resp.YCode)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrPeerUnavailable, err)
	}
	return newX, newY, nil
}

// requestShare posts a ciphertext batch to one peer's /decrypt-share
// endpoint and verifies the response against the peer's verification key.
// Any transport failure, bad status, decode failure, index or length
// mismatch, or proof failure is reported wrapped in ErrPeerUnavailable; a
// proof failure's curve.ErrVerificationFailed text is included in the
// message but is not itself wrapped.
func requestShare(ctx context.Context, n *Network, peer ParticipantId, batch []*curve.Ciphertext) ([]*ristretto255.Element, error) {
	var resp decryptShareResponseWire
	req := toWireSlice(batch)
	if err := n.doJSON(ctx, peer, "/decrypt-share", req, &resp); err != nil {
		return nil, err
	}
	if resp.Index != peer.Index {
		return nil, fmt.Errorf("%w: peer %d responded with index %d", ErrPeerUnavailable, peer.Index, resp.Index)
	}
	if len(resp.Share) != len(batch) {
		return nil, fmt.Errorf("%w: peer %d returned %d shares for %d ciphertexts", ErrPeerUnavailable, peer.Index, len(resp.Share), len(batch))
	}
	verifKey, err := n.KeySet.VerificationKey(peer.Index)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPeerUnavailable, err)
	}
	shares := make([]*ristretto255.Element, len(batch))
	for i, ct := range batch {
		s, err := curve.VerifyShare(ct, verifKey, &resp.Share[i])
		if err != nil {
			return nil, fmt.Errorf("%w: peer %d share %d: %v", ErrPeerUnavailable, peer.Index, i, err)
		}
		shares[i] = s
	}
	return shares, nil
}
