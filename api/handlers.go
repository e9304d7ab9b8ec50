package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gtank/ristretto255"
	"golang.org/x/sync/errgroup"

	"github.com/biomix/mixnode/bridge"
	"github.com/biomix/mixnode/curve"
	"github.com/biomix/mixnode/log"
	"github.com/biomix/mixnode/remix"
	"github.com/biomix/mixnode/types"
)

// decode reads and JSON-decodes r's body into v, writing ErrMalformedBody
// and returning false on any failure so callers can bail out in one line.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		ErrMalformedBody.WithErr(err).Write(w)
		return false
	}
	return true
}

// publicKeySet serves GET /public-key-set: the shared key and every
// participant's verification key, so peers can verify decryption shares.
func (a *API) publicKeySet(w http.ResponseWriter, r *http.Request) {
	httpWriteJSON(w, a.network.KeySet)
}

type encryptResult struct {
	cts []*curve.Ciphertext
	err error
}

// encrypt serves POST /encrypt: encrypts each bit under the shared public
// key in parallel, one goroutine per bit via errgroup, dispatched as a
// single job on the CPU pool.
func (a *API) encrypt(w http.ResponseWriter, r *http.Request) {
	var body Bits
	if !decode(w, r, &body) {
		return
	}

	pk, err := a.network.KeySet.SharedPublicKey()
	if err != nil {
		ErrUnexpected.WithErr(err).Write(w)
		return
	}

	res := bridge.Run(a.pool, func() encryptResult {
		out := make([]*curve.Ciphertext, len(body.Bits))
		var g errgroup.Group
		for i, bit := range body.Bits {
			i, bit := i, bit
			g.Go(func() error {
				ct, err := curve.Encrypt(pk, curve.ScalarFromBit(bit))
				if err != nil {
					return err
				}
				out[i] = ct
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return encryptResult{err: err}
		}
		return encryptResult{cts: out}
	})
	if res.err != nil {
		ErrUnexpected.WithErr(res.err).Write(w)
		return
	}

	httpWriteJSON(w, toWireCiphertexts(res.cts))
}

// remixKey resolves the key a remix call rerandomises under: encKey if
// present, otherwise the network's shared public key.
func (a *API) remixKey(encKey *types.HexBytes) (*ristretto255.Element, error) {
	if encKey == nil {
		return a.network.KeySet.SharedPublicKey()
	}
	return curve.DecodeElement(*encKey)
}

// remix serves POST /remix: shuffles and rerandomises the batch under
// enc_key (or the shared public key if absent), returning the transformed
// sequences under the same key.
func (a *API) remix(w http.ResponseWriter, r *http.Request) {
	var body EncryptedCodes
	if !decode(w, r, &body) {
		return
	}

	x, err := fromWireCiphertexts(body.XCode)
	if err != nil {
		ErrInvalidLength.WithErr(err).Write(w)
		return
	}
	y, err := fromWireCiphertexts(body.YCode)
	if err != nil {
		ErrInvalidLength.WithErr(err).Write(w)
		return
	}

	pk, err := a.remixKey(body.EncKey)
	if err != nil {
		ErrUnexpected.WithErr(err).Write(w)
		return
	}

	if err := bridge.Run(a.pool, func() error {
		return remix.Remix(r.Context(), x, y, pk)
	}); err != nil {
		if errors.Is(err, remix.ErrInvalidLength) {
			ErrInvalidLength.WithErr(err).Write(w)
			return
		}
		ErrUnexpected.WithErr(err).Write(w)
		return
	}

	httpWriteJSON(w, EncryptedCodes{
		XCode:  toWireCiphertexts(x),
		YCode:  toWireCiphertexts(y),
		EncKey: body.EncKey,
	})
}

type decryptShareResult struct {
	shares []curve.VerifiablePartialDecryption
	err    error
}

// decryptShare serves POST /decrypt-share: this node's partial decryption
// of every ciphertext in the ordered batch, each with its DLEQ proof.
func (a *API) decryptShare(w http.ResponseWriter, r *http.Request) {
	var wire []WireCiphertext
	if !decode(w, r, &wire) {
		return
	}
	batch, err := fromWireCiphertexts(wire)
	if err != nil {
		ErrInvalidLength.WithErr(err).Write(w)
		return
	}

	secretShare, err := a.self.Scalar()
	if err != nil {
		ErrUnexpected.WithErr(err).Write(w)
		return
	}
	verifKey, err := a.self.KeySet.VerificationKey(a.self.Index)
	if err != nil {
		ErrUnexpected.WithErr(err).Write(w)
		return
	}

	res := bridge.Run(a.pool, func() decryptShareResult {
		out := make([]curve.VerifiablePartialDecryption, len(batch))
		for i, ct := range batch {
			share, err := curve.BuildDecryptionShare(ct, secretShare, verifKey)
			if err != nil {
				return decryptShareResult{err: err}
			}
			out[i] = *share
		}
		return decryptShareResult{shares: out}
	})
	if res.err != nil {
		ErrUnexpected.WithErr(res.err).Write(w)
		return
	}

	httpWriteJSON(w, DecryptionShare{Index: a.self.Index, Share: res.shares})
}

// hamming serves POST /hamming: runs the full coordinator state machine and
// returns the Hamming distance between the two decrypted codes.
func (a *API) hamming(w http.ResponseWriter, r *http.Request) {
	var body EncryptedCodes
	if !decode(w, r, &body) {
		return
	}

	x, err := fromWireCiphertexts(body.XCode)
	if err != nil {
		ErrInvalidLength.WithErr(err).Write(w)
		return
	}
	y, err := fromWireCiphertexts(body.YCode)
	if err != nil {
		ErrInvalidLength.WithErr(err).Write(w)
		return
	}

	dist, err := a.coordinator.Hamming(r.Context(), x, y)
	if err != nil {
		if errors.Is(err, remix.ErrInvalidLength) {
			ErrInvalidLength.WithErr(err).Write(w)
			return
		}
		log.Warnw("hamming request failed", "error", err)
		ErrUnexpected.WithErr(err).Write(w)
		return
	}

	httpWriteJSON(w, HammingResponse{HammingDistance: dist})
}
