package mixnet

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/gtank/ristretto255"

	"github.com/biomix/mixnode/curve"
	"github.com/biomix/mixnode/curve/dealer"
)

// buildThresholdPeers deals an n-of-t scheme (via the dealer package) and
// starts one httptest server per non-local participant, each serving
// /decrypt-share with its own secret share. Returns the assembled Network
// plus the shared public key.
func buildThresholdPeers(t *testing.T, n, threshold uint32, slow map[uint32]time.Duration, fail map[uint32]bool) (*Network, *ristretto255.Element, func()) {
	t.Helper()
	c := qt.New(t)

	participants, err := dealer.Deal(n, threshold)
	c.Assert(err, qt.IsNil)

	ks := participants[0].KeySet
	sharedKey, err := ks.SharedPublicKey()
	c.Assert(err, qt.IsNil)

	shares := make([]*ristretto255.Scalar, n)
	for i, p := range participants {
		s, err := p.Scalar()
		c.Assert(err, qt.IsNil)
		shares[i] = s
	}

	var servers []*httptest.Server
	all := make([]ParticipantId, 0, n)
	for i := uint32(0); i < n; i++ {
		if i == 0 {
			all = append(all, ParticipantId{Index: i, URL: "self"})
			continue
		}
		idx := i
		delay := slow[idx]
		shouldFail := fail[idx]
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if shouldFail {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			if delay > 0 {
				select {
				case <-time.After(delay):
				case <-r.Context().Done():
					return
				}
			}
			var req []wireCiphertext
			_ = json.NewDecoder(r.Body).Decode(&req)
			cts, err := fromWireSlice(req)
			if err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			out := make([]curve.VerifiablePartialDecryption, len(cts))
			for j, ct := range cts {
				vk := ristretto255.NewElement().ScalarBaseMult(shares[idx])
				share, err := curve.BuildDecryptionShare(ct, shares[idx], vk)
				if err != nil {
					w.WriteHeader(http.StatusInternalServerError)
					return
				}
				out[j] = *share
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(decryptShareResponseWire{Index: idx, Share: out})
		}))
		servers = append(servers, srv)
		all = append(all, ParticipantId{Index: idx, URL: srv.URL})
	}

	network := NewNetwork(0, all, ks, "", 2*time.Second)
	cleanup := func() {
		for _, s := range servers {
			s.Close()
		}
	}
	return network, sharedKey, cleanup
}

func TestCollectSharesStopsAtThreshold(t *testing.T) {
	c := qt.New(t)
	n, threshold := uint32(5), uint32(3)
	network, pk, cleanup := buildThresholdPeers(t, n, threshold, nil, nil)
	defer cleanup()

	ct, err := curve.Encrypt(pk, curve.ScalarFromBit(true))
	c.Assert(err, qt.IsNil)

	results, err := CollectShares(context.Background(), network, []*curve.Ciphertext{ct}, threshold)
	c.Assert(err, qt.IsNil)
	c.Assert(len(results), qt.Equals, int(threshold)-1)
}

func TestCollectSharesFailsBelowThreshold(t *testing.T) {
	c := qt.New(t)
	n, threshold := uint32(4), uint32(4)
	fail := map[uint32]bool{1: true, 2: true}
	network, pk, cleanup := buildThresholdPeers(t, n, threshold, nil, fail)
	defer cleanup()

	ct, err := curve.Encrypt(pk, curve.ScalarFromBit(false))
	c.Assert(err, qt.IsNil)

	_, err = CollectShares(context.Background(), network, []*curve.Ciphertext{ct}, threshold)
	c.Assert(err, qt.Not(qt.IsNil))
}

func TestCollectSharesIgnoresSlowPeersOnceThresholdMet(t *testing.T) {
	c := qt.New(t)
	n, threshold := uint32(4), uint32(3)
	slow := map[uint32]time.Duration{3: 2 * time.Second}
	network, pk, cleanup := buildThresholdPeers(t, n, threshold, slow, nil)
	defer cleanup()

	ct, err := curve.Encrypt(pk, curve.ScalarFromBit(true))
	c.Assert(err, qt.IsNil)

	start := time.Now()
	results, err := CollectShares(context.Background(), network, []*curve.Ciphertext{ct}, threshold)
	elapsed := time.Since(start)
	c.Assert(err, qt.IsNil)
	c.Assert(len(results), qt.Equals, int(threshold)-1)
	c.Assert(elapsed < time.Second, qt.IsTrue)
}
