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
	"github.com/biomix/mixnode/types"
)

func genTestKeyPair(c *qt.C) (*ristretto255.Scalar, *ristretto255.Element) {
	sk, err := curve.RandomScalar()
	c.Assert(err, qt.IsNil)
	pk := ristretto255.NewElement().ScalarBaseMult(sk)
	return sk, pk
}

// echoRemixServer returns the request body unchanged, simulating a peer
// that remixes in place (tests only care about wire round-tripping here;
// remix.Remix itself is tested in its own package).
func echoRemixServer(t *testing.T) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req encryptedCodesWire
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(req)
	}))
}

func TestRemixWithPeerRoundTrips(t *testing.T) {
	c := qt.New(t)
	_, pk := genTestKeyPair(c)

	srv := echoRemixServer(t)
	defer srv.Close()

	n := NewNetwork(0, []ParticipantId{{Index: 1, URL: srv.URL}}, curve.PublicKeySet{}, "", time.Second)

	ct, err := curve.Encrypt(pk, curve.ScalarFromBit(true))
	c.Assert(err, qt.IsNil)
	x := []*curve.Ciphertext{ct}
	y := []*curve.Ciphertext{ct}

	newX, newY, err := RemixWithPeer(context.Background(), n, n.Peers[0], x, y, nil)
	c.Assert(err, qt.IsNil)
	c.Assert(newX[0].E.Equal(ct.E), qt.Equals, 1)
	c.Assert(newY[0].C.Equal(ct.C), qt.Equals, 1)
}

func TestRemixWithPeerReportsUnavailable(t *testing.T) {
	c := qt.New(t)
	_, pk := genTestKeyPair(c)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := NewNetwork(0, []ParticipantId{{Index: 1, URL: srv.URL}}, curve.PublicKeySet{}, "", time.Second)
	ct, err := curve.Encrypt(pk, curve.ScalarFromBit(false))
	c.Assert(err, qt.IsNil)

	_, _, err = RemixWithPeer(context.Background(), n, n.Peers[0], []*curve.Ciphertext{ct}, []*curve.Ciphertext{ct}, nil)
	c.Assert(err, qt.ErrorMatches, "mixnet: peer unavailable.*")
}

// decryptShareServer builds a peer that actually produces verifiable
// decryption shares for a given secret share / verification key, mirroring
// what the real /decrypt-share handler will do.
func decryptShareServer(t *testing.T, index uint32, secretShare *ristretto255.Scalar, verifKey *ristretto255.Element) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req []wireCiphertext
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		cts, err := fromWireSlice(req)
		if err != nil {
			t.Fatalf("decoding ciphertexts: %v", err)
		}
		shares := make([]curve.VerifiablePartialDecryption, len(cts))
		for i, ct := range cts {
			share, err := curve.BuildDecryptionShare(ct, secretShare, verifKey)
			if err != nil {
				t.Fatalf("building share: %v", err)
			}
			shares[i] = *share
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(decryptShareResponseWire{Index: index, Share: shares})
	}))
}

func TestRequestShareVerifiesProof(t *testing.T) {
	c := qt.New(t)
	_, pk := genTestKeyPair(c)
	sk, err := curve.RandomScalar()
	c.Assert(err, qt.IsNil)
	vk := ristretto255.NewElement().ScalarBaseMult(sk)

	srv := decryptShareServer(t, 1, sk, vk)
	defer srv.Close()

	// index 0 is a throwaway placeholder verification key; only index 1
	// (the responding peer) needs to be real for this test.
	ks := curve.PublicKeySet{
		N:                2,
		T:                2,
		SharedKey:        curve.EncodeElement(pk),
		VerificationKeys: []types.HexBytes{curve.EncodeElement(vk), curve.EncodeElement(vk)},
	}
	n := NewNetwork(0, []ParticipantId{{Index: 1, URL: srv.URL}}, ks, "", time.Second)

	ct, err := curve.Encrypt(pk, curve.ScalarFromBit(true))
	c.Assert(err, qt.IsNil)

	shares, err := requestShare(context.Background(), n, n.Peers[0], []*curve.Ciphertext{ct})
	c.Assert(err, qt.IsNil)
	c.Assert(len(shares), qt.Equals, 1)
}
