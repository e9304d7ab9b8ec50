// Package testutil builds small in-process threshold mix networks for
// tests elsewhere in the module: it deals a real n-of-t key set and runs
// one httptest server per simulated peer, each capable of answering
// /remix and /decrypt-share the way a real node would.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gtank/ristretto255"

	"github.com/biomix/mixnode/curve"
	"github.com/biomix/mixnode/curve/dealer"
	"github.com/biomix/mixnode/mixnet"
	"github.com/biomix/mixnode/remix"
	"github.com/biomix/mixnode/types"
)

// wireCiphertext is the on-the-wire JSON shape of a ciphertext; kept in
// sync by hand with the same shape used in the mixnet package, since both
// are fixed by the wire format rather than free to diverge.
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
		return nil, err
	}
	c, err := curve.DecodeElement(w.C)
	if err != nil {
		return nil, err
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

type remixRequest struct {
	XCode []wireCiphertext `json:"x_code"`
	YCode []wireCiphertext `json:"y_code"`
}

type decryptShareResponse struct {
	Index uint32                              `json:"index"`
	Share []curve.VerifiablePartialDecryption `json:"share"`
}

// Node is one simulated peer: its share of the threshold key, and the
// httptest server answering requests addressed to it.
type Node struct {
	Index       uint32
	Participant curve.ActiveParticipant
	Server      *httptest.Server
}

// Network is a complete simulated n-of-t mix network.
type Network struct {
	KeySet    curve.PublicKeySet
	Nodes     []*Node
	PublicKey *ristretto255.Element
}

// BuildNetwork deals an n-of-t key set and starts one httptest server per
// node, each capable of remixing and producing verified decryption shares
// using its own secret share. faultyPeers names indices that return 500 on
// every request, simulating peer unavailability. Callers must call Close.
func BuildNetwork(t *testing.T, n, threshold uint32, faultyPeers map[uint32]bool) *Network {
	t.Helper()

	participants, err := dealer.Deal(n, threshold)
	if err != nil {
		t.Fatalf("dealing key set: %v", err)
	}
	ks := participants[0].KeySet
	pk, err := ks.SharedPublicKey()
	if err != nil {
		t.Fatalf("decoding shared public key: %v", err)
	}

	net := &Network{KeySet: ks, PublicKey: pk}
	for _, p := range participants {
		node := &Node{Index: p.Index, Participant: *p}
		node.Server = httptest.NewServer(buildHandler(*p, pk, faultyPeers[p.Index]))
		net.Nodes = append(net.Nodes, node)
	}
	return net
}

// Close shuts down every simulated peer server.
func (net *Network) Close() {
	for _, n := range net.Nodes {
		n.Server.Close()
	}
}

// AllParticipants returns the full, order-stable participant list suitable
// for mixnet.NewNetwork; the caller's own index is filtered out by
// NewNetwork, not here.
func (net *Network) AllParticipants() []mixnet.ParticipantId {
	out := make([]mixnet.ParticipantId, len(net.Nodes))
	for i, n := range net.Nodes {
		out[i] = mixnet.ParticipantId{Index: n.Index, URL: n.Server.URL}
	}
	return out
}

// BuildNetworkFor constructs a mixnet.Network as seen by participant self.
func (net *Network) BuildNetworkFor(self uint32) *mixnet.Network {
	return mixnet.NewNetwork(self, net.AllParticipants(), net.KeySet, "", 5*time.Second)
}

func buildHandler(self curve.ActiveParticipant, pk *ristretto255.Element, faulty bool) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/remix", func(w http.ResponseWriter, r *http.Request) {
		if faulty {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		var req remixRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		x, err := fromWireSlice(req.XCode)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		y, err := fromWireSlice(req.YCode)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if err := remix.Remix(r.Context(), x, y, pk); err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(remixRequest{XCode: toWireSlice(x), YCode: toWireSlice(y)})
	})

	mux.HandleFunc("/decrypt-share", func(w http.ResponseWriter, r *http.Request) {
		if faulty {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		var req []wireCiphertext
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		batch, err := fromWireSlice(req)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		secretShare, err := self.Scalar()
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		verifKey, err := self.KeySet.VerificationKey(self.Index)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		shares := make([]curve.VerifiablePartialDecryption, len(batch))
		for i, ct := range batch {
			share, err := curve.BuildDecryptionShare(ct, secretShare, verifKey)
			if err != nil {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			shares[i] = *share
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(decryptShareResponse{Index: self.Index, Share: shares})
	})

	return mux
}
