// Package mixnet models the static set of peer mix nodes this process
// knows about, and the client-side behaviour of talking to them: the
// serial peer-remix chain and the share-racing collector that the Hamming
// coordinator drives.
package mixnet

import (
	"net/http"
	"time"

	"github.com/biomix/mixnode/curve"
)

// ParticipantId identifies one peer mix node by its position in the
// threshold scheme and its network address. index != whoami for every
// peer known to this node.
type ParticipantId struct {
	Index uint32 `json:"index"`
	URL   string `json:"url"`
}

// Network is the immutable, indexed set of peers this node knows about,
// plus the shared cryptographic parameters used to verify their
// decryption shares. It is constructed once at startup from configuration
// and shared by reference across all request handlers; nothing mutates it
// afterwards.
type Network struct {
	Self        uint32
	Peers       []ParticipantId // configured order, self excluded
	KeySet      curve.PublicKeySet
	Client      *http.Client
	AuthToken   string // empty disables the outbound Authorization header
	PeerTimeout time.Duration
}

// NewNetwork builds a Network from the full participant list, filtering
// out self. The remix-chain order is the input order with self removed;
// it is stable and not randomised per request.
func NewNetwork(self uint32, all []ParticipantId, keySet curve.PublicKeySet, authToken string, peerTimeout time.Duration) *Network {
	peers := make([]ParticipantId, 0, len(all))
	for _, p := range all {
		if p.Index != self {
			peers = append(peers, p)
		}
	}
	if peerTimeout <= 0 {
		peerTimeout = 10 * time.Second
	}
	return &Network{
		Self:   self,
		Peers:  peers,
		KeySet: keySet,
		Client: &http.Client{
			Timeout: peerTimeout,
		},
		AuthToken:   authToken,
		PeerTimeout: peerTimeout,
	}
}

// Threshold returns the number of shares required to decrypt, t.
func (n *Network) Threshold() uint32 {
	return n.KeySet.T
}
