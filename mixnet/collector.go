package mixnet

import (
	"context"
	"fmt"
	"sync"

	"github.com/gtank/ristretto255"

	"github.com/biomix/mixnode/curve"
)

// PeerShareResult is one peer's verified decryption-share contribution to a
// single batch, or the error that peer failed with.
type PeerShareResult struct {
	Peer   ParticipantId
	Shares []*ristretto255.Element // verified partial decryptions, one per ciphertext in the batch
	Err    error
}

// CollectShares dispatches one /decrypt-share request per configured peer
// and returns as soon as threshold-1 of them have succeeded (the local
// node's own share, produced separately via the bridge pool, makes up the
// threshold'th). Every peer request is launched up front,
// the first threshold-1 successes are kept, and the context passed to the
// remaining in-flight requests is cancelled so their connections are
// released rather than left to run to completion.
//
// The success target is threshold-1, capped at the number of configured
// peers. If fewer peers than that target ultimately succeed, CollectShares
// returns the partial results gathered plus a non-nil error; the caller
// decides whether that is fatal. When threshold-1 exceeds the peer count
// and every peer succeeds, the error is nil even though fewer than
// threshold-1 shares were collected.
func CollectShares(ctx context.Context, n *Network, batch []*curve.Ciphertext, threshold uint32) ([]PeerShareResult, error) {
	needed := int(threshold) - 1
	if needed <= 0 {
		return nil, nil
	}
	if needed > len(n.Peers) {
		needed = len(n.Peers)
	}

	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan PeerShareResult, len(n.Peers))
	var wg sync.WaitGroup
	for _, peer := range n.Peers {
		peer := peer
		wg.Add(1)
		go func() {
			defer wg.Done()
			shares, err := requestShare(raceCtx, n, peer, batch)
			select {
			case results <- PeerShareResult{Peer: peer, Shares: shares, Err: err}:
			case <-raceCtx.Done():
			}
		}()
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	collected := make([]PeerShareResult, 0, needed)
	for r := range results {
		if r.Err != nil {
			continue
		}
		collected = append(collected, r)
		if len(collected) == needed {
			cancel() // release remaining in-flight peer connections
			return collected, nil
		}
	}
	return collected, fmt.Errorf("mixnet: only %d of %d required peer shares collected", len(collected), needed)
}
