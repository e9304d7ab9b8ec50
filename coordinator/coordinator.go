// Package coordinator drives the state machine behind a single /hamming
// request: self-remix, serial peer-remix chain, concurrent share
// collection, parallel threshold decryption, and the final Hamming
// distance. It is the only package that ties the curve, remix, bridge and
// mixnet packages together into one end-to-end operation; it never reads
// or writes persisted state itself.
package coordinator

import (
	"context"
	"fmt"
	"sync"

	"github.com/gtank/ristretto255"
	"golang.org/x/sync/errgroup"

	"github.com/biomix/mixnode/bridge"
	"github.com/biomix/mixnode/curve"
	"github.com/biomix/mixnode/log"
	"github.com/biomix/mixnode/mixnet"
	"github.com/biomix/mixnode/remix"
)

// Coordinator holds everything a /hamming request needs: the CPU bridge
// pool, the peer network, and this node's own key material. One
// Coordinator is built at startup and shared by reference across
// requests; all of its fields are read-only after construction.
type Coordinator struct {
	Pool    *bridge.Pool
	Network *mixnet.Network
	Self    curve.ActiveParticipant
}

// New builds a Coordinator from its collaborators.
func New(pool *bridge.Pool, network *mixnet.Network, self curve.ActiveParticipant) *Coordinator {
	return &Coordinator{Pool: pool, Network: network, Self: self}
}

// validateLengths implements S0: the two batches must have equal, even
// length. It reuses remix's sentinel so callers one layer up (the HTTP
// handler) can map the failure with a single errors.Is check regardless of
// which package detected it.
func validateLengths(x, y []*curve.Ciphertext) error {
	if len(x) != len(y) {
		return fmt.Errorf("%w: len(x)=%d != len(y)=%d", remix.ErrInvalidLength, len(x), len(y))
	}
	if len(x)%2 != 0 {
		return fmt.Errorf("%w: len(x)=%d is odd", remix.ErrInvalidLength, len(x))
	}
	return nil
}

// Hamming runs the full S0-S5 state machine and returns the Hamming
// distance between the two plaintext bit sequences underlying x and y.
func (co *Coordinator) Hamming(ctx context.Context, x, y []*curve.Ciphertext) (int, error) {
	// S0
	if err := validateLengths(x, y); err != nil {
		return 0, err
	}

	pk, err := co.Network.KeySet.SharedPublicKey()
	if err != nil {
		return 0, fmt.Errorf("coordinator: decoding shared public key: %w", err)
	}

	// S1: self-remix, dispatched to the CPU pool.
	if err := bridge.Run(co.Pool, func() error {
		return remix.Remix(ctx, x, y, pk)
	}); err != nil {
		return 0, fmt.Errorf("coordinator: self-remix: %w", err)
	}

	// S2: serial peer-remix chain. Failures are swallowed by design:
	// the batch carried forward is simply the last successfully-transformed
	// one.
	for _, peer := range co.Network.Peers {
		newX, newY, err := mixnet.RemixWithPeer(ctx, co.Network, peer, x, y, nil)
		if err != nil {
			log.Warnw("peer remix failed, continuing with previous batch", "peer", peer.Index, "err", err.Error())
			continue
		}
		x, y = newX, newY
	}

	threshold := co.Network.Threshold()

	secretShare, err := co.Self.Scalar()
	if err != nil {
		return 0, fmt.Errorf("coordinator: decoding local secret share: %w", err)
	}
	verifKey, err := co.Network.KeySet.VerificationKey(co.Self.Index)
	if err != nil {
		return 0, fmt.Errorf("coordinator: looking up local verification key: %w", err)
	}

	// S3: four concurrent actions. Peer collection failures are not fatal
	// here — a short collected list simply means S4's combine step will
	// fail with ErrInsufficientShares. Local share failures are unexpected
	// internal errors and abort the request immediately.
	var xPeerResults, yPeerResults []mixnet.PeerShareResult
	var xLocal, yLocal []*curve.VerifiablePartialDecryption
	var xLocalErr, yLocalErr error

	var wg sync.WaitGroup
	wg.Add(4)
	go func() {
		defer wg.Done()
		xPeerResults, _ = mixnet.CollectShares(ctx, co.Network, x, threshold)
	}()
	go func() {
		defer wg.Done()
		yPeerResults, _ = mixnet.CollectShares(ctx, co.Network, y, threshold)
	}()
	go func() {
		defer wg.Done()
		xLocal, xLocalErr = localShares(co.Pool, x, secretShare, verifKey)
	}()
	go func() {
		defer wg.Done()
		yLocal, yLocalErr = localShares(co.Pool, y, secretShare, verifKey)
	}()
	wg.Wait()

	if xLocalErr != nil {
		return 0, fmt.Errorf("coordinator: computing local x share: %w", xLocalErr)
	}
	if yLocalErr != nil {
		return 0, fmt.Errorf("coordinator: computing local y share: %w", yLocalErr)
	}

	xShares, err := sharesByPosition(len(x), xPeerResults, xLocal, co.Self.Index)
	if err != nil {
		return 0, fmt.Errorf("coordinator: assembling x shares: %w", err)
	}
	yShares, err := sharesByPosition(len(y), yPeerResults, yLocal, co.Self.Index)
	if err != nil {
		return 0, fmt.Errorf("coordinator: assembling y shares: %w", err)
	}

	// S4: two parallel combine+decrypt passes, each itself dispatched to
	// the CPU pool.
	var xBits, yBits []bool
	var xDecryptErr, yDecryptErr error
	var wg2 sync.WaitGroup
	wg2.Add(2)
	go func() {
		defer wg2.Done()
		xBits, xDecryptErr = decryptBatch(co.Pool, x, xShares, threshold)
	}()
	go func() {
		defer wg2.Done()
		yBits, yDecryptErr = decryptBatch(co.Pool, y, yShares, threshold)
	}()
	wg2.Wait()

	if xDecryptErr != nil {
		return 0, fmt.Errorf("coordinator: decrypting x: %w", xDecryptErr)
	}
	if yDecryptErr != nil {
		return 0, fmt.Errorf("coordinator: decrypting y: %w", yDecryptErr)
	}

	// S5: XOR and pop_count.
	distance := 0
	for i := range xBits {
		if xBits[i] != yBits[i] {
			distance++
		}
	}
	return distance, nil
}

// sharesByPosition reassembles per-peer, per-ciphertext shares into one
// map[participantIndex]share per batch position, folding in the node's
// own local share at each position.
func sharesByPosition(n int, peerResults []mixnet.PeerShareResult, local []*curve.VerifiablePartialDecryption, selfIndex uint32) ([]map[uint32]*ristretto255.Element, error) {
	out := make([]map[uint32]*ristretto255.Element, n)
	for i := range out {
		out[i] = make(map[uint32]*ristretto255.Element)
	}
	for _, r := range peerResults {
		if r.Err != nil || len(r.Shares) != n {
			continue
		}
		for i, s := range r.Shares {
			out[i][r.Peer.Index] = s
		}
	}
	for i, share := range local {
		s, err := curve.DecodeElement(share.Decryption)
		if err != nil {
			return nil, fmt.Errorf("decoding local share at position %d: %w", i, err)
		}
		out[i][selfIndex] = s
	}
	return out, nil
}

// localShares computes this node's own verifiable partial decryption for
// every ciphertext in batch, dispatched as a single CPU-pool job.
func localShares(pool *bridge.Pool, batch []*curve.Ciphertext, secretShare *ristretto255.Scalar, verifKey *ristretto255.Element) ([]*curve.VerifiablePartialDecryption, error) {
	res := bridge.Run(pool, func() localSharesResult {
		out := make([]*curve.VerifiablePartialDecryption, len(batch))
		for i, ct := range batch {
			share, err := curve.BuildDecryptionShare(ct, secretShare, verifKey)
			if err != nil {
				return localSharesResult{err: fmt.Errorf("building local share %d: %w", i, err)}
			}
			out[i] = share
		}
		return localSharesResult{shares: out}
	})
	return res.shares, res.err
}

type localSharesResult struct {
	shares []*curve.VerifiablePartialDecryption
	err    error
}

// decryptBatch combines and decrypts every position in batch concurrently
// within a single CPU-pool job, mirroring the fan-out pattern remix.Rerandomise
// uses for its own per-position parallelism.
func decryptBatch(pool *bridge.Pool, batch []*curve.Ciphertext, sharesByPos []map[uint32]*ristretto255.Element, threshold uint32) ([]bool, error) {
	res := bridge.Run(pool, func() decryptBatchResult {
		bits := make([]bool, len(batch))
		g := new(errgroup.Group)
		for i := range batch {
			i := i
			g.Go(func() error {
				combined, err := curve.CombineShares(batch[i], sharesByPos[i], threshold)
				if err != nil {
					return fmt.Errorf("combining shares at position %d: %w", i, err)
				}
				bit, err := curve.DecryptWithTable(combined)
				if err != nil {
					return fmt.Errorf("decrypting position %d: %w", i, err)
				}
				bits[i] = bit
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return decryptBatchResult{err: err}
		}
		return decryptBatchResult{bits: bits}
	})
	return res.bits, res.err
}

type decryptBatchResult struct {
	bits []bool
	err  error
}
