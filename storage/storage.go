// Package storage persists historical encrypted codes submitted to this
// node. It is a pure side collaborator: the coordinator never reads from
// it, and nothing in the remix or decryption path depends on it existing.
// The default implementation is a bounded in-memory LRU cache, not durable
// storage; a persistent backend can be swapped in behind CodeStore.
package storage

import (
	"context"

	"github.com/biomix/mixnode/curve"
)

// CodeStore is the narrow persistence interface the rest of the module
// depends on. A concrete backend stores an ordered ciphertext sequence
// under an auto-incrementing id and hands it back unchanged.
type CodeStore interface {
	// Put stores an encrypted code pair and returns its assigned id.
	Put(ctx context.Context, x, y []*curve.Ciphertext) (uint64, error)
	// Get retrieves a previously stored code pair by id.
	Get(ctx context.Context, id uint64) (x, y []*curve.Ciphertext, err error)
}
