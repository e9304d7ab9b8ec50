package storage

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/biomix/mixnode/curve"
)

// defaultCapacity bounds MemoryStore the same way the teacher bounds its
// artifact cache: least recently used entries are evicted once the store
// is full, so a
// long-running node's memory stays flat regardless of request volume.
const defaultCapacity = 1000

// MemoryStore is an in-process CodeStore backed by a bounded LRU cache. It
// is the default implementation; a durable backend can be swapped in by
// implementing CodeStore without touching any caller.
type MemoryStore struct {
	mu     sync.Mutex
	nextID uint64
	cache  *lru.Cache[uint64, storedCode]
}

type storedCode struct {
	x, y []*curve.Ciphertext
}

// NewMemoryStore returns an empty MemoryStore bounded at defaultCapacity
// entries.
func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithCapacity(defaultCapacity)
}

// NewMemoryStoreWithCapacity returns an empty MemoryStore that evicts its
// least recently used entry (by Put or Get) once it would hold more than
// capacity code pairs.
func NewMemoryStoreWithCapacity(capacity int) *MemoryStore {
	cache, err := lru.New[uint64, storedCode](capacity)
	if err != nil {
		panic(fmt.Sprintf("storage: building LRU cache: %v", err))
	}
	return &MemoryStore{cache: cache}
}

// Put stores x and y under a freshly allocated id, evicting the least
// recently used stored pair if the store is at capacity.
func (s *MemoryStore) Put(_ context.Context, x, y []*curve.Ciphertext) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.cache.Add(id, storedCode{x: x, y: y})
	return id, nil
}

// Get retrieves a previously stored pair.
func (s *MemoryStore) Get(_ context.Context, id uint64) ([]*curve.Ciphertext, []*curve.Ciphertext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cache.Get(id)
	if !ok {
		return nil, nil, fmt.Errorf("storage: no code stored with id %d", id)
	}
	return c.x, c.y, nil
}

var _ CodeStore = (*MemoryStore)(nil)
