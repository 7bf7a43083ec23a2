package audit

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCapacity is the number of traces kept for debugging.
const DefaultCapacity = 200

// Store keeps the most recent traces in memory, evicting the oldest.
type Store struct {
	cache *lru.Cache[string, Record]
}

// NewStore creates a store holding at most capacity traces.
func NewStore(capacity int) (*Store, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	cache, err := lru.New[string, Record](capacity)
	if err != nil {
		return nil, fmt.Errorf("creating trace cache: %w", err)
	}
	return &Store{cache: cache}, nil
}

// Put stores rec under its request id.
func (s *Store) Put(_ context.Context, rec Record) error {
	s.cache.Add(rec.RequestID, rec)
	return nil
}

// Get returns the trace for requestID. Lookups do not affect eviction
// order.
func (s *Store) Get(requestID string) (Record, bool) {
	return s.cache.Peek(requestID)
}

// Len returns the number of stored traces.
func (s *Store) Len() int {
	return s.cache.Len()
}
