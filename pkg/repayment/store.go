package repayment

import (
	"context"
	"fmt"
	"sync"

	"github.com/inbucket/courier/pkg/config"
	"github.com/inbucket/courier/pkg/storage"
)

// Store persists one Record per entity ID.
type Store interface {
	// Get returns the stored record, or storage.ErrNotExist.
	Get(ctx context.Context, entityID string) (*Record, error)
	// Put stores r, replacing any record with the same entity ID.
	Put(ctx context.Context, r *Record) error
	Close() error
}

// StoreConstructors tracks registered repayment store constructors.
var StoreConstructors = map[string]func(config.Payment) (Store, error){
	"memory": func(config.Payment) (Store, error) { return NewMemoryStore(), nil },
}

// StoreFromConfig creates the Store named by cfg.Store.
func StoreFromConfig(cfg config.Payment) (Store, error) {
	if cf := StoreConstructors[cfg.Store]; cf != nil {
		return cf(cfg)
	}
	return nil, fmt.Errorf("unknown payment store configured: %q", cfg.Store)
}

// MemoryStore keeps records in a map.
type MemoryStore struct {
	sync.RWMutex
	records map[string]*Record
}

var _ Store = &MemoryStore{}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*Record)}
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, entityID string) (*Record, error) {
	s.RLock()
	defer s.RUnlock()
	r, ok := s.records[entityID]
	if !ok {
		return nil, storage.ErrNotExist
	}
	return r.Clone(), nil
}

// Put implements Store.
func (s *MemoryStore) Put(ctx context.Context, r *Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.Lock()
	defer s.Unlock()
	s.records[r.EntityID] = r.Clone()
	return nil
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }
