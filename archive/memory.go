package archive

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// MemoryStore keeps encoded documents in a map, so every load goes through
// the same validation as the persistent backends.
type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	docs        map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.docs = make(map[string][]byte)
	return nil
}

func (s *MemoryStore) Save(_ context.Context, p *SavedPopulation) error {
	data, err := Encode(p)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return errors.New("store is not initialized")
	}
	s.docs[p.Name] = data
	return nil
}

func (s *MemoryStore) Load(_ context.Context, name string) (*SavedPopulation, error) {
	s.mu.RLock()
	data, ok := s.docs[name]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return Decode(data)
}

func (s *MemoryStore) List(_ context.Context) ([]*SavedPopulation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pops := make([]*SavedPopulation, 0, len(s.docs))
	for name, data := range s.docs {
		p, err := Decode(data)
		if err != nil {
			return nil, fmt.Errorf("decode population %s: %w", name, err)
		}
		pops = append(pops, p)
	}
	sortByRank(pops)
	return pops, nil
}

func (s *MemoryStore) Delete(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[name]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	delete(s.docs, name)
	return nil
}
