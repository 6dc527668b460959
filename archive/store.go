package archive

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

// Backend names accepted by NewStore.
const (
	BackendMemory = "memory"
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// Store persists populations by name. Saving a name that exists replaces it.
type Store interface {
	Init(ctx context.Context) error
	Save(ctx context.Context, p *SavedPopulation) error
	Load(ctx context.Context, name string) (*SavedPopulation, error)
	// List returns every valid population, best RankKey first.
	List(ctx context.Context) ([]*SavedPopulation, error)
	Delete(ctx context.Context, name string) error
}

// NewStore creates an uninitialised store. path is the directory for json
// and the database file for sqlite.
func NewStore(kind, path string) (Store, error) {
	switch kind {
	case "", BackendMemory:
		return NewMemoryStore(), nil
	case BackendJSON:
		return NewJSONStore(path), nil
	case BackendSQLite:
		return NewSQLiteStore(path), nil
	default:
		return nil, fmt.Errorf("unsupported archive backend: %s", kind)
	}
}

// Open creates and initialises a store.
func Open(ctx context.Context, kind, path string) (Store, error) {
	s, err := NewStore(kind, path)
	if err != nil {
		return nil, err
	}
	if err := s.Init(ctx); err != nil {
		return nil, fmt.Errorf("init %s archive: %w", kind, err)
	}
	return s, nil
}

func CloseIfSupported(store Store) error {
	closer, ok := store.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}

// sortByRank orders populations by RankKey, descending, then by name.
func sortByRank(pops []*SavedPopulation) {
	slices.SortStableFunc(pops, func(a, b *SavedPopulation) int {
		ka, kb := a.RankKey(), b.RankKey()
		switch {
		case ka > kb:
			return -1
		case ka < kb:
			return 1
		}
		return strings.Compare(a.Name, b.Name)
	})
}
