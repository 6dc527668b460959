package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps populations in a single table keyed by name.
type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}

	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

func (s *SQLiteStore) Save(ctx context.Context, p *SavedPopulation) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	payload, err := Encode(p)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO populations (name, format_version, saved_at, score, coherence, payload)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			format_version = excluded.format_version,
			saved_at = excluded.saved_at,
			score = excluded.score,
			coherence = excluded.coherence,
			payload = excluded.payload
	`, p.Name, CurrentFormat, p.Timestamp, p.Score, p.GeneticMetrics.CoherenceScore, payload)
	return err
}

func (s *SQLiteStore) Load(ctx context.Context, name string) (*SavedPopulation, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	var payload []byte
	err = db.QueryRowContext(ctx, `SELECT payload FROM populations WHERE name = ?`, name).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, err
	}

	p, err := Decode(payload)
	if err != nil {
		return nil, fmt.Errorf("decode population %s: %w", name, err)
	}
	return p, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]*SavedPopulation, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT name, payload FROM populations
		ORDER BY score * 0.7 + coherence * 30.0 DESC, name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pops []*SavedPopulation
	for rows.Next() {
		var name string
		var payload []byte
		if err := rows.Scan(&name, &payload); err != nil {
			return nil, err
		}
		p, err := Decode(payload)
		if err != nil {
			return nil, fmt.Errorf("decode population %s: %w", name, err)
		}
		pops = append(pops, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Decode may recompute coherence, which moves the key.
	sortByRank(pops)
	return pops, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, name string) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	res, err := db.ExecContext(ctx, `DELETE FROM populations WHERE name = ?`, name)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, errors.New("store is not initialized")
	}
	return s.db, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS populations (
			name TEXT PRIMARY KEY,
			format_version INTEGER NOT NULL,
			saved_at TEXT NOT NULL,
			score REAL NOT NULL,
			coherence REAL NOT NULL,
			payload BLOB NOT NULL
		);
	`)
	return err
}
