package archive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

// JSONStore keeps one file per population in a directory, named
// <safe name>_<timestamp>_c<coherence percent>.json.
type JSONStore struct {
	dir string
}

func NewJSONStore(dir string) *JSONStore {
	return &JSONStore{dir: dir}
}

func (s *JSONStore) Init(_ context.Context) error {
	if s.dir == "" {
		return errors.New("archive directory is required")
	}
	return os.MkdirAll(s.dir, 0755)
}

// FileName returns the file a population is stored under.
func FileName(p *SavedPopulation) string {
	return fmt.Sprintf("%s_%s_c%.0f.json", safeName(p.Name), p.Timestamp, p.GeneticMetrics.CoherenceScore*100)
}

func safeName(name string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-' {
			return r
		}
		return '_'
	}, name)
}

func (s *JSONStore) Save(ctx context.Context, p *SavedPopulation) error {
	data, err := Encode(p)
	if err != nil {
		return err
	}
	old, err := s.find(ctx, p.Name)
	if err != nil {
		return err
	}

	path := filepath.Join(s.dir, FileName(p))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	for _, f := range old {
		if f == path {
			continue
		}
		if err := os.Remove(f); err != nil {
			return fmt.Errorf("replacing %s: %w", f, err)
		}
	}
	return nil
}

func (s *JSONStore) Load(ctx context.Context, name string) (*SavedPopulation, error) {
	var latest *SavedPopulation
	err := s.walk(ctx, func(_ string, p *SavedPopulation) {
		if p.Name == name && (latest == nil || p.Timestamp > latest.Timestamp) {
			latest = p
		}
	})
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return latest, nil
}

// List skips files that fail validation, logging each one.
func (s *JSONStore) List(ctx context.Context) ([]*SavedPopulation, error) {
	var pops []*SavedPopulation
	err := s.walk(ctx, func(_ string, p *SavedPopulation) {
		pops = append(pops, p)
	})
	if err != nil {
		return nil, err
	}
	sortByRank(pops)
	return pops, nil
}

func (s *JSONStore) Delete(ctx context.Context, name string) error {
	files, err := s.find(ctx, name)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	for _, f := range files {
		if err := os.Remove(f); err != nil {
			return fmt.Errorf("deleting %s: %w", f, err)
		}
	}
	return nil
}

// find returns every file holding name.
func (s *JSONStore) find(ctx context.Context, name string) ([]string, error) {
	var files []string
	err := s.walk(ctx, func(path string, p *SavedPopulation) {
		if p.Name == name {
			files = append(files, path)
		}
	})
	return files, err
}

// walk decodes every .json file in the directory. Invalid files are logged
// and skipped.
func (s *JSONStore) walk(ctx context.Context, fn func(path string, p *SavedPopulation)) error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("reading archive directory: %w", err)
	}

	skipped := 0
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		path := filepath.Join(s.dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			slog.Warn("unreadable archive file", "path", path, "error", err)
			skipped++
			continue
		}
		p, err := Decode(data)
		if err != nil {
			slog.Warn("invalid archive file", "path", path, "error", err)
			skipped++
			continue
		}
		fn(path, p)
	}
	if skipped > 0 {
		slog.Debug("archive files skipped", "dir", s.dir, "count", skipped)
	}
	return nil
}
