package ledger

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// Store is a file-backed leg ledger. Legs are kept as a single JSON array
// sorted by legNumber ascending; every write rewrites the whole file
// atomically. The mutex serializes read-modify-write cycles so concurrent
// jobs in one process cannot silently drop each other's updates.
type Store struct {
	mu     sync.Mutex
	path   string
	logger *slog.Logger
}

// NewStore creates a Store backed by the JSON file at path. The file does
// not need to exist yet; a missing file reads as an empty ledger.
func NewStore(path string) *Store {
	return &Store{
		path:   path,
		logger: slog.Default(),
	}
}

// Load returns every persisted leg sorted by legNumber ascending. A missing
// or corrupt file is treated as a fresh session: the problem is logged and an
// empty slice is returned, never an error.
func (s *Store) Load() []Leg {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *Store) loadLocked() []Leg {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("could not read ledger file, starting fresh", "path", s.path, "error", err)
		}
		return []Leg{}
	}

	var legs []Leg
	if err := json.Unmarshal(data, &legs); err != nil {
		s.logger.Warn("could not parse ledger file, starting fresh", "path", s.path, "error", err)
		return []Leg{}
	}

	sortLegs(legs)
	return legs
}

// Upsert inserts leg or replaces the existing leg with the same legNumber,
// then persists the full set back in canonical order.
func (s *Store) Upsert(leg Leg) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	legs := s.loadLocked()
	replaced := false
	for i := range legs {
		if legs[i].LegNumber == leg.LegNumber {
			legs[i] = leg
			replaced = true
			break
		}
	}
	if !replaced {
		legs = append(legs, leg)
	}
	sortLegs(legs)

	return s.persistLocked(legs)
}

// persistLocked writes legs to a temp file in the ledger's directory and
// renames it over the target, so readers never observe a partial file.
func (s *Store) persistLocked(legs []Leg) error {
	data, err := json.MarshalIndent(legs, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding ledger: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating ledger directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".ledger-*.json")
	if err != nil {
		return fmt.Errorf("creating temp ledger file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp ledger file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replacing ledger file: %w", err)
	}
	return nil
}

// Filter returns the legs matching the given status and/or path. Empty
// arguments match everything; order follows the canonical load order.
func Filter(legs []Leg, status Status, path string) []Leg {
	out := make([]Leg, 0, len(legs))
	for _, leg := range legs {
		if status != "" && leg.Status != status {
			continue
		}
		if path != "" && leg.Path != path {
			continue
		}
		out = append(out, leg)
	}
	return out
}

func sortLegs(legs []Leg) {
	sort.SliceStable(legs, func(i, j int) bool {
		return legs[i].LegNumber < legs[j].LegNumber
	})
}
