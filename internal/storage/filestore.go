package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"licznik.app/server/internal/models"
)

// snapshot is the on-disk shape of the whole dataset. Entries are kept in
// insertion order.
type snapshot struct {
	Counters map[string]int64 `json:"counters"`
	Entries  []models.Entry   `json:"entries"`
}

// FileStore keeps the whole dataset as one JSON snapshot on disk. Every
// mutation holds the single write lock and is fsynced before it is
// acknowledged, so an acknowledged response implies durability. With an
// empty path the store is volatile, which the tests rely on.
type FileStore struct {
	mu         sync.Mutex
	path       string
	categories []models.Category
	snap       snapshot
}

// NewFileStore opens (or initializes) the snapshot at path. An empty path
// keeps the dataset in memory only.
func NewFileStore(path string, categories []models.Category) (*FileStore, error) {
	s := &FileStore{
		path:       path,
		categories: categories,
		snap: snapshot{
			Counters: make(map[string]int64, len(categories)),
			Entries:  []models.Entry{},
		},
	}
	for _, cat := range categories {
		s.snap.Counters[string(cat)] = 0
	}

	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		if err := s.persistLocked(); err != nil {
			return nil, err
		}
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	if err := json.Unmarshal(data, &s.snap); err != nil {
		return nil, fmt.Errorf("parse snapshot %s: %w", path, err)
	}
	if s.snap.Counters == nil {
		s.snap.Counters = make(map[string]int64)
	}
	for _, cat := range categories {
		if _, ok := s.snap.Counters[string(cat)]; !ok {
			s.snap.Counters[string(cat)] = 0
		}
	}
	return s, nil
}

func (s *FileStore) CounterSet(ctx context.Context) (models.CounterSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set := make(models.CounterSet, len(s.categories))
	for _, cat := range s.categories {
		set[cat] = s.snap.Counters[string(cat)]
	}
	return set, nil
}

func (s *FileStore) AtomicAdjust(ctx context.Context, cat models.Category, delta int64) (Adjustment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := s.snap.Counters[string(cat)] + delta
	clamped := count < 0
	if clamped {
		count = 0
	}
	s.snap.Counters[string(cat)] = count
	if err := s.persistLocked(); err != nil {
		return Adjustment{}, err
	}
	return Adjustment{Count: count, Clamped: clamped}, nil
}

func (s *FileStore) ResetCounterSet(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for cat := range s.snap.Counters {
		s.snap.Counters[cat] = 0
	}
	return s.persistLocked()
}

func (s *FileStore) SetCount(ctx context.Context, cat models.Category, count int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snap.Counters[string(cat)] = count
	return s.persistLocked()
}

func (s *FileStore) InsertEntry(ctx context.Context, entry *models.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snap.Entries = append(s.snap.Entries, *entry)
	return s.persistLocked()
}

func (s *FileStore) Entry(ctx context.Context, id string) (*models.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.snap.Entries {
		if s.snap.Entries[i].ID == id {
			entry := s.snap.Entries[i]
			return &entry, nil
		}
	}
	return nil, ErrNotFound
}

func (s *FileStore) DeleteEntry(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.snap.Entries {
		if s.snap.Entries[i].ID == id {
			s.snap.Entries = append(s.snap.Entries[:i], s.snap.Entries[i+1:]...)
			return s.persistLocked()
		}
	}
	return nil
}

func (s *FileStore) ListEntries(ctx context.Context, limit int) ([]models.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		return []models.Entry{}, nil
	}
	n := len(s.snap.Entries)
	if limit > n {
		limit = n
	}
	out := make([]models.Entry, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, s.snap.Entries[i])
	}
	return out, nil
}

func (s *FileStore) DeleteAllEntries(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snap.Entries = []models.Entry{}
	return s.persistLocked()
}

func (s *FileStore) LiveTotals(ctx context.Context) (map[models.Category]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	totals := make(map[models.Category]int64, len(s.categories))
	for _, cat := range s.categories {
		totals[cat] = 0
	}
	for i := range s.snap.Entries {
		totals[s.snap.Entries[i].Category]++
	}
	return totals, nil
}

func (s *FileStore) Close() error { return nil }

// persistLocked writes the snapshot via a temp file and rename so a crash
// mid-write never leaves a torn file. Callers hold s.mu.
func (s *FileStore) persistLocked() error {
	if s.path == "" {
		return nil
	}

	data, err := json.MarshalIndent(&s.snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".licznik-*.json")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}
