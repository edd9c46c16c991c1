package jsonfile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/bnema/imgbatch/internal/domain"
	"github.com/bnema/imgbatch/internal/port"
)

type recordKey struct {
	requestID string
	entityID  int64
}

// Store keeps every record in memory and rewrites records.json on each change.
// It suits single-process deployments with modest volumes.
type Store struct {
	mu      sync.RWMutex
	path    string
	records map[recordKey]*domain.EntityRecord
}

func NewStore(dataDir string) (*Store, error) {
	path := filepath.Join(dataDir, "records.json")

	store := &Store{
		path:    path,
		records: make(map[recordKey]*domain.EntityRecord),
	}

	if err := store.load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	}

	return store, nil
}

func (s *Store) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}

	if len(data) == 0 {
		return nil
	}

	var list []*domain.EntityRecord
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}

	for _, r := range list {
		s.records[recordKey{r.RequestID, r.EntityID}] = r
	}

	return nil
}

func (s *Store) save() error {
	tmpPath := s.path + ".tmp"

	list := make([]*domain.EntityRecord, 0, len(s.records))
	for _, r := range s.records {
		list = append(list, r)
	}
	sortRecords(list)

	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return err
	}

	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}

	return os.Rename(tmpPath, s.path)
}

func (s *Store) Persist(_ context.Context, rec *domain.EntityRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := recordKey{rec.RequestID, rec.EntityID}
	if stored, ok := s.records[key]; ok && !domain.CanOverwrite(stored.Status, rec.Status) {
		return fmt.Errorf("%w: entity %d of %s is already %s", domain.ErrInvalidTransition, rec.EntityID, rec.RequestID, stored.Status)
	}

	previous, existed := s.records[key]
	s.records[key] = rec.Clone()
	if err := s.save(); err != nil {
		if existed {
			s.records[key] = previous
		} else {
			delete(s.records, key)
		}
		return fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	return nil
}

func (s *Store) Query(_ context.Context, requestID string) ([]*domain.EntityRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.EntityRecord
	for key, r := range s.records {
		if key.requestID == requestID {
			result = append(result, r.Clone())
		}
	}
	if len(result) == 0 {
		return nil, domain.ErrNotFound
	}

	sortRecords(result)
	return result, nil
}

func (s *Store) DeleteExpired(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := make(map[recordKey]*domain.EntityRecord)
	for key, r := range s.records {
		if r.Status.IsTerminal() && r.UpdatedAt.Before(cutoff) {
			removed[key] = r
			delete(s.records, key)
		}
	}
	if len(removed) == 0 {
		return 0, nil
	}

	if err := s.save(); err != nil {
		for key, r := range removed {
			s.records[key] = r
		}
		return 0, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	return len(removed), nil
}

func (s *Store) Close() error {
	return nil
}

func sortRecords(list []*domain.EntityRecord) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].RequestID != list[j].RequestID {
			return list[i].RequestID < list[j].RequestID
		}
		if list[i].Position != list[j].Position {
			return list[i].Position < list[j].Position
		}
		return list[i].EntityID < list[j].EntityID
	})
}

var _ port.StatusStore = (*Store)(nil)
