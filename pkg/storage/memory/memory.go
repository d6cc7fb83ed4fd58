// Package memory provides an in-process RefreshTokenStore. It backs tests
// and single-node development; the lifecycle logic is identical against the
// postgres store.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/openidx/authcore/pkg/storage"
)

// Store is an in-memory refresh token store keyed by subject id
type Store struct {
	mu      sync.RWMutex
	records map[string]storage.RefreshTokenRecord
}

// New creates an empty in-memory store
func New() *Store {
	return &Store{records: make(map[string]storage.RefreshTokenRecord)}
}

func (s *Store) Upsert(ctx context.Context, subjectID, token string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	rec, ok := s.records[subjectID]
	if !ok {
		rec = storage.RefreshTokenRecord{SubjectID: subjectID, CreatedAt: now}
	}
	rec.Token = token
	rec.UpdatedAt = now
	rec.ExpiresAt = expiresAt
	s.records[subjectID] = rec
	return nil
}

func (s *Store) FindBySubject(ctx context.Context, subjectID string) (storage.RefreshTokenRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[subjectID]
	if !ok || time.Now().UTC().After(rec.ExpiresAt) {
		return storage.RefreshTokenRecord{}, storage.ErrNotFound
	}
	return rec, nil
}

func (s *Store) DeleteBySubject(ctx context.Context, subjectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, subjectID)
	return nil
}

func (s *Store) DeleteByToken(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for subjectID, rec := range s.records {
		if rec.Token == token {
			delete(s.records, subjectID)
			return nil
		}
	}
	return nil
}
