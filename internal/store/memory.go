package store

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/ppiankov/callfacts/internal/model"
)

// MemoryStore keeps records in process memory. Records expire after the
// configured TTL; zero keeps them until the process exits.
type MemoryStore struct {
	cache *gocache.Cache
}

// NewMemoryStore creates a new memory store
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	return &MemoryStore{
		cache: gocache.New(ttl, 10*time.Minute),
	}
}

// Get retrieves a copy of the session's record
func (s *MemoryStore) Get(ctx context.Context, sessionID string) (model.ProcessingRecord, bool, error) {
	if val, found := s.cache.Get(RecordKey(sessionID)); found {
		return val.(model.ProcessingRecord).Clone(), true, nil
	}
	return model.ProcessingRecord{}, false, nil
}

// Put stores a copy of the record with the default TTL
func (s *MemoryStore) Put(ctx context.Context, sessionID string, record model.ProcessingRecord) error {
	s.cache.SetDefault(RecordKey(sessionID), record.Clone())
	return nil
}

// Delete removes the session's record
func (s *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	s.cache.Delete(RecordKey(sessionID))
	return nil
}
