// Package store keeps the per-session processing records that pollers read.
package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/ppiankov/callfacts/internal/model"
)

// Store defines the session result store.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the record for sessionID; found is false when none exists
	Get(ctx context.Context, sessionID string) (record model.ProcessingRecord, found bool, err error)

	// Put replaces the record for sessionID
	Put(ctx context.Context, sessionID string, record model.ProcessingRecord) error

	// Delete removes the record for sessionID
	Delete(ctx context.Context, sessionID string) error
}

// Lookup returns the session's record, or the placeholder record when the
// session has none. It never writes.
func Lookup(ctx context.Context, s Store, sessionID string) (model.ProcessingRecord, error) {
	record, found, err := s.Get(ctx, sessionID)
	if err != nil {
		return model.ProcessingRecord{}, err
	}
	if !found {
		return model.PlaceholderRecord(), nil
	}
	return record, nil
}

// RecordKey maps a session id to a fixed-length storage key
func RecordKey(sessionID string) string {
	hash := sha256.Sum256([]byte(sessionID))
	return "callfacts:v1:session:" + hex.EncodeToString(hash[:])
}
