package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/ppiankov/callfacts/internal/model"
)

// RedisStore keeps records as JSON values in Redis so several server
// processes can share sessions.
type RedisStore struct {
	rdb *goredis.Client
	ttl time.Duration
}

// NewRedisStore wraps an existing client. A zero ttl stores records without expiry.
func NewRedisStore(rdb *goredis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

// DialRedis connects to addr and verifies the connection with PING
func DialRedis(ctx context.Context, addr string, db int) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DB:          db,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

// Get retrieves the session's record
func (s *RedisStore) Get(ctx context.Context, sessionID string) (model.ProcessingRecord, bool, error) {
	raw, err := s.rdb.Get(ctx, RecordKey(sessionID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return model.ProcessingRecord{}, false, nil
	}
	if err != nil {
		return model.ProcessingRecord{}, false, fmt.Errorf("redis get: %w", err)
	}

	var record model.ProcessingRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return model.ProcessingRecord{}, false, fmt.Errorf("decode record: %w", err)
	}
	return record, true, nil
}

// Put replaces the session's record and refreshes its TTL
func (s *RedisStore) Put(ctx context.Context, sessionID string, record model.ProcessingRecord) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	if err := s.rdb.Set(ctx, RecordKey(sessionID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete removes the session's record
func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.rdb.Del(ctx, RecordKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Close closes the underlying client
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
