// Package redis implements storage.Repository on top of go-redis/v9. Each
// state record is stored as a JSON document under a prefixed key, so the
// backend stays a drop-in swap for the postgres adapter.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aevon-lab/statenames/internal/core/storage"
)

const connectPingTimeout = 5 * time.Second

// scanBatchSize is the COUNT hint passed to SCAN when iterating record keys.
const scanBatchSize = 100

// Adapter implements storage.Repository for Redis.
type Adapter struct {
	rdb       *redis.Client
	keyPrefix string
}

// NewAdapter creates a Redis storage adapter and verifies the connection
// with a PING. Records are stored under "<keyPrefix>:<STATE>".
func NewAdapter(addr, password string, db int, keyPrefix string) (*Adapter, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectPingTimeout)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	slog.Info("[Redis] Adapter initialized", "addr", addr, "key_prefix", keyPrefix)

	return &Adapter{rdb: rdb, keyPrefix: keyPrefix}, nil
}

func (a *Adapter) recordKey(state string) string {
	return a.keyPrefix + ":" + state
}

// Put stores a state record as JSON, replacing any previous version.
// Records have no TTL; they live until the next loader run overwrites them.
func (a *Adapter) Put(ctx context.Context, record *storage.StateRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}

	recordJSON, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal state record: %w", err)
	}

	if err := a.rdb.Set(ctx, a.recordKey(record.State), recordJSON, 0).Err(); err != nil {
		return fmt.Errorf("failed to put state record: %w", err)
	}

	slog.Debug("[Redis] Stored state record",
		"state", record.State,
		"unique_names", record.UniqueNames)
	return nil
}

// Get fetches one state's record.
// Returns storage.ErrNotFound when the key does not exist.
func (a *Adapter) Get(ctx context.Context, state string) (*storage.StateRecord, error) {
	recordJSON, err := a.rdb.Get(ctx, a.recordKey(state)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get state record: %w", err)
	}

	var record storage.StateRecord
	if err := json.Unmarshal(recordJSON, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state record: %w", err)
	}

	return &record, nil
}

// ScanAll iterates every record key under the adapter's prefix and fetches
// each document.
func (a *Adapter) ScanAll(ctx context.Context) ([]*storage.StateRecord, error) {
	var records []*storage.StateRecord

	iter := a.rdb.Scan(ctx, 0, a.keyPrefix+":*", scanBatchSize).Iterator()
	for iter.Next(ctx) {
		recordJSON, err := a.rdb.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				// Key expired between SCAN and GET.
				continue
			}
			return nil, fmt.Errorf("failed to get state record %s: %w", iter.Val(), err)
		}

		var record storage.StateRecord
		if err := json.Unmarshal(recordJSON, &record); err != nil {
			return nil, fmt.Errorf("failed to unmarshal state record %s: %w", iter.Val(), err)
		}
		records = append(records, &record)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan state record keys: %w", err)
	}

	return records, nil
}

// Ping sends a PING to Redis. Used by health checks.
func (a *Adapter) Ping(ctx context.Context) error {
	return a.rdb.Ping(ctx).Err()
}

// Close closes the underlying Redis connection.
func (a *Adapter) Close() error {
	return a.rdb.Close()
}
