package memory

import (
	"context"
	"sync"

	"github.com/aevon-lab/statenames/internal/core/storage"
)

// Repository is an in-memory implementation of storage.Repository.
// Useful for testing and development.
type Repository struct {
	mu      sync.RWMutex
	records map[string]*storage.StateRecord
}

// NewRepository creates a new in-memory state record repository.
func NewRepository() *Repository {
	return &Repository{
		records: make(map[string]*storage.StateRecord),
	}
}

func (r *Repository) Get(ctx context.Context, state string) (*storage.StateRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, exists := r.records[state]
	if !exists {
		return nil, storage.ErrNotFound
	}

	// Return a copy to prevent external modification
	return clone(record), nil
}

func (r *Repository) Put(ctx context.Context, record *storage.StateRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Store a copy to prevent external modification
	r.records[record.State] = clone(record)
	return nil
}

func (r *Repository) ScanAll(ctx context.Context) ([]*storage.StateRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*storage.StateRecord, 0, len(r.records))
	for _, record := range r.records {
		result = append(result, clone(record))
	}
	return result, nil
}

// Ping reports the store as healthy; the in-memory backend has no external
// dependency to probe.
func (r *Repository) Ping(ctx context.Context) error {
	return nil
}

func clone(record *storage.StateRecord) *storage.StateRecord {
	copied := *record
	copied.StateBuckets = cloneBuckets(record.StateBuckets)
	copied.OtherBuckets = cloneBuckets(record.OtherBuckets)
	return &copied
}

func cloneBuckets(buckets [][]string) [][]string {
	if buckets == nil {
		return nil
	}
	cloned := make([][]string, len(buckets))
	for i, bucket := range buckets {
		cloned[i] = append([]string{}, bucket...)
	}
	return cloned
}
