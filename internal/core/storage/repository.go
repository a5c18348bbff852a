package storage

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get when no record exists for the state code.
// Callers that treat missing states as empty results must check for it with
// errors.Is rather than surfacing it as a failure.
var ErrNotFound = errors.New("state record not found")

// Repository is the persistence contract shared by every backend. Put
// replaces the state's record wholesale; there are no partial updates, so a
// loader run either publishes a complete record or leaves the previous one
// intact.
type Repository interface {
	// Get fetches one state's record. Returns ErrNotFound when the state
	// has never been published.
	Get(ctx context.Context, state string) (*StateRecord, error)

	// Put stores the record under its state code, overwriting any previous
	// version.
	Put(ctx context.Context, record *StateRecord) error

	// ScanAll returns every persisted state record.
	ScanAll(ctx context.Context) ([]*StateRecord, error)
}

// LoadExistingNames scans all persisted records and unions the names held in
// their state-owned buckets. The loader seeds its bookkeeping from this set
// before a batch run.
func LoadExistingNames(ctx context.Context, repo Repository) (map[string]struct{}, error) {
	records, err := repo.ScanAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan state records: %w", err)
	}

	names := make(map[string]struct{})
	for _, record := range records {
		for name := range record.OwnNames() {
			names[name] = struct{}{}
		}
	}
	return names, nil
}
