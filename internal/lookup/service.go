package lookup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"

	v1 "github.com/aevon-lab/statenames/internal/api/v1"
	"github.com/aevon-lab/statenames/internal/core/storage"
	"github.com/aevon-lab/statenames/internal/metrics"
)

// ErrInvalidRequest marks request validation errors that should return HTTP 400.
var ErrInvalidRequest = errors.New("invalid lookup request")

// Service resolves bucket lookups against the state record store.
type Service struct {
	repo         storage.Repository
	stateBuckets int
	otherBuckets int
	metrics      *metrics.Metrics

	fetchGroup singleflight.Group // Dedupe concurrent record fetches per state
}

// NewService creates a new lookup service. The bucket counts bound the
// ordinals accepted in bucket identifiers and must match what the loader
// published. Metrics may be nil.
func NewService(repo storage.Repository, stateBuckets, otherBuckets int, m *metrics.Metrics) *Service {
	return &Service{
		repo:         repo,
		stateBuckets: stateBuckets,
		otherBuckets: otherBuckets,
		metrics:      m,
	}
}

// Resolve validates the request and returns the names stored in the addressed
// bucket.
//
// Validation runs before any store access, in a fixed order: missing
// parameters, then family prefix, then ordinal range. A state with no
// published record resolves to an empty list rather than an error, as does a
// bucket key absent from the record.
func (s *Service) Resolve(ctx context.Context, req *v1.LookupRequest) ([]string, error) {
	if err := req.Validate(); err != nil {
		return nil, invalidRequestf("%s", err)
	}

	ref, err := storage.ParseBucketRef(req.Bucket, s.stateBuckets, s.otherBuckets)
	if err != nil {
		return nil, invalidRequestf("%s", err)
	}

	record, err := s.fetchRecord(ctx, req.State)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			slog.Debug("[Lookup] State has no published record", "state", req.State)
			return []string{}, nil
		}
		return nil, fmt.Errorf("fetch state record: %w", err)
	}

	names, ok := record.Names(ref)
	if !ok || names == nil {
		// The record was published without this bucket key, e.g. a loader
		// run that skipped the supplementary source.
		return []string{}, nil
	}

	return names, nil
}

// fetchRecord loads one state's record, collapsing concurrent fetches for the
// same state into a single store read.
func (s *Service) fetchRecord(ctx context.Context, state string) (*storage.StateRecord, error) {
	result, err, _ := s.fetchGroup.Do(state, func() (interface{}, error) {
		return s.repo.Get(ctx, state)
	})
	if err != nil {
		return nil, err
	}
	return result.(*storage.StateRecord), nil
}

func (s *Service) countLookup(result string, names int) {
	if s.metrics == nil {
		return
	}
	s.metrics.LookupsTotal.WithLabelValues(result).Inc()
	if result == "ok" || result == "empty" {
		s.metrics.LookupNamesReturned.Observe(float64(names))
	}
}

func invalidRequestf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}
