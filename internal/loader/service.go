package loader

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aevon-lab/statenames/internal/core/bucketing"
	"github.com/aevon-lab/statenames/internal/core/storage"
	"github.com/aevon-lab/statenames/internal/metrics"
)

const (
	defaultYearFrom       = 1955
	defaultYearTo         = 2010
	defaultMaxBucketBytes = 3950
	defaultStateBuckets   = 4
	defaultOtherBuckets   = 2
	defaultTopNames       = 10
)

// Options control one batch run.
type Options struct {
	// StateGlob matches one frequency data file per state.
	StateGlob string

	// OtherNamesPath points at the supplementary name list. Empty or
	// unreadable paths skip the other names buckets for this run.
	OtherNamesPath string

	YearFrom       int
	YearTo         int
	MaxBucketBytes int
	StateBuckets   int
	OtherBuckets   int

	// StateDelay is an optional pause between state publishes, throttling
	// write pressure on the store.
	StateDelay time.Duration

	// TopNames is how many leading ranked names to report per state.
	TopNames int
}

func (o Options) normalized() Options {
	n := o
	if n.YearFrom <= 0 {
		n.YearFrom = defaultYearFrom
	}
	if n.YearTo <= 0 {
		n.YearTo = defaultYearTo
	}
	if n.MaxBucketBytes <= 0 {
		n.MaxBucketBytes = defaultMaxBucketBytes
	}
	if n.StateBuckets <= 0 {
		n.StateBuckets = defaultStateBuckets
	}
	if n.OtherBuckets <= 0 {
		n.OtherBuckets = defaultOtherBuckets
	}
	if n.TopNames < 0 {
		n.TopNames = defaultTopNames
	}
	return n
}

// StateResult summarizes one published state.
type StateResult struct {
	State       string
	UniqueNames int
	TotalCount  int
	PackedNames int
	Truncated   int
	NewNames    int
}

// Summary reports one complete batch run.
type Summary struct {
	RunID           string
	StatesPublished int
	StatesFailed    int
	NamesTruncated  int
	Results         []StateResult
}

// Service runs the batch pipeline: aggregate each state's frequency records,
// rank and pack the names into buckets, and publish one record per state.
type Service struct {
	repo    storage.Repository
	opts    Options
	metrics *metrics.Metrics
}

// NewService creates a new loader service. Metrics may be nil.
func NewService(repo storage.Repository, opts Options, m *metrics.Metrics) *Service {
	return &Service{
		repo:    repo,
		opts:    opts.normalized(),
		metrics: m,
	}
}

// Run executes one batch over every discovered state file. States are
// processed sequentially in path order; a failing state is logged and skipped
// so one bad file cannot sink the whole run.
func (s *Service) Run(ctx context.Context) (*Summary, error) {
	runID := uuid.New().String()
	start := time.Now()

	files, err := DiscoverStateFiles(s.opts.StateGlob)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no state data files match %q", s.opts.StateGlob)
	}

	supplementary := s.loadSupplementaryNames()

	// Seed the known-name set from whatever previous runs published. The
	// set is advisory bookkeeping threaded through the run; packing never
	// depends on it.
	knownNames := s.loadExistingNames(ctx)

	slog.Info("[Loader] Starting batch run",
		"run_id", runID,
		"state_files", len(files),
		"supplementary_names", len(supplementary),
		"known_names", len(knownNames),
		"year_from", s.opts.YearFrom,
		"year_to", s.opts.YearTo,
	)

	summary := &Summary{RunID: runID}
	for i, path := range files {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		state := StateCodeFromPath(path)
		result, err := s.loadState(ctx, path, state, supplementary, knownNames)
		if err != nil {
			slog.Error("[Loader] Failed to publish state",
				"run_id", runID,
				"state", state,
				"error", err,
			)
			summary.StatesFailed++
			if s.metrics != nil {
				s.metrics.StatesFailed.Inc()
			}
		} else {
			summary.StatesPublished++
			summary.NamesTruncated += result.Truncated
			summary.Results = append(summary.Results, result)
			if s.metrics != nil {
				s.metrics.StatesPublished.Inc()
			}
		}

		if s.opts.StateDelay > 0 && i < len(files)-1 {
			select {
			case <-ctx.Done():
				return summary, ctx.Err()
			case <-time.After(s.opts.StateDelay):
			}
		}
	}

	duration := time.Since(start)
	if s.metrics != nil {
		s.metrics.LoaderRunDuration.Observe(duration.Seconds())
		s.metrics.LoaderLastRun.SetToCurrentTime()
	}

	slog.Info("[Loader] Batch complete",
		"run_id", runID,
		"states_published", summary.StatesPublished,
		"states_failed", summary.StatesFailed,
		"names_truncated", summary.NamesTruncated,
		"duration", duration.Round(time.Millisecond).String(),
	)

	return summary, nil
}

// loadState aggregates, packs and publishes a single state. The packed names
// are folded into knownNames so later states see them.
func (s *Service) loadState(
	ctx context.Context,
	path string,
	state string,
	supplementary []string,
	knownNames map[string]struct{},
) (StateResult, error) {
	lines, err := ReadLines(path)
	if err != nil {
		return StateResult{}, err
	}

	ranked, total := bucketing.Aggregate(lines, s.opts.YearFrom, s.opts.YearTo)
	stateBuckets := bucketing.Pack(ranked, s.opts.MaxBucketBytes, s.opts.StateBuckets)
	packed := bucketing.PackedCount(stateBuckets)

	truncated := len(ranked) - packed
	if truncated > 0 {
		slog.Warn("[Loader] Buckets full, dropping lowest ranked names",
			"state", state,
			"dropped", truncated,
			"packed", packed,
			"ranked", len(ranked),
		)
		if s.metrics != nil {
			s.metrics.NamesTruncated.WithLabelValues(state).Add(float64(truncated))
		}
	}

	own := make(map[string]struct{}, packed)
	for _, bucket := range stateBuckets {
		for _, name := range bucket {
			own[name] = struct{}{}
		}
	}

	// Supplementary packing excludes only the state's own packed names, so
	// every state sees the full candidate list minus its local duplicates.
	var otherBuckets [][]string
	if len(supplementary) > 0 {
		otherBuckets = bucketing.PackSupplementary(supplementary, own, s.opts.MaxBucketBytes, s.opts.OtherBuckets)
	}

	newNames := 0
	for name := range own {
		if _, seen := knownNames[name]; !seen {
			newNames++
		}
	}

	record := &storage.StateRecord{
		State:          state,
		StateBuckets:   stateBuckets,
		OtherBuckets:   otherBuckets,
		UniqueNames:    len(ranked),
		TotalNameCount: total,
	}

	if err := s.repo.Put(ctx, record); err != nil {
		return StateResult{}, fmt.Errorf("put state record: %w", err)
	}

	for name := range own {
		knownNames[name] = struct{}{}
	}

	s.logTopNames(state, ranked)
	s.logBucketSizes(state, stateBuckets, otherBuckets)

	slog.Info("[Loader] Published state record",
		"state", state,
		"unique_names", len(ranked),
		"total_count", total,
		"packed_names", packed,
		"new_names", newNames,
	)

	return StateResult{
		State:       state,
		UniqueNames: len(ranked),
		TotalCount:  total,
		PackedNames: packed,
		Truncated:   truncated,
		NewNames:    newNames,
	}, nil
}

func (s *Service) loadSupplementaryNames() []string {
	if s.opts.OtherNamesPath == "" {
		return nil
	}

	names, err := ReadSupplementaryNames(s.opts.OtherNamesPath)
	if err != nil {
		slog.Warn("[Loader] Supplementary names unavailable, skipping other names buckets",
			"path", s.opts.OtherNamesPath,
			"error", err,
		)
		return nil
	}
	return names
}

func (s *Service) loadExistingNames(ctx context.Context) map[string]struct{} {
	names, err := storage.LoadExistingNames(ctx, s.repo)
	if err != nil {
		slog.Warn("[Loader] Could not load existing names, starting from empty set", "error", err)
		return map[string]struct{}{}
	}
	return names
}

func (s *Service) logTopNames(state string, ranked []bucketing.RankedName) {
	if s.opts.TopNames <= 0 || len(ranked) == 0 {
		return
	}

	n := minInt(s.opts.TopNames, len(ranked))
	top := make([]string, 0, n)
	for _, rn := range ranked[:n] {
		top = append(top, fmt.Sprintf("%s=%d", rn.Name, rn.Total))
	}

	slog.Info("[Loader] Top ranked names", "state", state, "top", strings.Join(top, " "))
}

func (s *Service) logBucketSizes(state string, stateBuckets, otherBuckets [][]string) {
	for i, bucket := range stateBuckets {
		slog.Debug("[Loader] Bucket packed",
			"state", state,
			"bucket", storage.BucketRef{Family: storage.FamilyState, Ordinal: i + 1}.Key(),
			"names", len(bucket),
			"bytes", bucketing.SerializedSize(bucket),
		)
	}
	for i, bucket := range otherBuckets {
		slog.Debug("[Loader] Bucket packed",
			"state", state,
			"bucket", storage.BucketRef{Family: storage.FamilyOther, Ordinal: i + 1}.Key(),
			"names", len(bucket),
			"bytes", bucketing.SerializedSize(bucket),
		)
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
