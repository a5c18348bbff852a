package loader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aevon-lab/statenames/internal/core/storage"
	"github.com/aevon-lab/statenames/internal/core/storage/memory"
)

const ohFixture = `OH,F,1980,Mary,120
OH,F,1981,Mary,80
OH,M,1980,James,150
OH,M,1985,John,60
OH,M,1954,Elvis,999
OH,M,2011,Jayden,999
not,a,record
OH,F,1982,Linda,50
`

const wyFixture = `WY,M,1990,James,40
WY,M,1991,Wade,30
`

func writeFixture(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func fixtureOptions(t *testing.T) (Options, string) {
	t.Helper()

	dir := t.TempDir()
	writeFixture(t, dir, "OH.TXT", ohFixture)
	writeFixture(t, dir, "WY.TXT", wyFixture)
	supplementary := writeFixture(t, dir, "other_names.txt", "Yuki\nJohn\nSven\n")

	return Options{
		StateGlob:      filepath.Join(dir, "*.TXT"),
		OtherNamesPath: supplementary,
	}, dir
}

func TestRun_PublishesStateRecords(t *testing.T) {
	opts, _ := fixtureOptions(t)
	repo := memory.NewRepository()
	svc := NewService(repo, opts, nil)

	summary, err := svc.Run(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, summary.RunID)
	require.Equal(t, 2, summary.StatesPublished)
	require.Equal(t, 0, summary.StatesFailed)

	record, err := repo.Get(context.Background(), "OH")
	require.NoError(t, err)

	// Aggregated across years and ranked by descending total:
	// Mary 200, James 150, John 60, Linda 50. Out-of-window years and the
	// malformed line contribute nothing.
	require.Len(t, record.StateBuckets, 4)
	require.Equal(t, []string{"Mary", "James", "John", "Linda"}, record.StateBuckets[0])
	require.Equal(t, 4, record.UniqueNames)
	require.Equal(t, 120+80+150+60+50, record.TotalNameCount)

	wyRecord, err := repo.Get(context.Background(), "WY")
	require.NoError(t, err)
	require.Equal(t, []string{"James", "Wade"}, wyRecord.StateBuckets[0])
	require.Equal(t, 70, wyRecord.TotalNameCount)
}

func TestRun_SupplementaryExcludesOwnPackedNames(t *testing.T) {
	opts, _ := fixtureOptions(t)
	repo := memory.NewRepository()
	svc := NewService(repo, opts, nil)

	_, err := svc.Run(context.Background())
	require.NoError(t, err)

	// OH packed John, so its supplementary buckets must not repeat it.
	ohRecord, err := repo.Get(context.Background(), "OH")
	require.NoError(t, err)
	require.Len(t, ohRecord.OtherBuckets, 2)
	require.Equal(t, []string{"Yuki", "Sven"}, ohRecord.OtherBuckets[0])

	// WY never packed John, so it keeps the full candidate list.
	wyRecord, err := repo.Get(context.Background(), "WY")
	require.NoError(t, err)
	require.Equal(t, []string{"Yuki", "John", "Sven"}, wyRecord.OtherBuckets[0])
}

func TestRun_RepublishIsIdempotent(t *testing.T) {
	opts, _ := fixtureOptions(t)
	repo := memory.NewRepository()
	svc := NewService(repo, opts, nil)

	_, err := svc.Run(context.Background())
	require.NoError(t, err)

	first, err := repo.Get(context.Background(), "OH")
	require.NoError(t, err)

	_, err = svc.Run(context.Background())
	require.NoError(t, err)

	second, err := repo.Get(context.Background(), "OH")
	require.NoError(t, err)
	require.Equal(t, first, second)

	all, err := repo.ScanAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestRun_MissingSupplementaryFileSkipsOtherBuckets(t *testing.T) {
	opts, dir := fixtureOptions(t)
	opts.OtherNamesPath = filepath.Join(dir, "does_not_exist.txt")

	repo := memory.NewRepository()
	svc := NewService(repo, opts, nil)

	summary, err := svc.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, summary.StatesPublished)

	record, err := repo.Get(context.Background(), "OH")
	require.NoError(t, err)
	require.Nil(t, record.OtherBuckets)
}

func TestRun_TruncationIsCountedButNotFatal(t *testing.T) {
	opts, _ := fixtureOptions(t)
	// Room for the container plus one short name per bucket, two buckets:
	// only the top two of OH's four ranked names survive.
	opts.MaxBucketBytes = 12
	opts.StateBuckets = 2
	opts.OtherBuckets = 2

	repo := memory.NewRepository()
	svc := NewService(repo, opts, nil)

	summary, err := svc.Run(context.Background())
	require.NoError(t, err)

	record, err := repo.Get(context.Background(), "OH")
	require.NoError(t, err)
	require.Equal(t, []string{"Mary"}, record.StateBuckets[0])
	require.Equal(t, []string{"James"}, record.StateBuckets[1])

	// Unique and total counts describe the full aggregation, not the
	// truncated packing.
	require.Equal(t, 4, record.UniqueNames)
	require.Equal(t, 460, record.TotalNameCount)

	var ohResult *StateResult
	for i := range summary.Results {
		if summary.Results[i].State == "OH" {
			ohResult = &summary.Results[i]
		}
	}
	require.NotNil(t, ohResult)
	require.Equal(t, 2, ohResult.PackedNames)
	require.Equal(t, 2, ohResult.Truncated)
	require.GreaterOrEqual(t, summary.NamesTruncated, 2)
}

func TestRun_NewNamesTrackedAcrossStates(t *testing.T) {
	opts, _ := fixtureOptions(t)
	repo := memory.NewRepository()
	svc := NewService(repo, opts, nil)

	summary, err := svc.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, summary.Results, 2)

	// Files are processed in sorted order: OH first, then WY. WY shares
	// James with OH, so only Wade counts as new.
	require.Equal(t, "OH", summary.Results[0].State)
	require.Equal(t, 4, summary.Results[0].NewNames)
	require.Equal(t, "WY", summary.Results[1].State)
	require.Equal(t, 1, summary.Results[1].NewNames)
}

type putFailRepo struct {
	*memory.Repository
	failState string
}

func (r *putFailRepo) Put(ctx context.Context, record *storage.StateRecord) error {
	if record.State == r.failState {
		return errors.New("simulated write failure")
	}
	return r.Repository.Put(ctx, record)
}

func TestRun_ContinuesPastFailingState(t *testing.T) {
	opts, _ := fixtureOptions(t)
	repo := &putFailRepo{Repository: memory.NewRepository(), failState: "OH"}
	svc := NewService(repo, opts, nil)

	summary, err := svc.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, summary.StatesPublished)
	require.Equal(t, 1, summary.StatesFailed)

	_, err = repo.Get(context.Background(), "OH")
	require.ErrorIs(t, err, storage.ErrNotFound)

	_, err = repo.Get(context.Background(), "WY")
	require.NoError(t, err)
}

func TestRun_NoMatchingFilesFails(t *testing.T) {
	svc := NewService(memory.NewRepository(), Options{
		StateGlob: filepath.Join(t.TempDir(), "*.TXT"),
	}, nil)

	_, err := svc.Run(context.Background())
	require.Error(t, err)
	require.ErrorContains(t, err, "no state data files match")
}

func TestRun_CanceledContextStopsRun(t *testing.T) {
	opts, _ := fixtureOptions(t)
	repo := memory.NewRepository()
	svc := NewService(repo, opts, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := svc.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 0, summary.StatesPublished)
}

func TestRun_StateDelayBetweenPublishes(t *testing.T) {
	opts, _ := fixtureOptions(t)
	opts.StateDelay = time.Millisecond

	repo := memory.NewRepository()
	svc := NewService(repo, opts, nil)

	summary, err := svc.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, summary.StatesPublished)
}
