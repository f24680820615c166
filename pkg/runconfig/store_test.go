package runconfig

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	schemasassets "github.com/3leaps/gosperf/internal/assets/schemas"
	"github.com/3leaps/gosperf/pkg/job"
)

func newTestStore(t *testing.T, runs ...int) *Store {
	t.Helper()
	root := t.TempDir()
	runDir := func(n int) string { return filepath.Join(root, "run"+strconv.Itoa(n)) }
	for _, n := range runs {
		require.NoError(t, os.MkdirAll(runDir(n), 0755))
	}
	return NewStore(runDir)
}

func TestStore_RoundTrip(t *testing.T) {
	s := newTestStore(t, 1)
	now := time.Date(2026, 1, 19, 12, 0, 0, 0, time.UTC)

	a, b, c := job.New("A", "S1"), job.New("B", "S1"), job.New("C", "S2")
	cfg := New(1, job.NewSet(a, b, c), 15*time.Minute, now)
	cfg.Catalog = "/data/catalog.yaml"
	cfg.JobsToRun = job.NewSet(b, c)
	cfg.JobsRun = job.NewSet(a, b)
	cfg.JobsFailed = job.NewSet(b)
	cfg.Touch(now.Add(time.Hour))

	require.NoError(t, s.Save(cfg))
	got, err := s.Load(1)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
	assert.Equal(t, 15*time.Minute, got.TimeLimit())
}

func TestStore_RoundTripEmptyFailed(t *testing.T) {
	s := newTestStore(t, 2)
	jobs := job.NewSet(job.New("A", "S1"), job.New("B", "S1"))
	cfg := New(2, jobs, 30*time.Second, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
	cfg.JobsRun = jobs.Clone()

	require.NoError(t, s.Save(cfg))

	raw, err := os.ReadFile(s.Path(2))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "jobs_failed: []")

	got, err := s.Load(2)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
	assert.NotNil(t, got.JobsFailed)
	assert.Equal(t, 0, got.JobsFailed.Len())
}

func TestStore_SaveRejectsBrokenInvariants(t *testing.T) {
	s := newTestStore(t, 1)
	a, b := job.New("A", "S1"), job.New("B", "S1")

	cfg := New(1, job.NewSet(a), time.Minute, time.Now())
	cfg.JobsRun = job.NewSet(b)
	require.ErrorIs(t, s.Save(cfg), ErrInvalid)

	cfg = New(1, job.NewSet(a, b), time.Minute, time.Now())
	cfg.JobsRun = job.NewSet(a)
	cfg.JobsFailed = job.NewSet(b)
	require.ErrorIs(t, s.Save(cfg), ErrInvalid)

	cfg = New(1, job.NewSet(a), 0, time.Now())
	require.ErrorIs(t, s.Save(cfg), ErrInvalid)

	assert.NoFileExists(t, s.Path(1))
}

func TestStore_LoadErrors(t *testing.T) {
	s := newTestStore(t, 1, 2, 3, 4)

	_, err := s.Load(9)
	require.ErrorIs(t, err, ErrNotFound)

	write := func(n int, body string) {
		require.NoError(t, os.WriteFile(s.Path(n), []byte(body), 0644))
	}

	write(1, "run_number: 1\ntime_limit: 10\njobs: [[a, s]]\nsurprise: true\n")
	_, err = s.Load(1)
	require.ErrorIs(t, err, ErrInvalid)
	require.ErrorIs(t, err, schemasassets.ErrValidationFailed)

	write(2, "run_number: 3\ntime_limit: 10\njobs: [[a, s]]\n")
	_, err = s.Load(2)
	require.ErrorIs(t, err, ErrInvalid)

	write(3, "run_number: 3\ntime_limit: 10\njobs: [[a, s]]\njobs_run: [[b, s]]\n")
	_, err = s.Load(3)
	require.ErrorIs(t, err, ErrInvalid)

	write(4, "")
	_, err = s.Load(4)
	require.ErrorIs(t, err, ErrInvalid)
}

func TestStore_LoadFillsMissingSets(t *testing.T) {
	s := newTestStore(t, 5)
	require.NoError(t, os.WriteFile(s.Path(5), []byte("run_number: 5\ntime_limit: 2.5\njobs: [[m, s]]\n"), 0644))

	got, err := s.Load(5)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Jobs.Len())
	assert.NotNil(t, got.JobsRun)
	assert.NotNil(t, got.JobsFailed)
	assert.NotNil(t, got.JobsToRun)
	assert.Equal(t, 2500*time.Millisecond, got.TimeLimit())
}
