package rundir

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/gosperf/pkg/job"
)

func TestAllocate_SmallestFreeNumber(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "runs"))

	for want := 1; want <= 3; want++ {
		r, err := m.Allocate(0)
		require.NoError(t, err)
		assert.Equal(t, want, r.Number)
		assert.DirExists(t, r.Dir)
	}

	require.NoError(t, os.RemoveAll(m.RunDir(2)))

	r, err := m.Allocate(0)
	require.NoError(t, err)
	assert.Equal(t, 2, r.Number)

	r, err = m.Allocate(0)
	require.NoError(t, err)
	assert.Equal(t, 4, r.Number)
}

func TestAllocate_Explicit(t *testing.T) {
	m := NewManager(t.TempDir())

	r, err := m.Allocate(7)
	require.NoError(t, err)
	assert.Equal(t, 7, r.Number)
	assert.Equal(t, filepath.Join(m.Root(), "run7"), r.Dir)

	_, err = m.Allocate(7)
	require.ErrorIs(t, err, ErrAlreadyExists)

	_, err = m.Allocate(-1)
	require.Error(t, err)
}

func TestListAndLatest(t *testing.T) {
	root := t.TempDir()
	m := NewManager(root)

	_, err := m.Latest()
	require.ErrorIs(t, err, ErrNoRuns)

	for _, name := range []string{"run10", "run2", "run9", "run01", "runx", "other"} {
		require.NoError(t, os.Mkdir(filepath.Join(root, name), 0755))
	}
	require.NoError(t, os.WriteFile(filepath.Join(root, "run3"), nil, 0644))

	runs, err := m.List()
	require.NoError(t, err)
	assert.Equal(t, []int{2, 9, 10}, runs)

	latest, err := m.Latest()
	require.NoError(t, err)
	assert.Equal(t, 10, latest)

	_, err = m.Open(3)
	require.ErrorIs(t, err, ErrRunNotFound)
	_, err = m.Open(4)
	require.ErrorIs(t, err, ErrRunNotFound)
	r, err := m.Open(9)
	require.NoError(t, err)
	assert.Equal(t, 9, r.Number)
}

func TestList_MissingRoot(t *testing.T) {
	runs, err := NewManager(filepath.Join(t.TempDir(), "absent")).List()
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func testSpec() JobSpec {
	return JobSpec{
		Command:   []string{"/opt/gosperf bin/gosperf", "job", "exec"},
		TimeLimit: 90 * time.Second,
		Catalog:   "/data/catalog.yaml",
	}
}

func TestMaterialize(t *testing.T) {
	m := NewManager(t.TempDir())
	r, err := m.Allocate(0)
	require.NoError(t, err)

	jobs := []job.Job{job.New("ex1221", "BARON"), job.New("jobshop", "LOA")}
	require.NoError(t, r.Materialize(jobs, testSpec()))

	dir := r.JobDir(jobs[0])
	assert.Equal(t, filepath.Join(r.Dir, "BARON", "ex1221"), dir)

	cfg, err := job.ReadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, job.Config{Run: 1, Model: "ex1221", Solver: "BARON", TimeLimitSeconds: 90, Catalog: "/data/catalog.yaml"}, cfg)

	info, err := os.Stat(r.ScriptPath(jobs[0]))
	require.NoError(t, err)
	assert.NotZero(t, info.Mode().Perm()&0100, "script must be executable")

	script, err := os.ReadFile(r.ScriptPath(jobs[0]))
	require.NoError(t, err)
	s := string(script)
	assert.True(t, strings.HasPrefix(s, "#!/bin/sh\n"))
	assert.Contains(t, s, "exec '/opt/gosperf bin/gosperf' job exec >stdout.log 2>stderr.log")

	err = r.Materialize(jobs[:1], testSpec())
	require.ErrorIs(t, err, ErrAlreadyExists)
}

func TestMaterialize_InvalidSpec(t *testing.T) {
	r, err := NewManager(t.TempDir()).Allocate(0)
	require.NoError(t, err)

	require.Error(t, r.Materialize([]job.Job{job.New("m", "s")}, JobSpec{TimeLimit: time.Second}))
	require.Error(t, r.Materialize([]job.Job{job.New("m", "s")}, JobSpec{Command: []string{"x"}}))
}

func TestMaterialize_RejectsEscapingNames(t *testing.T) {
	m := NewManager(t.TempDir())
	r, err := m.Allocate(0)
	require.NoError(t, err)

	for _, j := range []job.Job{
		job.New("run9", ".."),
		job.New("..", "s"),
		job.New("m", "."),
		job.New("a/b", "s"),
		job.New("m", ""),
	} {
		err := r.Materialize([]job.Job{job.New("ok", "s"), j}, testSpec())
		require.ErrorIs(t, err, ErrInvalidJob, "job %s", j)
		require.ErrorIs(t, r.Reset(j, testSpec()), ErrInvalidJob, "job %s", j)
	}

	// Validation happens before any directory is created.
	assert.NoDirExists(t, r.JobDir(job.New("ok", "s")))
	runs, err := m.List()
	require.NoError(t, err)
	assert.Equal(t, []int{1}, runs)
}

func TestReset(t *testing.T) {
	r, err := NewManager(t.TempDir()).Allocate(0)
	require.NoError(t, err)
	j := job.New("m", "s")
	require.NoError(t, r.Materialize([]job.Job{j}, testSpec()))

	dir := r.JobDir(j)
	for _, name := range append([]string{job.ResultFile, job.StdoutLog, "notes.txt"}, job.Markers...) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
	}

	spec := testSpec()
	spec.TimeLimit = 30 * time.Second
	require.NoError(t, r.Reset(j, spec))

	for _, name := range append([]string{job.ResultFile, job.StdoutLog}, job.Markers...) {
		assert.NoFileExists(t, filepath.Join(dir, name))
	}
	assert.FileExists(t, filepath.Join(dir, "notes.txt"))

	cfg, err := job.ReadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, 30.0, cfg.TimeLimitSeconds)
}

func TestShellQuote(t *testing.T) {
	assert.Equal(t, "/usr/bin/gosperf", shellQuote("/usr/bin/gosperf"))
	assert.Equal(t, "''", shellQuote(""))
	assert.Equal(t, `'it'"'"'s'`, shellQuote("it's"))
	assert.Equal(t, "'a b'", shellQuote("a b"))
}
