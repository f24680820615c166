package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/gosperf/internal/config"
	"github.com/3leaps/gosperf/pkg/catalog"
	"github.com/3leaps/gosperf/pkg/dispatch"
	"github.com/3leaps/gosperf/pkg/job"
	"github.com/3leaps/gosperf/pkg/matrix"
	"github.com/3leaps/gosperf/pkg/redo"
	"github.com/3leaps/gosperf/pkg/rundir"
)

// fakeJob stands in for "gosperf job exec": the model named "broken" fails
// to build, every other model solves to 100.
const fakeJob = `#!/bin/sh
model=$(basename "$(pwd)")
solver=$(basename "$(dirname "$(pwd)")")
: > .job_start.log
if [ "$model" = "broken" ]; then
  : > .job_stop.log
  exit 1
fi
: > .job_model_built.log
: > .job_solve_done.log
printf 'model: %s\nsolver: %s\nlower_bound: 100\nupper_bound: 100\nsolver_time: 0.5\ntermination_condition: optimal\n' "$model" "$solver" > job.result.yaml
: > .job_stop.log
`

func skipIfNoShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("wrapper scripts require /bin/sh")
	}
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("wrapper scripts require /bin/sh")
	}
}

func testWorkspace(t *testing.T) *workspace {
	t.Helper()
	dir := t.TempDir()

	script := filepath.Join(dir, "fakejob.sh")
	require.NoError(t, os.WriteFile(script, []byte(fakeJob), 0o755))

	c := catalog.New()
	for _, m := range []catalog.ModelDescriptor{
		{Name: "alpha", Class: catalog.ClassMILP, Sense: catalog.Minimize, Reference: catalog.OptimalValue(100)},
		{Name: "broken", Class: catalog.ClassMILP, Sense: catalog.Minimize, Reference: catalog.OptimalValue(5)},
		{Name: "curve", Class: catalog.ClassNLP, Sense: catalog.Minimize, Reference: catalog.BestKnownValue(100)},
	} {
		require.NoError(t, c.Models.Register(m))
	}
	require.NoError(t, c.Solvers.Register(catalog.SolverDescriptor{
		Name:       "mip",
		Compatible: catalog.NewClassSet(catalog.ClassMILP),
		Global:     catalog.NewClassSet(catalog.ClassMILP),
	}))
	require.NoError(t, c.Solvers.Register(catalog.SolverDescriptor{
		Name:       "any",
		Compatible: catalog.NewClassSet(catalog.ClassMILP, catalog.ClassNLP),
	}))

	cfg := &config.Config{
		RunsDir:   filepath.Join(dir, "runs"),
		Catalog:   filepath.Join(dir, "catalog.yaml"),
		ResultsDB: filepath.Join(dir, "results.db"),
		Run: config.RunConfig{
			TimeLimit:     time.Minute,
			BufferPercent: 10,
			MinBuffer:     time.Second,
			Backend:       dispatch.BackendSerial,
			KillGrace:     time.Second,
		},
		Tolerances: config.TolerancesConfig{Optimality: 0.01, OptimalitySlack: 0.0001, Acceptable: 0.05},
		Cluster:    config.ClusterConfig{SubmitCommand: "qsub", Processes: 1, MemoryGB: 4, SubmitRate: 0},
		Scan:       config.ScanConfig{Concurrency: 2},
		Job:        config.JobConfig{Command: []string{"/bin/sh", script}},
		Publish:    config.PublishConfig{Concurrency: 2},
	}
	return newWorkspace(cfg, c, nil)
}

func exitCodeOf(t *testing.T, err error) int {
	t.Helper()
	var ee *ExitCodeError
	require.True(t, errors.As(err, &ee), "expected ExitCodeError, got %v", err)
	return ee.Code
}

func TestStartRun_SetupOnly(t *testing.T) {
	ws := testWorkspace(t)

	out, err := ws.startRun(context.Background(), newRunOptions{TimeLimit: 30 * time.Second}, dispatch.SetupOnly{})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Run.Number)
	assert.Nil(t, out.Report)

	// alpha and broken on both solvers, curve only on "any".
	want := job.NewSet(
		job.New("alpha", "any"), job.New("alpha", "mip"),
		job.New("broken", "any"), job.New("broken", "mip"),
		job.New("curve", "any"),
	)
	assert.True(t, want.Equal(out.Config.Jobs))

	rc, err := ws.store.Load(1)
	require.NoError(t, err)
	assert.True(t, want.Equal(rc.JobsToRun))
	assert.Equal(t, 30*time.Second, rc.TimeLimit())
	assert.True(t, filepath.IsAbs(rc.Catalog))

	for j := range want {
		assert.FileExists(t, out.Run.ScriptPath(j))
		cfg, err := job.ReadConfig(out.Run.JobDir(j))
		require.NoError(t, err)
		assert.Equal(t, 30*time.Second, cfg.TimeLimit())
	}
}

func TestStartRun_UnknownFilterCreatesNothing(t *testing.T) {
	ws := testWorkspace(t)

	_, err := ws.startRun(context.Background(), newRunOptions{
		Filter: matrix.Filter{Models: []string{"nosuch*"}},
	}, dispatch.SetupOnly{})
	require.Error(t, err)
	assert.Equal(t, foundry.ExitInvalidArgument, exitCodeOf(t, err))
	assert.ErrorIs(t, err, catalog.ErrUnknownModel)

	runs, err := ws.runs.List()
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestStartRun_EmptyMatrix(t *testing.T) {
	ws := testWorkspace(t)

	_, err := ws.startRun(context.Background(), newRunOptions{
		Filter: matrix.Filter{Models: []string{"curve"}, Solvers: []string{"mip"}},
	}, dispatch.SetupOnly{})
	require.Error(t, err)
	assert.Equal(t, foundry.ExitInvalidArgument, exitCodeOf(t, err))
}

func TestStartRun_ExistingRunDirectory(t *testing.T) {
	ws := testWorkspace(t)
	require.NoError(t, os.MkdirAll(ws.runs.RunDir(3), 0o755))

	_, err := ws.startRun(context.Background(), newRunOptions{RunNumber: 3}, dispatch.SetupOnly{})
	require.Error(t, err)
	assert.Equal(t, foundry.ExitFileWriteError, exitCodeOf(t, err))
	assert.ErrorIs(t, err, rundir.ErrAlreadyExists)
}

func TestSerialRun_CollectsAndRedoes(t *testing.T) {
	skipIfNoShell(t)
	ws := testWorkspace(t)
	ctx := context.Background()
	serial, err := ws.backend(dispatch.BackendSerial)
	require.NoError(t, err)

	out, err := ws.startRun(ctx, newRunOptions{}, serial)
	require.NoError(t, err)
	require.NotNil(t, out.Report)
	assert.Equal(t, []string{"broken"}, out.Dispatch.BrokenModels)
	assert.Equal(t, 1, out.Dispatch.Skipped)

	// broken/any failed to build; broken/mip was skipped.
	assert.Equal(t, map[string]string{"broken": "any"}, out.Report.FailedBuilds)
	assert.Equal(t, []job.Job{job.New("broken", "mip")}, out.Report.NeverStarted)
	assert.True(t, out.Config.JobsFailed.Equal(job.NewSet(job.New("broken", "any"))))
	assert.Equal(t, 4, out.Config.JobsRun.Len())
	assert.FileExists(t, filepath.Join(out.Run.Dir, "solver.failures.yaml"))

	var buf bytes.Buffer
	printOutcome(&buf, out)
	assert.Contains(t, buf.String(), "Models that failed to build: broken")
	assert.Contains(t, buf.String(), "4 of 5 jobs executed")

	// A plain redo only picks up the job that never ran.
	redone, err := ws.redoRun(ctx, redoRunOptions{}, dispatch.SetupOnly{})
	require.NoError(t, err)
	assert.True(t, redone.Planned.Equal(job.NewSet(job.New("broken", "mip"))))
	assert.NoFileExists(t, filepath.Join(out.Run.JobDir(job.New("broken", "mip")), job.StartMarker))

	// --redo-failed also re-runs the failed build; its markers are cleared.
	redone, err = ws.redoRun(ctx, redoRunOptions{
		RunNumber: out.Run.Number,
		TimeLimit: 2 * time.Minute,
		Redo:      redo.Options{RedoFailed: true},
	}, dispatch.SetupOnly{})
	require.NoError(t, err)
	assert.True(t, redone.Planned.Equal(job.NewSet(job.New("broken", "mip"), job.New("broken", "any"))))
	assert.NoFileExists(t, filepath.Join(out.Run.JobDir(job.New("broken", "any")), job.StartMarker))
	assert.Equal(t, 2*time.Minute, redone.Config.TimeLimit())

	rc, err := ws.store.Load(out.Run.Number)
	require.NoError(t, err)
	assert.True(t, rc.JobsToRun.Equal(redone.Planned))
}

func TestRedoRun_UnknownFilter(t *testing.T) {
	ws := testWorkspace(t)
	_, err := ws.startRun(context.Background(), newRunOptions{}, dispatch.SetupOnly{})
	require.NoError(t, err)

	_, err = ws.redoRun(context.Background(), redoRunOptions{
		Redo: redo.Options{Filter: matrix.Filter{Solvers: []string{"cplex"}}},
	}, dispatch.SetupOnly{})
	require.Error(t, err)
	assert.Equal(t, foundry.ExitInvalidArgument, exitCodeOf(t, err))
}

func TestRedoRun_NoRuns(t *testing.T) {
	ws := testWorkspace(t)
	_, err := ws.redoRun(context.Background(), redoRunOptions{}, dispatch.SetupOnly{})
	require.Error(t, err)
	assert.Equal(t, foundry.ExitFileNotFound, exitCodeOf(t, err))
}

func TestAnalyzeAndExport(t *testing.T) {
	skipIfNoShell(t)
	ws := testWorkspace(t)
	ctx := context.Background()
	serial, err := ws.backend(dispatch.BackendSerial)
	require.NoError(t, err)

	out, err := ws.startRun(ctx, newRunOptions{}, serial)
	require.NoError(t, err)

	res, err := ws.analyze(ctx, 0)
	require.NoError(t, err)
	// Four clean finishes minus the failed build.
	require.Len(t, res.Rows, 3)
	assert.Equal(t, 3, res.Pass.RowCount)

	var buf bytes.Buffer
	require.NoError(t, printSolverSummary(&buf, res.Rows))
	assert.Contains(t, buf.String(), "SOLVER")

	runs, err := ws.selectRuns(nil)
	require.NoError(t, err)
	require.Len(t, runs, 1)

	csvPath, err := ws.exportCSV(ctx, runs, "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(out.Run.Dir, "results.csv"), csvPath)
	data, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "alpha,mip")

	tracePath, err := ws.exportTrace(out.Run)
	require.NoError(t, err)
	assert.FileExists(t, tracePath)

	soluPath, err := ws.exportSolu()
	require.NoError(t, err)
	data, err = os.ReadFile(soluPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "=best=\tcurve\t100")
}

func TestExportCSV_RequiresAnalysis(t *testing.T) {
	ws := testWorkspace(t)
	out, err := ws.startRun(context.Background(), newRunOptions{}, dispatch.SetupOnly{})
	require.NoError(t, err)

	_, err = ws.exportCSV(context.Background(), []*rundir.Run{out.Run}, "")
	require.Error(t, err)
	assert.Equal(t, foundry.ExitFileNotFound, exitCodeOf(t, err))
}
