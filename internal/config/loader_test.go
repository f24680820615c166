package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdirTemp runs the test from an empty directory so a stray gosperf.yaml
// cannot leak in.
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		_ = os.Chdir(wd)
		SetConfigFile("")
	})
	return dir
}

func TestLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("LoadDefaults", func(t *testing.T) {
		chdirTemp(t)
		cfg, err := Load(ctx)
		require.NoError(t, err)

		assert.Equal(t, "output/runs", cfg.RunsDir)
		assert.Equal(t, "catalog.yaml", cfg.Catalog)
		assert.Equal(t, filepath.Join("output/runs", "results.db"), cfg.ResultsDBPath())
		assert.Equal(t, 15*time.Minute, cfg.Run.TimeLimit)
		assert.Equal(t, 10.0, cfg.Run.BufferPercent)
		assert.Equal(t, 60*time.Second, cfg.Run.MinBuffer)
		assert.Equal(t, "serial", cfg.Run.Backend)
		assert.Equal(t, 0.01, cfg.Tolerances.Optimality)
		assert.Equal(t, 0.05, cfg.Tolerances.Acceptable)
		assert.Equal(t, "qsub", cfg.Cluster.SubmitCommand)
		assert.Equal(t, 4, cfg.Cluster.MemoryGB)
		assert.Equal(t, 2.0, cfg.Cluster.SubmitRate)
		assert.Equal(t, 8, cfg.Scan.Concurrency)
		assert.Contains(t, cfg.Publish.Artifacts, "*/*/job.result.yaml")
		assert.Equal(t, "info", cfg.Logging.Level)
		assert.Empty(t, cfg.File)
	})

	t.Run("RuntimeOverrides", func(t *testing.T) {
		chdirTemp(t)
		cfg, err := Load(ctx, map[string]any{
			"run": map[string]any{
				"backend":    "cluster",
				"time_limit": "90s",
			},
			"logging": map[string]any{"level": "debug"},
		})
		require.NoError(t, err)

		assert.Equal(t, "cluster", cfg.Run.Backend)
		assert.Equal(t, 90*time.Second, cfg.Run.TimeLimit)
		assert.Equal(t, "debug", cfg.Logging.Level)
		assert.Equal(t, 10.0, cfg.Run.BufferPercent)
	})

	t.Run("EnvOverrides", func(t *testing.T) {
		chdirTemp(t)
		t.Setenv("GOSPERF_LOG_LEVEL", "warn")
		t.Setenv("GOSPERF_RUNS_DIR", "/data/runs")
		t.Setenv("GOSPERF_SCAN_CONCURRENCY", "3")
		t.Setenv("GOSPERF_S3_FORCE_PATH_STYLE", "true")
		t.Setenv("GOSPERF_PUBLISH_ARTIFACTS", "run.config.yaml,*.csv")

		cfg, err := Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, "warn", cfg.Logging.Level)
		assert.Equal(t, "/data/runs", cfg.RunsDir)
		assert.Equal(t, 3, cfg.Scan.Concurrency)
		assert.True(t, cfg.Publish.ForcePathStyle)
		assert.Equal(t, []string{"run.config.yaml", "*.csv"}, cfg.Publish.Artifacts)
	})

	t.Run("ConfigPrecedence", func(t *testing.T) {
		dir := chdirTemp(t)
		require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultFileName), []byte(`
run:
  backend: cluster
  time_limit: 2m
cluster:
  processes: 4
`), 0o644))
		t.Setenv("GOSPERF_TIME_LIMIT", "3m")

		cfg, err := Load(ctx, map[string]any{"cluster": map[string]any{"processes": 8}})
		require.NoError(t, err)
		assert.Equal(t, DefaultFileName, cfg.File)
		assert.Equal(t, "cluster", cfg.Run.Backend)
		assert.Equal(t, 3*time.Minute, cfg.Run.TimeLimit)
		assert.Equal(t, 8, cfg.Cluster.Processes)
	})

	t.Run("ExplicitFile", func(t *testing.T) {
		dir := chdirTemp(t)
		path := filepath.Join(dir, "bench.yaml")
		require.NoError(t, os.WriteFile(path, []byte("runs_dir: /scratch/runs\n"), 0o644))
		SetConfigFile(path)

		cfg, err := Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, "/scratch/runs", cfg.RunsDir)
		assert.Equal(t, path, cfg.File)

		SetConfigFile(filepath.Join(dir, "missing.yaml"))
		_, err = Load(ctx)
		require.Error(t, err)
	})

	t.Run("Invalid", func(t *testing.T) {
		chdirTemp(t)
		_, err := Load(ctx, map[string]any{"run": map[string]any{"backend": "grid"}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "run.backend")

		_, err = Load(ctx, map[string]any{"tolerances": map[string]any{"optimality": 0.1, "acceptable": 0.05}})
		require.Error(t, err)
	})
}

func TestGetConfig(t *testing.T) {
	chdirTemp(t)
	cfg, err := Load(context.Background(), map[string]any{"scan": map[string]any{"concurrency": 2}})
	require.NoError(t, err)

	got := GetConfig()
	require.NotNil(t, got)
	assert.Equal(t, cfg.Scan.Concurrency, got.Scan.Concurrency)
}

func TestEnvSpecs(t *testing.T) {
	names := make(map[string]string)
	for _, s := range getEnvSpecs() {
		names[s.Name] = s.Key
	}
	assert.Equal(t, "logging.level", names["GOSPERF_LOG_LEVEL"])
	assert.Equal(t, "run.time_limit", names["GOSPERF_TIME_LIMIT"])
	assert.Equal(t, "publish.endpoint", names["GOSPERF_S3_ENDPOINT"])
}

func TestBudget(t *testing.T) {
	cfg := &Config{Run: RunConfig{BufferPercent: 10, MinBuffer: time.Minute}}
	b := cfg.Budget(20 * time.Minute)
	assert.Equal(t, 22*time.Minute, b.For(0))
}
