package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable gosperf reads.
const EnvPrefix = "GOSPERF"

// DefaultFileName is looked up in the working directory when no config
// file is set explicitly.
const DefaultFileName = "gosperf.yaml"

var (
	configMu   sync.RWMutex
	appConfig  *Config
	configFile string
)

// EnvSpec maps a short environment variable onto a config key.
type EnvSpec struct {
	Name string
	Key  string
}

// getEnvSpecs lists the short aliases. Every key is also reachable as
// GOSPERF_<KEY> with dots replaced by underscores.
func getEnvSpecs() []EnvSpec {
	return []EnvSpec{
		{Name: EnvPrefix + "_LOG_LEVEL", Key: "logging.level"},
		{Name: EnvPrefix + "_TIME_LIMIT", Key: "run.time_limit"},
		{Name: EnvPrefix + "_BACKEND", Key: "run.backend"},
		{Name: EnvPrefix + "_SUBMIT_COMMAND", Key: "cluster.submit_command"},
		{Name: EnvPrefix + "_S3_REGION", Key: "publish.region"},
		{Name: EnvPrefix + "_S3_ENDPOINT", Key: "publish.endpoint"},
		{Name: EnvPrefix + "_S3_PROFILE", Key: "publish.profile"},
		{Name: EnvPrefix + "_S3_FORCE_PATH_STYLE", Key: "publish.force_path_style"},
	}
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("runs_dir", "output/runs")
	v.SetDefault("catalog", "catalog.yaml")
	v.SetDefault("results_db", "")

	v.SetDefault("run.time_limit", "15m")
	v.SetDefault("run.buffer_percent", 10)
	v.SetDefault("run.min_buffer", "60s")
	v.SetDefault("run.backend", "serial")
	v.SetDefault("run.kill_grace", "5s")

	v.SetDefault("tolerances.optimality", 0.01)
	v.SetDefault("tolerances.optimality_slack", 0.0001)
	v.SetDefault("tolerances.acceptable", 0.05)

	v.SetDefault("cluster.submit_command", "qsub")
	v.SetDefault("cluster.processes", 1)
	v.SetDefault("cluster.memory_gb", 4)
	v.SetDefault("cluster.submit_rate", 2)

	v.SetDefault("scan.concurrency", 8)
	v.SetDefault("job.command", []string{})

	v.SetDefault("publish.region", "")
	v.SetDefault("publish.endpoint", "")
	v.SetDefault("publish.profile", "")
	v.SetDefault("publish.force_path_style", false)
	v.SetDefault("publish.concurrency", 4)
	v.SetDefault("publish.artifacts", []string{
		"run.config.yaml",
		"solver.failures.yaml",
		"*.trc",
		"*.csv",
		"*/*/job.config.yaml",
		"*/*/job.result.yaml",
		"*/*/stderr.log",
	})

	v.SetDefault("logging.level", "info")
}

// SetConfigFile selects an explicit config file for later Load calls.
// An empty path restores the default lookup.
func SetConfigFile(path string) {
	configMu.Lock()
	defer configMu.Unlock()
	configFile = path
}

// Load resolves the configuration and makes it available through GetConfig.
//
// Overrides are nested maps ({"run": {"backend": "cluster"}}) and take
// precedence over every other source.
func Load(ctx context.Context, overrides ...map[string]any) (*Config, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	configMu.RLock()
	explicit := configFile
	configMu.RUnlock()

	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, spec := range getEnvSpecs() {
		if err := v.BindEnv(spec.Key, EnvPrefix+"_"+envKey(spec.Key), spec.Name); err != nil {
			return nil, fmt.Errorf("bind %s: %w", spec.Name, err)
		}
	}

	file, err := readConfigFile(v, explicit)
	if err != nil {
		return nil, err
	}

	for _, o := range overrides {
		for k, val := range flatten("", o) {
			v.Set(k, val)
		}
	}

	var cfg Config
	hook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
	if err := v.Unmarshal(&cfg, viper.DecodeHook(hook)); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.File = file

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	configMu.Lock()
	appConfig = &cfg
	configMu.Unlock()
	return &cfg, nil
}

// GetConfig returns the most recently loaded configuration, or nil.
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

func readConfigFile(v *viper.Viper, explicit string) (string, error) {
	if explicit != "" {
		v.SetConfigFile(explicit)
		if err := v.ReadInConfig(); err != nil {
			return "", fmt.Errorf("read config %s: %w", explicit, err)
		}
		return explicit, nil
	}

	if _, err := os.Stat(DefaultFileName); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("stat %s: %w", DefaultFileName, err)
	}
	v.SetConfigFile(DefaultFileName)
	if err := v.ReadInConfig(); err != nil {
		return "", fmt.Errorf("read config %s: %w", DefaultFileName, err)
	}
	return DefaultFileName, nil
}

func envKey(key string) string {
	return strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func flatten(prefix string, m map[string]any) map[string]any {
	out := make(map[string]any)
	for k, val := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := val.(map[string]any); ok {
			for nk, nv := range flatten(key, nested) {
				out[nk] = nv
			}
			continue
		}
		out[key] = val
	}
	return out
}
