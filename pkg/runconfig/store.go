package runconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	schemasassets "github.com/3leaps/gosperf/internal/assets/schemas"
)

// FileName is the run config file inside a run directory.
const FileName = "run.config.yaml"

// RunDirFunc maps a run number to its directory.
type RunDirFunc func(runNumber int) string

// Store reads and writes run config files.
type Store struct {
	runDir RunDirFunc
}

// NewStore returns a store resolving run directories through runDir
// (usually rundir.Manager.RunDir).
func NewStore(runDir RunDirFunc) *Store {
	return &Store{runDir: runDir}
}

// Path returns the config file path of run n.
func (s *Store) Path(n int) string {
	return filepath.Join(s.runDir(n), FileName)
}

// Save validates cfg and writes it atomically (temp file + rename).
func (s *Store) Save(cfg *RunConfig) error {
	if cfg == nil {
		return fmt.Errorf("run config is nil")
	}
	c := cfg.Clone()
	c.normalize()
	if err := c.Validate(); err != nil {
		return err
	}

	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal run config: %w", err)
	}

	dir := s.runDir(c.RunNumber)
	tmp, err := os.CreateTemp(dir, FileName+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp run config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp run config: %w", err)
	}
	if err := os.Rename(tmpName, s.Path(c.RunNumber)); err != nil {
		return fmt.Errorf("rename run config: %w", err)
	}
	return nil
}

// Load reads the config of run n.
//
// The file is checked against the embedded schema and the subset
// invariants; a config whose run_number disagrees with n is rejected.
func (s *Store) Load(n int) (*RunConfig, error) {
	path := s.Path(n)
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("read run config: %w", err)
	}
	if strings.TrimSpace(string(b)) == "" {
		return nil, fmt.Errorf("%w: %s is empty", ErrInvalid, path)
	}

	if err := schemasassets.ValidateYAML("run config", schemasassets.RunConfigSchema, b); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	var cfg RunConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %w", ErrInvalid, path, err)
	}
	cfg.normalize()
	if cfg.RunNumber != n {
		return nil, fmt.Errorf("%w: %s records run_number %d", ErrInvalid, path, cfg.RunNumber)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
