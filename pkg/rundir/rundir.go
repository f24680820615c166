// Package rundir allocates run directories and materializes the per-job
// directory tree inside them.
//
// Directory layout:
//
//	<root>/run<N>/<config file>
//	<root>/run<N>/<solver>/<model>/run_job.sh
//	<root>/run<N>/<solver>/<model>/job.config.yaml
//	<root>/run<N>/<solver>/<model>/.job_*.log      (written by the job process)
//	<root>/run<N>/<solver>/<model>/job.result.yaml (written by the job process)
package rundir

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

var (
	// ErrAlreadyExists indicates a run or job directory that must not be reused.
	ErrAlreadyExists = errors.New("already exists")

	// ErrRunNotFound indicates a run number with no directory.
	ErrRunNotFound = errors.New("run not found")

	// ErrNoRuns indicates an empty runs root.
	ErrNoRuns = errors.New("no runs found")

	// ErrInvalidJob indicates a job whose names do not form a
	// <solver>/<model> directory inside the run.
	ErrInvalidJob = errors.New("invalid job path")
)

const runPrefix = "run"

// Manager owns the runs root directory.
type Manager struct {
	root string
}

// NewManager returns a manager rooted at root. A relative root is made
// absolute so wrapper scripts can be run from their job directories.
func NewManager(root string) *Manager {
	root = strings.TrimSpace(root)
	if abs, err := filepath.Abs(root); err == nil && root != "" {
		root = abs
	}
	return &Manager{root: root}
}

// Root returns the runs root directory.
func (m *Manager) Root() string {
	return m.root
}

// RunDir returns the directory of run n.
func (m *Manager) RunDir(n int) string {
	return filepath.Join(m.root, runPrefix+strconv.Itoa(n))
}

func (m *Manager) ensureRoot() error {
	if m.root == "" {
		return fmt.Errorf("runs root dir is empty")
	}
	return os.MkdirAll(m.root, 0755)
}

// Allocate creates a new run directory.
//
// With explicit > 0 that number is used, failing with ErrAlreadyExists if
// its directory exists. Otherwise the smallest positive n whose directory
// does not exist is taken, so numbers freed by deletion are reused.
func (m *Manager) Allocate(explicit int) (*Run, error) {
	if explicit < 0 {
		return nil, fmt.Errorf("run number must be positive, got %d", explicit)
	}
	if err := m.ensureRoot(); err != nil {
		return nil, fmt.Errorf("create runs root: %w", err)
	}

	if explicit > 0 {
		if err := os.Mkdir(m.RunDir(explicit), 0755); err != nil {
			if os.IsExist(err) {
				return nil, fmt.Errorf("run %d: %w: %s", explicit, ErrAlreadyExists, m.RunDir(explicit))
			}
			return nil, fmt.Errorf("create run dir: %w", err)
		}
		return m.handle(explicit), nil
	}

	for n := 1; ; n++ {
		err := os.Mkdir(m.RunDir(n), 0755)
		if err == nil {
			return m.handle(n), nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("create run dir: %w", err)
		}
	}
}

// Open returns the handle of an existing run.
func (m *Manager) Open(n int) (*Run, error) {
	info, err := os.Stat(m.RunDir(n))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: run %d", ErrRunNotFound, n)
		}
		return nil, fmt.Errorf("stat run dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrRunNotFound, m.RunDir(n))
	}
	return m.handle(n), nil
}

// List returns existing run numbers in ascending numeric order.
func (m *Manager) List() ([]int, error) {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read runs root: %w", err)
	}

	var out []int
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		n, ok := parseRunName(entry.Name())
		if !ok {
			continue
		}
		out = append(out, n)
	}
	sort.Ints(out)
	return out, nil
}

// Latest returns the highest existing run number.
func (m *Manager) Latest() (int, error) {
	runs, err := m.List()
	if err != nil {
		return 0, err
	}
	if len(runs) == 0 {
		return 0, fmt.Errorf("%w in %s", ErrNoRuns, m.root)
	}
	return runs[len(runs)-1], nil
}

func (m *Manager) handle(n int) *Run {
	return &Run{Number: n, Dir: m.RunDir(n)}
}

func parseRunName(name string) (int, bool) {
	if !strings.HasPrefix(name, runPrefix) {
		return 0, false
	}
	digits := name[len(runPrefix):]
	if digits == "" || digits[0] == '0' {
		return 0, false
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
