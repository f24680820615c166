// Package jobstate derives the state of a job from the marker files its
// process leaves in the job directory.
//
// Only the job process writes markers; readers may observe a stale
// "not yet stopped" snapshot for a job that is still running.
package jobstate

import (
	"os"
	"path/filepath"

	"github.com/3leaps/gosperf/pkg/job"
)

// State is the furthest point a job process has recorded.
type State int

const (
	NotStarted State = iota
	Started
	ModelBuilt
	SolveCompleted
	Stopped
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case Started:
		return "started"
	case ModelBuilt:
		return "model_built"
	case SolveCompleted:
		return "solve_completed"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Markers records which marker files exist.
type Markers struct {
	Start      bool
	ModelBuilt bool
	SolveDone  bool
	Stop       bool
}

// Derive maps marker presence to a state, checking the latest marker first.
func Derive(m Markers) State {
	switch {
	case m.Stop:
		return Stopped
	case m.SolveDone:
		return SolveCompleted
	case m.ModelBuilt:
		return ModelBuilt
	case m.Start:
		return Started
	default:
		return NotStarted
	}
}

// State is the derived state of m.
func (m Markers) State() State { return Derive(m) }

// Unfinished reports a job that started but never stopped: timed out,
// crashed, killed, or still running.
func (m Markers) Unfinished() bool { return m.Start && !m.Stop }

// Read checks the marker files in dir.
func Read(dir string) Markers {
	return Markers{
		Start:      exists(filepath.Join(dir, job.StartMarker)),
		ModelBuilt: exists(filepath.Join(dir, job.ModelBuiltMarker)),
		SolveDone:  exists(filepath.Join(dir, job.SolveDoneMarker)),
		Stop:       exists(filepath.Join(dir, job.StopMarker)),
	}
}

// Status returns the state of the job in dir.
func Status(dir string) State {
	return Derive(Read(dir))
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
