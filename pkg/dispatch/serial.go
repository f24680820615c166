package dispatch

import (
	"context"
	"errors"
	"os/exec"
	"time"

	"go.uber.org/zap"

	"github.com/3leaps/gosperf/pkg/jobstate"
)

// Serial runs each wrapper script as a child process, one at a time, with a
// hard deadline equal to the job's budget.
//
// A job that outlives its deadline is killed together with its process
// group. That is not an error: the job simply never writes its stop marker.
type Serial struct {
	logger    *zap.Logger
	killGrace time.Duration
}

// NewSerial returns the serial backend.
func NewSerial(opts Options) *Serial {
	grace := opts.KillGrace
	if grace <= 0 {
		grace = 5 * time.Second
	}
	return &Serial{logger: opts.logger(), killGrace: grace}
}

func (s *Serial) Name() string { return BackendSerial }

// Dispatch runs the jobs in order. It returns early only when ctx is done.
func (s *Serial) Dispatch(ctx context.Context, req Request) (*Summary, error) {
	sum := newSummary(BackendSerial, len(req.Jobs))
	defer func() { sum.Duration = time.Since(sum.StartedAt) }()

	log := s.logger.With(zap.String("dispatch_id", sum.ID), zap.Int("run", req.Run.Number))
	broken := make(map[string]bool)

	for i, j := range req.Jobs {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		if broken[j.Model] {
			sum.Skipped++
			log.Info("Skipping job, model failed to build",
				zap.String("model", j.Model), zap.String("solver", j.Solver))
			continue
		}

		budget := req.BudgetFor(j)
		log.Info("Executing job",
			zap.Int("job", i+1), zap.Int("of", len(req.Jobs)),
			zap.String("model", j.Model), zap.String("solver", j.Solver),
			zap.Duration("budget", budget))

		timedOut, err := s.runOne(ctx, req.Run.ScriptPath(j), req.Run.JobDir(j), budget)
		sum.Dispatched++
		switch {
		case timedOut:
			sum.TimedOut++
			log.Warn("Job exceeded its budget and was killed",
				zap.String("model", j.Model), zap.String("solver", j.Solver), zap.Duration("budget", budget))
		case err != nil:
			if ctx.Err() != nil {
				return sum, ctx.Err()
			}
			sum.Failed++
			log.Warn("Job exited with error",
				zap.String("model", j.Model), zap.String("solver", j.Solver), zap.Error(err))
		}

		m := jobstate.Read(req.Run.JobDir(j))
		if m.Start && !m.ModelBuilt && m.Stop {
			broken[j.Model] = true
			sum.BrokenModels = append(sum.BrokenModels, j.Model)
			log.Warn("Model failed to build; remaining jobs for it are skipped", zap.String("model", j.Model))
		}
	}
	return sum, nil
}

func (s *Serial) runOne(ctx context.Context, script, dir string, budget time.Duration) (timedOut bool, err error) {
	jobCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	cmd := exec.CommandContext(jobCtx, script)
	cmd.Dir = dir
	setProcessGroup(cmd)
	cmd.Cancel = func() error { return killProcessGroup(cmd) }
	cmd.WaitDelay = s.killGrace

	err = cmd.Run()
	if errors.Is(jobCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return true, nil
	}
	return false, err
}
