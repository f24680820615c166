package dispatch

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// maxLabelLen is the longest job name qsub accepts for -N.
const maxLabelLen = 15

// Submitter hands one wrapper script to a batch scheduler.
type Submitter interface {
	Submit(ctx context.Context, args []string) (jobID string, err error)
}

// CommandSubmitter runs a scheduler CLI such as qsub.
type CommandSubmitter struct {
	Command string
}

// Submit runs the command and returns its trimmed stdout (the scheduler job id).
func (c CommandSubmitter) Submit(ctx context.Context, args []string) (string, error) {
	cmd := exec.CommandContext(ctx, c.Command, args...)
	out, err := cmd.Output()
	if err != nil {
		var ee *exec.ExitError
		if errors.As(err, &ee) && len(ee.Stderr) > 0 {
			return "", fmt.Errorf("%s: %w: %s", c.Command, err, strings.TrimSpace(string(ee.Stderr)))
		}
		return "", fmt.Errorf("%s: %w", c.Command, err)
	}
	return strings.TrimSpace(string(out)), nil
}

// Cluster submits each wrapper script to a batch scheduler and returns
// without waiting for any job to finish.
type Cluster struct {
	submitter Submitter
	processes int
	memoryGB  int
	limiter   *rate.Limiter
	logger    *zap.Logger
}

// NewCluster returns the cluster backend.
func NewCluster(opts Options) (*Cluster, error) {
	sub := opts.Submitter
	if sub == nil {
		command := strings.TrimSpace(opts.SubmitCommand)
		if command == "" {
			command = "qsub"
		}
		sub = CommandSubmitter{Command: command}
	}
	if opts.Processes < 0 || opts.MemoryGB < 0 {
		return nil, fmt.Errorf("cluster processes and memory must not be negative")
	}
	c := &Cluster{
		submitter: sub,
		processes: opts.Processes,
		memoryGB:  opts.MemoryGB,
		logger:    opts.logger(),
	}
	if c.processes == 0 {
		c.processes = 1
	}
	if c.memoryGB == 0 {
		c.memoryGB = 4
	}
	if opts.SubmitRate > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.SubmitRate), 1)
	}
	return c, nil
}

func (c *Cluster) Name() string { return BackendCluster }

// Dispatch submits every job. A failed submission is logged and counted;
// only ctx cancellation stops the pass.
func (c *Cluster) Dispatch(ctx context.Context, req Request) (*Summary, error) {
	sum := newSummary(BackendCluster, len(req.Jobs))
	defer func() { sum.Duration = time.Since(sum.StartedAt) }()

	log := c.logger.With(zap.String("dispatch_id", sum.ID), zap.Int("run", req.Run.Number))

	for i, j := range req.Jobs {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return sum, err
			}
		} else if err := ctx.Err(); err != nil {
			return sum, err
		}

		script, err := filepath.Abs(req.Run.ScriptPath(j))
		if err != nil {
			sum.Failed++
			log.Warn("Cannot resolve job script", zap.String("model", j.Model), zap.String("solver", j.Solver), zap.Error(err))
			continue
		}
		args := c.Args(script, req.BudgetFor(j), Label(req.Run.Number, i+1, len(req.Jobs), req.Budget.TimeLimit))

		log.Info("Submitting job",
			zap.Int("job", i+1), zap.Int("of", len(req.Jobs)),
			zap.String("model", j.Model), zap.String("solver", j.Solver))

		id, err := c.submitter.Submit(ctx, args)
		if err != nil {
			if ctx.Err() != nil {
				return sum, ctx.Err()
			}
			sum.Failed++
			log.Warn("Submission failed", zap.String("model", j.Model), zap.String("solver", j.Solver), zap.Error(err))
			continue
		}
		sum.Dispatched++
		log.Debug("Submitted", zap.String("scheduler_id", id))
	}
	return sum, nil
}

// Args builds the scheduler arguments for one script.
func (c *Cluster) Args(script string, budget time.Duration, label string) []string {
	return []string{
		"-l", fmt.Sprintf("walltime=%s,nodes=1:ppn=%d,mem=%dGB", Walltime(budget), c.processes, c.memoryGB),
		"-N", label,
		script,
	}
}

// Label names a submitted job "r<run>-<n>:<total>-t<limit>s", truncated
// to the scheduler's limit.
func Label(run, n, total int, timeLimit time.Duration) string {
	label := fmt.Sprintf("r%d-%d:%d-t%ds", run, n, total, int64(timeLimit.Seconds()))
	if len(label) > maxLabelLen {
		label = label[:maxLabelLen]
	}
	return label
}
