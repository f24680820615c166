package analysis

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/3leaps/gosperf/pkg/catalog"
	"github.com/3leaps/gosperf/pkg/job"
	"github.com/3leaps/gosperf/pkg/runconfig"
	"github.com/3leaps/gosperf/pkg/rundir"
)

// Row is the scored outcome of one successfully finished job.
type Row struct {
	Run    int
	Model  string
	Solver string

	// Time is when the job started building its model.
	Time *time.Time

	LowerBound  *float64
	UpperBound  *float64
	Elapsed     *float64
	Iterations  *int64
	Termination string
	Sense       catalog.Sense

	SolutionGap   *float64
	OptimalityGap *float64

	// Times to threshold; Never when not reached.
	TimeToAcceptable float64
	TimeToSolution   float64
	TimeToOptimum    float64

	Error string
}

// Job returns the row's (model, solver) pair.
func (r Row) Job() job.Job { return job.New(r.Model, r.Solver) }

// AnalyzeOptions tunes Analyze.
type AnalyzeOptions struct {
	Tolerances Tolerances
	Logger     *zap.Logger
}

// Analyze scores every job in jobs_run − jobs_failed, in (model, solver)
// order. Jobs whose result record is missing or whose model is no longer
// in the catalog are skipped with a warning.
func Analyze(cfg *runconfig.RunConfig, run *rundir.Run, c *catalog.Catalog, opts AnalyzeOptions) ([]Row, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if err := opts.Tolerances.Validate(); err != nil {
		return nil, err
	}

	var rows []Row
	for _, j := range cfg.JobsRun.Difference(cfg.JobsFailed).Sorted() {
		m, ok := c.Models.Get(j.Model)
		if !ok {
			log.Warn("Skipping job for model missing from catalog", zap.String("model", j.Model), zap.String("solver", j.Solver))
			continue
		}
		s, _ := c.Solvers.Get(j.Solver)

		res, err := job.ReadResult(run.JobDir(j))
		if err != nil {
			if errors.Is(err, job.ErrNoResult) {
				log.Warn("Skipping finished job without result record", zap.String("model", j.Model), zap.String("solver", j.Solver))
				continue
			}
			log.Warn("Skipping unreadable result record", zap.String("model", j.Model), zap.String("solver", j.Solver), zap.Error(err))
			continue
		}

		rows = append(rows, Score(cfg.RunNumber, m, s, res, opts.Tolerances))
	}
	return rows, nil
}

// Score builds the row for one result record.
func Score(run int, m *catalog.ModelDescriptor, s *catalog.SolverDescriptor, res *job.Result, tol Tolerances) Row {
	row := Row{
		Run:         run,
		Model:       res.Model,
		Solver:      res.Solver,
		Time:        res.ModelBuildStart,
		LowerBound:  res.LowerBound,
		UpperBound:  res.UpperBound,
		Elapsed:     res.SolverTime,
		Iterations:  res.Iterations,
		Termination: res.TerminationCondition,
		Sense:       m.Sense,
		Error:       res.Error,
	}
	if row.Model == "" {
		row.Model = m.Name
	}
	if row.Solver == "" && s != nil {
		row.Solver = s.Name
	}

	var g Gaps
	if res.TerminationCondition != job.TerminationInfeasible {
		g = ComputeGaps(m, s, res.LowerBound, res.UpperBound)
	}
	row.SolutionGap, row.OptimalityGap = g.Solution, g.Optimality

	elapsed := Never
	if res.SolverTime != nil {
		elapsed = *res.SolverTime
	}
	t := ComputeTimes(g, tol, elapsed)
	row.TimeToAcceptable, row.TimeToSolution, row.TimeToOptimum = t.ToAcceptable, t.ToSolution, t.ToOptimum
	return row
}
