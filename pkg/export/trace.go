package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/3leaps/gosperf/pkg/catalog"
	"github.com/3leaps/gosperf/pkg/job"
	"github.com/3leaps/gosperf/pkg/runconfig"
	"github.com/3leaps/gosperf/pkg/rundir"
)

// TraceFileName is the conventional name of a run's trace file.
const TraceFileName = "results.trc"

const traceHeader = `* Trace Record Definition
* GamsSolve
* InputFileName,ModelType,SolverName,NLP,MIP,JulianDate,Direction
*  ,NumberOfEquations,NumberOfVariables,NumberOfDiscreteVariables
*  ,NumberOfNonZeros,NumberOfNonlinearNonZeros,OptionFile
*  ,ModelStatus,SolverStatus,ObjectiveValue,ObjectiveValueEstimate
*  ,SolverTime,NumberOfIterations,NumberOfDomainViolations,NumberOfNodes,#empty1
*
`

// GAMS model status codes used in trace records.
const (
	modelStatusOptimal      = 1
	modelStatusUnbounded    = 3
	modelStatusInfeasible   = 4
	modelStatusIntermediate = 7
	modelStatusInteger      = 8
	modelStatusError        = 13
	modelStatusNoSolution   = 14
)

// GAMS solver status codes used in trace records.
const (
	solverStatusNormal             = 1
	solverStatusIterationInterrupt = 2
	solverStatusResourceInterrupt  = 3
	solverStatusSolverError        = 10
)

// TraceRecord is one line of a PAVER trace file.
type TraceRecord struct {
	Model      string
	ModelType  string
	Solver     string
	NLP        string
	MIP        string
	Start      *time.Time
	Maximize   bool
	Equations  int
	Variables  int
	Discrete   int
	ModelStat  int
	SolverStat int
	Objective  *float64
	Estimate   *float64
	SolverTime *float64
	Iterations *int64
}

// TraceOptions tunes TraceRecords.
type TraceOptions struct {
	Logger *zap.Logger
}

// TraceRecords builds a trace record for every job in jobs_run − jobs_failed.
// Jobs without a readable result record are skipped.
func TraceRecords(cfg *runconfig.RunConfig, run *rundir.Run, c *catalog.Catalog, opts TraceOptions) ([]TraceRecord, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if cfg == nil || run == nil || c == nil {
		return nil, errors.New("trace export requires run config, run and catalog")
	}

	var out []TraceRecord
	for _, j := range cfg.JobsRun.Difference(cfg.JobsFailed).Sorted() {
		m, ok := c.Models.Get(j.Model)
		if !ok {
			log.Warn("Skipping job for model missing from catalog", zap.String("model", j.Model))
			continue
		}
		s, ok := c.Solvers.Get(j.Solver)
		if !ok {
			log.Warn("Skipping job for solver missing from catalog", zap.String("solver", j.Solver))
			continue
		}
		res, err := job.ReadResult(run.JobDir(j))
		if err != nil {
			log.Warn("Skipping job without result record", zap.String("model", j.Model), zap.String("solver", j.Solver), zap.Error(err))
			continue
		}
		out = append(out, NewTraceRecord(m, s, res))
	}
	return out, nil
}

// NewTraceRecord maps a result record onto the trace fields.
func NewTraceRecord(m *catalog.ModelDescriptor, s *catalog.SolverDescriptor, res *job.Result) TraceRecord {
	rec := TraceRecord{
		Model:      m.Name,
		ModelType:  gamsModelType(m.Class),
		Solver:     s.Name,
		NLP:        s.NLP,
		MIP:        s.MILP,
		Start:      res.ModelBuildStart,
		Maximize:   m.Sense == catalog.Maximize,
		ModelStat:  modelStatus(res),
		SolverStat: solverStatus(res.TerminationCondition),
		Objective:  res.UpperBound,
		Estimate:   res.LowerBound,
		SolverTime: res.SolverTime,
		Iterations: res.Iterations,
	}
	if st, ok := m.Stats(); ok {
		rec.Equations = st.Constraints
		rec.Variables = st.Variables
		rec.Discrete = st.DiscreteVariables()
	}
	// Bounds are recorded in the model's own sense; for a maximization
	// the primal value is the lower bound.
	if rec.Maximize {
		rec.Objective, rec.Estimate = res.LowerBound, res.UpperBound
	}
	return rec
}

// WriteTrace writes the trace header followed by one CSV line per record.
func WriteTrace(w io.Writer, recs []TraceRecord) error {
	if _, err := io.WriteString(w, traceHeader); err != nil {
		return fmt.Errorf("write trace header: %w", err)
	}
	cw := csv.NewWriter(w)
	for _, r := range recs {
		if err := cw.Write(r.fields()); err != nil {
			return fmt.Errorf("write trace record %s/%s: %w", r.Model, r.Solver, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func (r TraceRecord) fields() []string {
	direction := "0"
	if r.Maximize {
		direction = "1"
	}
	julian := ""
	if r.Start != nil {
		julian = formatFloat(JulianDate(*r.Start))
	}
	return []string{
		r.Model,
		r.ModelType,
		r.Solver,
		r.NLP,
		r.MIP,
		julian,
		direction,
		strconv.Itoa(r.Equations),
		strconv.Itoa(r.Variables),
		strconv.Itoa(r.Discrete),
		"",
		"",
		"0",
		strconv.Itoa(r.ModelStat),
		strconv.Itoa(r.SolverStat),
		optFloat(r.Objective),
		optFloat(r.Estimate),
		optFloat(r.SolverTime),
		optInt(r.Iterations),
		"0",
		"0",
		"# generated by gosperf",
	}
}

// JulianDate converts t to a Julian day number with fractional day.
func JulianDate(t time.Time) float64 {
	const unixEpochJD = 2440587.5
	return unixEpochJD + float64(t.UTC().UnixNano())/float64(24*time.Hour)
}

func gamsModelType(c catalog.ProblemClass) string {
	switch c {
	case catalog.ClassLP:
		return "LP"
	case catalog.ClassMILP, catalog.ClassDP:
		return "MIP"
	case catalog.ClassNLP, catalog.ClassConvexNLP:
		return "NLP"
	default:
		return "MINLP"
	}
}

func modelStatus(res *job.Result) int {
	switch res.TerminationCondition {
	case job.TerminationOptimal:
		return modelStatusOptimal
	case job.TerminationFeasible:
		return modelStatusInteger
	case job.TerminationInfeasible:
		return modelStatusInfeasible
	case job.TerminationUnbounded:
		return modelStatusUnbounded
	case job.TerminationMaxTime, job.TerminationMaxIterations:
		if res.UpperBound != nil || res.LowerBound != nil {
			return modelStatusIntermediate
		}
		return modelStatusNoSolution
	case job.TerminationSolverError:
		return modelStatusError
	default:
		return modelStatusNoSolution
	}
}

func solverStatus(term string) int {
	switch term {
	case job.TerminationMaxTime:
		return solverStatusResourceInterrupt
	case job.TerminationMaxIterations:
		return solverStatusIterationInterrupt
	case job.TerminationSolverError:
		return solverStatusSolverError
	default:
		return solverStatusNormal
	}
}

func optFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

func optInt(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}
