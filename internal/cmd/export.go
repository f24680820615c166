package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/gosperf/pkg/export"
	"github.com/3leaps/gosperf/pkg/publish"
	"github.com/3leaps/gosperf/pkg/resultstore"
	"github.com/3leaps/gosperf/pkg/rundir"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export reference values, trace files and results",
	Long: `Write the catalog's reference values as a .solu file, a run's PAVER trace
file, analyzed rows as CSV, or publish run artifacts to S3.

CSV rows come from the results database; run 'gosperf analyze' first.

Examples:
  gosperf export --make-solu-file
  gosperf export --make-trace-file -r 3
  gosperf export --to-csv -r 3 -r 4 -o compare.csv
  gosperf export --to-s3 s3://bench-results/nightly -r 3`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

var (
	exportSolu   bool
	exportTrace  bool
	exportCSV    bool
	exportS3     string
	exportRuns   []int
	exportOutput string
)

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().BoolVar(&exportSolu, "make-solu-file", false, "Write catalog reference values to <runs_dir>/"+export.SoluFileName)
	exportCmd.Flags().BoolVar(&exportTrace, "make-trace-file", false, "Write the run's PAVER trace file")
	exportCmd.Flags().BoolVar(&exportCSV, "to-csv", false, "Write analyzed rows of the selected runs as CSV")
	exportCmd.Flags().StringVar(&exportS3, "to-s3", "", "Publish run artifacts to s3://bucket[/prefix]")
	exportCmd.Flags().IntSliceVarP(&exportRuns, "run", "r", nil, "Run numbers (default: latest)")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "CSV output path")

	exportCmd.MarkFlagsOneRequired("make-solu-file", "make-trace-file", "to-csv", "to-s3")
}

func runExport(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	ws, err := openWorkspace(exportSolu)
	if err != nil {
		return err
	}

	if exportSolu {
		path, err := ws.exportSolu()
		if err != nil {
			return err
		}
		fmt.Println("Wrote", path)
	}

	if !exportTrace && !exportCSV && exportS3 == "" {
		return nil
	}
	runs, err := ws.selectRuns(exportRuns)
	if err != nil {
		return err
	}

	if exportTrace {
		for _, run := range runs {
			path, err := ws.exportTrace(run)
			if err != nil {
				return err
			}
			fmt.Println("Wrote", path)
		}
	}

	if exportCSV {
		path, err := ws.exportCSV(ctx, runs, exportOutput)
		if err != nil {
			return err
		}
		fmt.Println("Wrote", path)
	}

	if exportS3 != "" {
		pub, err := ws.publisher(ctx, exportS3)
		if err != nil {
			return err
		}
		for _, run := range runs {
			sum, err := pub.PublishRun(ctx, run, ws.cfg.Publish.Artifacts)
			if err != nil {
				return exitError(foundry.ExitExternalServiceUnavailable, "Failed to publish run", err)
			}
			fmt.Printf("Published run %d: %d objects, %d bytes to s3://%s/%s\n",
				run.Number, len(sum.Keys), sum.Bytes, sum.Bucket, sum.Prefix)
		}
	}
	return nil
}

// selectRuns opens the given runs, or the latest one.
func (w *workspace) selectRuns(nums []int) ([]*rundir.Run, error) {
	if len(nums) == 0 {
		run, err := w.resolveRun(0)
		if err != nil {
			return nil, err
		}
		return []*rundir.Run{run}, nil
	}
	out := make([]*rundir.Run, 0, len(nums))
	for _, n := range nums {
		if n <= 0 {
			return nil, exitError(foundry.ExitInvalidArgument, "Invalid --run value", fmt.Errorf("run number must be positive, got %d", n))
		}
		run, err := w.resolveRun(n)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, nil
}

func (w *workspace) exportSolu() (string, error) {
	if err := os.MkdirAll(w.cfg.RunsDir, 0o755); err != nil {
		return "", exitError(foundry.ExitFileWriteError, "Failed to create runs directory", err)
	}
	path := filepath.Join(w.cfg.RunsDir, export.SoluFileName)
	err := writeFileWith(path, func(f *os.File) error {
		return export.WriteSolu(f, w.catalog.Models)
	})
	if err != nil {
		return "", exitError(foundry.ExitFileWriteError, "Failed to write solu file", err)
	}
	return path, nil
}

func (w *workspace) exportTrace(run *rundir.Run) (string, error) {
	rc, err := w.loadRunConfig(run)
	if err != nil {
		return "", err
	}
	c, err := w.catalogForRun(rc)
	if err != nil {
		return "", err
	}
	recs, err := export.TraceRecords(rc, run, c, export.TraceOptions{Logger: w.log})
	if err != nil {
		return "", err
	}
	path := filepath.Join(run.Dir, export.TraceFileName)
	err = writeFileWith(path, func(f *os.File) error {
		return export.WriteTrace(f, recs)
	})
	if err != nil {
		return "", exitError(foundry.ExitFileWriteError, "Failed to write trace file", err)
	}
	w.log.Info("Wrote trace file", zap.Int("run", run.Number), zap.Int("records", len(recs)))
	return path, nil
}

// exportCSV writes the stored rows of runs. The default output is
// results.csv in the run directory for one run and in the runs directory
// for several.
func (w *workspace) exportCSV(ctx context.Context, runs []*rundir.Run, output string) (string, error) {
	db, err := resultstore.Open(ctx, w.cfg.ResultsDBPath())
	if err != nil {
		return "", exitError(foundry.ExitFileReadError, "Failed to open results database", err)
	}
	defer func() { _ = db.Close() }()
	if err := resultstore.Migrate(ctx, db); err != nil {
		return "", exitError(foundry.ExitFileReadError, "Failed to migrate results database", err)
	}

	nums := make([]int, 0, len(runs))
	for _, run := range runs {
		pass, err := resultstore.LatestPass(ctx, db, run.Number)
		if err != nil {
			return "", err
		}
		if pass == nil {
			return "", exitError(foundry.ExitFileNotFound, "Run has not been analyzed",
				fmt.Errorf("run %d has no stored analysis (run 'gosperf analyze -r %d')", run.Number, run.Number))
		}
		nums = append(nums, run.Number)
	}
	rows, err := resultstore.ListRows(ctx, db, nums...)
	if err != nil {
		return "", err
	}

	if output == "" {
		dir := w.cfg.RunsDir
		if len(runs) == 1 {
			dir = runs[0].Dir
		}
		output = filepath.Join(dir, "results.csv")
	}
	err = writeFileWith(output, func(f *os.File) error {
		return export.WriteRowsCSV(f, rows)
	})
	if err != nil {
		return "", exitError(foundry.ExitFileWriteError, "Failed to write CSV", err)
	}
	return output, nil
}

func (w *workspace) publisher(ctx context.Context, uri string) (*publish.Publisher, error) {
	bucket, prefix, err := publish.ParseURI(uri)
	if err != nil {
		return nil, exitError(foundry.ExitInvalidArgument, "Invalid --to-s3 value", err)
	}
	pc := w.cfg.Publish
	pub, err := publish.New(ctx, publish.Config{
		Bucket:         bucket,
		Prefix:         prefix,
		Region:         pc.Region,
		Endpoint:       pc.Endpoint,
		Profile:        pc.Profile,
		ForcePathStyle: pc.ForcePathStyle,
		Concurrency:    pc.Concurrency,
	}, w.log)
	if err != nil {
		return nil, exitError(foundry.ExitExternalServiceUnavailable, "Failed to configure S3 client", err)
	}
	return pub, nil
}

func writeFileWith(path string, fn func(*os.File) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(f)
}
