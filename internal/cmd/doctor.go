package cmd

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/gosperf/internal/config"
	"github.com/3leaps/gosperf/internal/observability"
	"github.com/3leaps/gosperf/pkg/catalog"
	"github.com/3leaps/gosperf/pkg/dispatch"
	"github.com/3leaps/gosperf/pkg/resultstore"
)

var doctorS3 bool

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks",
	Long: `Check that gosperf can run benchmarks in this environment: the runs
directory is writable, the catalog loads, the results database opens and,
for the cluster backend, the scheduler submit command is on PATH.

Examples:
  gosperf doctor
  gosperf doctor --s3    # also check AWS credentials for publishing`,
	Run: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.Flags().BoolVar(&doctorS3, "s3", false, "Also check AWS credentials used by 'export --to-s3'")
}

type doctorCheck struct {
	name string
	run  func(ctx context.Context, cfg *config.Config) (detail string, err error)
}

func doctorChecks(backend string, withS3 bool) []doctorCheck {
	checks := []doctorCheck{
		{name: "Go runtime", run: func(context.Context, *config.Config) (string, error) {
			return fmt.Sprintf("%s %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH), nil
		}},
		{name: "runs directory", run: checkRunsDir},
		{name: "catalog", run: checkCatalog},
		{name: "results database", run: checkResultsDB},
	}
	if backend == dispatch.BackendCluster {
		checks = append(checks, doctorCheck{name: "scheduler submit command", run: checkSubmitCommand})
	}
	if withS3 {
		checks = append(checks, doctorCheck{name: "AWS credentials", run: checkAWSCredentials})
	}
	return checks
}

func runDoctor(cmd *cobra.Command, _ []string) {
	log := observability.CLILogger
	cfg := config.GetConfig()

	log.Info("=== " + binaryName + " doctor ===")
	log.Info("")

	checks := doctorChecks(cfg.Run.Backend, doctorS3)
	allChecks := true
	for i, c := range checks {
		detail, err := c.run(cmd.Context(), cfg)
		if err != nil {
			log.Error(fmt.Sprintf("[%d/%d] Checking %s... ❌ %s", i+1, len(checks), c.name, detail), zap.Error(err))
			allChecks = false
			continue
		}
		log.Info(fmt.Sprintf("[%d/%d] Checking %s... ✅ %s", i+1, len(checks), c.name, detail))
	}

	log.Info("")
	if allChecks {
		log.Info("✅ All checks passed! Ready to benchmark.")
	} else {
		log.Warn("⚠️  Some checks failed. Review the output above for details.")
	}
	log.Info("")
	log.Info("=== End Diagnostics ===")
}

func checkRunsDir(_ context.Context, cfg *config.Config) (string, error) {
	if err := os.MkdirAll(cfg.RunsDir, 0o755); err != nil {
		return "cannot create " + cfg.RunsDir, err
	}
	probe, err := os.CreateTemp(cfg.RunsDir, ".doctor-*")
	if err != nil {
		return cfg.RunsDir + " is not writable", err
	}
	_ = probe.Close()
	_ = os.Remove(probe.Name())
	abs, _ := filepath.Abs(cfg.RunsDir)
	return abs, nil
}

func checkCatalog(_ context.Context, cfg *config.Config) (string, error) {
	c, err := catalog.Load(cfg.Catalog)
	if err != nil {
		return "cannot load " + cfg.Catalog, err
	}
	return fmt.Sprintf("%s (%d models, %d solvers)", cfg.Catalog, c.Models.Len(), c.Solvers.Len()), nil
}

func checkResultsDB(ctx context.Context, cfg *config.Config) (string, error) {
	path := cfg.ResultsDBPath()
	db, err := resultstore.Open(ctx, path)
	if err != nil {
		return "cannot open " + path, err
	}
	defer func() { _ = db.Close() }()
	if err := resultstore.Migrate(ctx, db); err != nil {
		return "cannot migrate " + path, err
	}
	return path, nil
}

func checkSubmitCommand(_ context.Context, cfg *config.Config) (string, error) {
	path, err := exec.LookPath(cfg.Cluster.SubmitCommand)
	if err != nil {
		return cfg.Cluster.SubmitCommand + " not found on PATH", err
	}
	return path, nil
}

func checkAWSCredentials(ctx context.Context, cfg *config.Config) (string, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Publish.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Publish.Profile))
	}
	if cfg.Publish.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Publish.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		printAWSCredentialsHelp()
		return "cannot load AWS config", err
	}
	creds, err := awsCfg.Credentials.Retrieve(ctx)
	if err != nil {
		printAWSCredentialsHelp()
		return "cannot retrieve credentials", err
	}
	source := creds.Source
	if source == "" {
		source = "unknown"
	}
	return fmt.Sprintf("%s via %s", maskAccessKey(creds.AccessKeyID), source), nil
}

// maskAccessKey masks all but the last 4 characters of an access key.
func maskAccessKey(key string) string {
	if len(key) <= 4 {
		return "****"
	}
	return "****" + key[len(key)-4:]
}

func printAWSCredentialsHelp() {
	log := observability.CLILogger
	log.Info("")
	log.Info("To configure AWS credentials:")
	log.Info("  1. Set AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY environment variables, or")
	log.Info("  2. Run 'aws configure' to set up a profile and set publish.profile, or")
	log.Info("  3. Use an IAM role when running on AWS infrastructure")
	log.Info("")
	log.Info("For S3-compatible storage (MinIO, Wasabi, etc.), also set publish.endpoint")
	log.Info("and usually publish.force_path_style.")
	log.Info("")
}
