package publish

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/3leaps/gosperf/pkg/rundir"
)

// DefaultPatterns select the run artifacts worth keeping off-box: the run
// config, the failure log, exports and every job's config, result and
// stderr.
var DefaultPatterns = []string{
	"run.config.yaml",
	"solver.failures.yaml",
	"*.trc",
	"*.csv",
	"*/*/job.config.yaml",
	"*/*/job.result.yaml",
	"*/*/stderr.log",
}

// ObjectPutter is the subset of the S3 client a Publisher needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Publisher uploads run artifacts under a bucket prefix.
type Publisher struct {
	client      ObjectPutter
	bucket      string
	prefix      string
	concurrency int
	log         *zap.Logger
}

// New builds a Publisher backed by the AWS SDK client.
func New(ctx context.Context, cfg Config, log *zap.Logger) (*Publisher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	awsCfg, err := loadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, &Error{Op: "New", Bucket: cfg.Bucket, Err: err}
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.ForcePathStyle {
			o.UsePathStyle = true
		}
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return NewWithClient(client, cfg, log)
}

// NewWithClient builds a Publisher around an existing client.
func NewWithClient(client ObjectPutter, cfg Config, log *zap.Logger) (*Publisher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	conc := cfg.Concurrency
	if conc == 0 {
		conc = DefaultConcurrency
	}
	return &Publisher{
		client:      client,
		bucket:      cfg.Bucket,
		prefix:      strings.Trim(cfg.Prefix, "/"),
		concurrency: conc,
		log:         log,
	}, nil
}

func loadAWSConfig(ctx context.Context, cfg Config) (aws.Config, error) {
	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(cfg.Profile))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, err
	}
	awsCfg.Region = resolveRegion(cfg.Endpoint, awsCfg.Region)
	return awsCfg, nil
}

// Summary reports one publish.
type Summary struct {
	Bucket string
	Prefix string
	Keys   []string
	Bytes  int64
}

// Key returns the object key for a file at rel inside run n.
func (p *Publisher) Key(n int, rel string) string {
	k := path.Join(fmt.Sprintf("run%d", n), filepath.ToSlash(rel))
	if p.prefix == "" {
		return k
	}
	return p.prefix + "/" + k
}

// Select returns the run-relative paths matching patterns, sorted and
// deduplicated. Nil patterns use DefaultPatterns.
func Select(run *rundir.Run, patterns []string) ([]string, error) {
	if patterns == nil {
		patterns = DefaultPatterns
	}
	fsys := os.DirFS(run.Dir)
	seen := make(map[string]struct{})
	for _, pat := range patterns {
		if !doublestar.ValidatePattern(pat) {
			return nil, fmt.Errorf("invalid artifact pattern %q", pat)
		}
		matches, err := doublestar.Glob(fsys, pat, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("match artifact pattern %q: %w", pat, err)
		}
		for _, m := range matches {
			seen[m] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for m := range seen {
		out = append(out, m)
	}
	sort.Strings(out)
	return out, nil
}

// PublishRun uploads the artifacts of run selected by patterns. The first
// failed upload cancels the rest.
func (p *Publisher) PublishRun(ctx context.Context, run *rundir.Run, patterns []string) (*Summary, error) {
	files, err := Select(run, patterns)
	if err != nil {
		return nil, err
	}

	sum := &Summary{Bucket: p.bucket, Prefix: p.prefix, Keys: make([]string, len(files))}
	var total atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, rel := range files {
		key := p.Key(run.Number, rel)
		sum.Keys[i] = key
		g.Go(func() error {
			n, err := p.upload(gctx, filepath.Join(run.Dir, filepath.FromSlash(rel)), key)
			if err != nil {
				return err
			}
			total.Add(n)
			p.log.Debug("Uploaded artifact", zap.String("key", key), zap.Int64("bytes", n))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sum.Bytes = total.Load()
	p.log.Info("Published run",
		zap.Int("run", run.Number),
		zap.String("bucket", p.bucket),
		zap.Int("objects", len(sum.Keys)),
		zap.Int64("bytes", sum.Bytes))
	return sum, nil
}

func (p *Publisher) upload(ctx context.Context, file, key string) (int64, error) {
	f, err := os.Open(file)
	if err != nil {
		return 0, fmt.Errorf("open artifact: %w", err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat artifact: %w", err)
	}
	if !info.Mode().IsRegular() {
		return 0, fmt.Errorf("artifact %s is not a regular file: %w", file, fs.ErrInvalid)
	}
	size := info.Size()

	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(p.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType(key)),
	})
	if err != nil {
		return 0, wrapError("PutObject", p.bucket, key, err)
	}
	return size, nil
}

func contentType(key string) string {
	switch path.Ext(key) {
	case ".yaml", ".yml":
		return "application/yaml"
	case ".csv":
		return "text/csv"
	default:
		return "text/plain"
	}
}
