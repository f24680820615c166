package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/gosperf/pkg/job"
	"github.com/3leaps/gosperf/pkg/rundir"
)

type mockAPIError struct {
	code string
}

func (e *mockAPIError) Error() string                 { return e.code }
func (e *mockAPIError) ErrorCode() string             { return e.code }
func (e *mockAPIError) ErrorMessage() string          { return e.code }
func (e *mockAPIError) ErrorFault() smithy.ErrorFault { return smithy.FaultUnknown }

type fakePutter struct {
	mu      sync.Mutex
	objects map[string]string
	types   map[string]string
	failKey string
	err     error
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	key := aws.ToString(in.Key)
	if f.failKey != "" && key == f.failKey {
		return nil, f.err
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.objects == nil {
		f.objects = make(map[string]string)
		f.types = make(map[string]string)
	}
	f.objects[key] = string(body)
	f.types[key] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func TestParseURI(t *testing.T) {
	tests := []struct {
		uri     string
		bucket  string
		prefix  string
		wantErr bool
	}{
		{uri: "s3://bench", bucket: "bench"},
		{uri: "s3://bench/", bucket: "bench"},
		{uri: "s3://bench/results/2026/", bucket: "bench", prefix: "results/2026"},
		{uri: "s3:///x", wantErr: true},
		{uri: "gs://bench/x", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			b, p, err := ParseURI(tt.uri)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.bucket, b)
			assert.Equal(t, tt.prefix, p)
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	require.Error(t, (&Config{}).Validate())
	require.NoError(t, (&Config{Bucket: "b"}).Validate())

	err := (&Config{Bucket: "b", AccessKeyID: "AKIA"}).Validate()
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "AccessKeyID/SecretAccessKey", cfgErr.Field)
}

func TestResolveRegion(t *testing.T) {
	assert.Equal(t, "eu-west-1", resolveRegion("", "eu-west-1"))
	assert.Equal(t, DefaultAWSRegion, resolveRegion("", ""))
	assert.Equal(t, "", resolveRegion("http://localhost:9000", ""))
}

func writeRun(t *testing.T) *rundir.Run {
	t.Helper()
	run, err := rundir.NewManager(t.TempDir()).Allocate(0)
	require.NoError(t, err)

	j := job.New("m1", "S1")
	require.NoError(t, run.Materialize([]job.Job{j}, rundir.JobSpec{Command: []string{"gosperf", "job", "exec"}, TimeLimit: time.Minute}))
	require.NoError(t, os.WriteFile(filepath.Join(run.Dir, "run.config.yaml"), []byte("run_number: 1\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(run.JobDir(j), job.ResultFile), []byte("model: m1\nsolver: S1\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(run.JobDir(j), job.StderrLog), []byte("warning\n"), 0o644))
	return run
}

func TestSelect(t *testing.T) {
	run := writeRun(t)

	files, err := Select(run, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"S1/m1/job.config.yaml",
		"S1/m1/job.result.yaml",
		"S1/m1/stderr.log",
		"run.config.yaml",
	}, files)

	files, err = Select(run, []string{"**/*.yaml", "run.config.yaml"})
	require.NoError(t, err)
	assert.Len(t, files, 3)

	_, err = Select(run, []string{"[unclosed"})
	require.Error(t, err)
}

func TestPublishRun(t *testing.T) {
	run := writeRun(t)
	fake := &fakePutter{}
	p, err := NewWithClient(fake, Config{Bucket: "bench", Prefix: "/nightly/"}, nil)
	require.NoError(t, err)

	sum, err := p.PublishRun(context.Background(), run, nil)
	require.NoError(t, err)
	assert.Len(t, sum.Keys, 4)
	assert.Equal(t, "nightly", sum.Prefix)

	key := fmt.Sprintf("nightly/run%d/S1/m1/job.result.yaml", run.Number)
	assert.Equal(t, "model: m1\nsolver: S1\n", fake.objects[key])
	assert.Equal(t, "application/yaml", fake.types[key])
	assert.Equal(t, "text/plain", fake.types[fmt.Sprintf("nightly/run%d/S1/m1/stderr.log", run.Number)])

	var total int64
	for _, v := range fake.objects {
		total += int64(len(v))
	}
	assert.Equal(t, total, sum.Bytes)
}

func TestPublishRun_MapsAPIErrors(t *testing.T) {
	run := writeRun(t)
	fake := &fakePutter{
		failKey: fmt.Sprintf("run%d/run.config.yaml", run.Number),
		err:     &mockAPIError{code: "AccessDenied"},
	}
	p, err := NewWithClient(fake, Config{Bucket: "bench", Concurrency: 1}, nil)
	require.NoError(t, err)

	_, err = p.PublishRun(context.Background(), run, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAccessDenied))

	var pubErr *Error
	require.ErrorAs(t, err, &pubErr)
	assert.Equal(t, "PutObject", pubErr.Op)
	assert.Equal(t, fake.failKey, pubErr.Key)
}

func TestWrapError(t *testing.T) {
	tests := []struct {
		err  error
		want error
	}{
		{&mockAPIError{code: "NoSuchBucket"}, ErrBucketNotFound},
		{&mockAPIError{code: "SignatureDoesNotMatch"}, ErrInvalidCredentials},
		{&mockAPIError{code: "SlowDown"}, ErrThrottled},
		{&mockAPIError{code: "InternalError"}, ErrUnavailable},
		{errors.New("http 503"), ErrUnavailable},
	}
	for _, tt := range tests {
		err := wrapError("PutObject", "b", "k", tt.err)
		assert.ErrorIs(t, err, tt.want, tt.err.Error())
	}
}
