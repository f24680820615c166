// Package publish uploads the artifacts of a benchmark run to AWS S3 or an
// S3-compatible object store.
package publish

import (
	"fmt"
	"strings"
)

// DefaultAWSRegion is the fallback region for AWS S3 when none resolves.
const DefaultAWSRegion = "us-east-1"

// Config configures a Publisher.
//
// Credentials follow the AWS SDK v2 default chain unless AccessKeyID and
// SecretAccessKey are both set. For S3-compatible stores set Endpoint and
// usually ForcePathStyle.
type Config struct {
	// Bucket is the destination bucket (required).
	Bucket string

	// Prefix is prepended to every object key, without a trailing slash.
	Prefix string

	Region   string
	Endpoint string
	Profile  string

	AccessKeyID     string
	SecretAccessKey string

	ForcePathStyle bool

	// Concurrency bounds parallel uploads. Zero uses DefaultConcurrency.
	Concurrency int
}

// DefaultConcurrency is the number of uploads in flight per publish.
const DefaultConcurrency = 4

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.Bucket == "" {
		return &ConfigError{Field: "Bucket", Message: "bucket name is required"}
	}
	if (c.AccessKeyID != "") != (c.SecretAccessKey != "") {
		return &ConfigError{
			Field:   "AccessKeyID/SecretAccessKey",
			Message: "both access key ID and secret access key must be provided together",
		}
	}
	if c.Concurrency < 0 {
		return &ConfigError{Field: "Concurrency", Message: "must not be negative"}
	}
	return nil
}

// ConfigError is a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "publish config: " + e.Field + ": " + e.Message
}

// ParseURI splits an s3://bucket/prefix destination.
func ParseURI(uri string) (bucket, prefix string, err error) {
	rest, ok := strings.CutPrefix(uri, "s3://")
	if !ok {
		return "", "", fmt.Errorf("invalid destination %q: expected s3://bucket[/prefix]", uri)
	}
	bucket, prefix, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("invalid destination %q: bucket is required", uri)
	}
	return bucket, strings.Trim(prefix, "/"), nil
}

// resolveRegion applies the us-east-1 fallback for AWS S3 only; a custom
// endpoint gets no default.
func resolveRegion(endpoint, sdkRegion string) string {
	if sdkRegion != "" {
		return sdkRegion
	}
	if endpoint == "" {
		return DefaultAWSRegion
	}
	return ""
}
