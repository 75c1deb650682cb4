// Package s3 implements the provider interface for AWS S3 and S3-compatible
// stores, so the same pseudo-directory listing and storage adapter work
// against buckets as well as Swift containers.
package s3

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
)

// Config configures an S3 provider.
//
// Credentials come from the AWS SDK default chain (environment, shared
// files, instance roles) unless AccessKeyID and SecretAccessKey are both
// set. Profile selects a shared config profile.
type Config struct {
	// Bucket is the bucket name (required). It plays the role of the
	// Swift container.
	Bucket string

	// Region is the bucket region. When neither this nor the SDK chain
	// supplies one, AWS S3 uses DefaultAWSRegion; S3-compatible stores
	// (Endpoint set) get no default.
	Region string

	// Endpoint is the base URL of an S3-compatible store, e.g.
	// http://localhost:9000. Empty targets AWS S3.
	Endpoint string

	Profile string

	AccessKeyID     string
	SecretAccessKey string

	// ForcePathStyle puts the bucket in the URL path. Most S3-compatible
	// stores need it.
	ForcePathStyle bool

	// MaxKeys is the listing page size used when ListOptions.PageSize is
	// zero. Zero means DefaultMaxKeys; larger than MaxAllowedKeys is clamped.
	MaxKeys int
}

const (
	// DefaultMaxKeys is the default listing page size.
	DefaultMaxKeys = 1000

	// MaxAllowedKeys is the largest page ListObjectsV2 returns.
	MaxAllowedKeys = 1000

	// MinPartSize is the smallest non-final multipart upload part.
	MinPartSize = 5 * 1024 * 1024

	// DefaultAWSRegion is used for AWS S3 when no region resolves.
	DefaultAWSRegion = "us-east-1"
)

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
	if c.MaxKeys < 0 {
		return &ConfigError{Field: "MaxKeys", Message: "page size must not be negative"}
	}
	return nil
}

// ConfigError reports an invalid Config field.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "s3 config: " + e.Field + ": " + e.Message
}

// loadAWSConfig resolves region and credentials for cfg through the SDK.
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
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, err
	}
	awsCfg.Region = resolveRegion(cfg.Region, cfg.Endpoint, awsCfg.Region)
	return awsCfg, nil
}

// resolveRegion applies the AWS fallback region once the SDK chain has run.
// sdkRegion already reflects cfgRegion when that was set.
func resolveRegion(cfgRegion, endpoint, sdkRegion string) string {
	switch {
	case sdkRegion != "":
		return sdkRegion
	case cfgRegion != "":
		return cfgRegion
	case endpoint == "":
		return DefaultAWSRegion
	}
	return ""
}

// clampMaxKeys returns requested, or providerDefault when requested is not
// positive, capped at MaxAllowedKeys.
func clampMaxKeys(requested, providerDefault int) int {
	if requested <= 0 {
		requested = providerDefault
	}
	if requested <= 0 {
		requested = DefaultMaxKeys
	}
	return min(requested, MaxAllowedKeys)
}
