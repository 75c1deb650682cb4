package cmd

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/3leaps/swiftfs/internal/config"
	"github.com/3leaps/swiftfs/internal/observability"
	"github.com/3leaps/swiftfs/pkg/match"
	"github.com/3leaps/swiftfs/pkg/provider"
	"github.com/3leaps/swiftfs/pkg/provider/file"
	"github.com/3leaps/swiftfs/pkg/provider/memory"
	"github.com/3leaps/swiftfs/pkg/provider/s3"
	"github.com/3leaps/swiftfs/pkg/provider/swift"
	"github.com/3leaps/swiftfs/pkg/storage"
)

// URI parsing errors
var (
	// ErrInvalidURI indicates the URI could not be parsed.
	ErrInvalidURI = errors.New("invalid URI")

	// ErrUnsupportedProvider indicates the URI scheme is not supported.
	ErrUnsupportedProvider = errors.New("unsupported provider")

	// ErrMissingContainer indicates the URI has no container, bucket or base dir.
	ErrMissingContainer = errors.New("missing container name")
)

// Location is a parsed storage URI.
//
// Example URIs:
//   - swift://container/photos/2024/a.jpg
//   - s3://bucket/prefix/
//   - swift://container/logs/**/*.gz
//   - file:///srv/store//photos/a.jpg
//   - mem://scratch/a.txt
type Location struct {
	// Scheme is the provider type.
	Scheme provider.ProviderType

	// Container is the Swift container, S3 bucket, local base directory or
	// memory store name.
	Container string

	// Path is the filesystem path within the container, without leading or
	// trailing "/". For patterns it is the static directory before the
	// first glob character.
	Path string

	// Pattern is set if the path contains glob characters.
	Pattern string
}

// String returns the URI in canonical form.
func (l *Location) String() string {
	p := l.Path
	if l.Pattern != "" {
		p = l.Pattern
	}
	if l.Scheme == provider.ProviderFile {
		return fmt.Sprintf("file://%s//%s", l.Container, p)
	}
	return fmt.Sprintf("%s://%s/%s", l.Scheme, l.Container, p)
}

// IsPattern reports whether the URI contains glob characters.
func (l *Location) IsPattern() bool {
	return l.Pattern != ""
}

// SameStore reports whether l and o address the same container.
func (l *Location) SameStore(o *Location) bool {
	return l.Scheme == o.Scheme && l.Container == o.Container
}

// ParseURI parses a storage URI into its components.
//
// Supported formats:
//   - swift://container[/path]
//   - s3://bucket[/path]
//   - file:///base/dir[//path]
//   - mem://name[/path]
//
// Paths may contain doublestar globs; "\" escapes a glob character.
func ParseURI(uri string) (*Location, error) {
	if uri == "" {
		return nil, fmt.Errorf("%w: empty URI", ErrInvalidURI)
	}

	// Split manually: url.Parse treats "?" in globs as a query delimiter.
	schemeEnd := strings.Index(uri, "://")
	if schemeEnd == -1 {
		return nil, fmt.Errorf("%w: missing scheme (expected swift://...)", ErrInvalidURI)
	}

	scheme := provider.ProviderType(strings.ToLower(uri[:schemeEnd]))
	remainder := uri[schemeEnd+3:]

	var container, rest string
	switch scheme {
	case provider.ProviderSwift, provider.ProviderS3, provider.ProviderMemory:
		container, rest, _ = strings.Cut(remainder, "/")
		if strings.ContainsAny(container, "*?[{") {
			return nil, fmt.Errorf("%w: glob in container name %q", ErrInvalidURI, container)
		}
	case provider.ProviderFile:
		if !strings.HasPrefix(remainder, "/") {
			return nil, fmt.Errorf("%w: file URIs need an absolute base directory", ErrInvalidURI)
		}
		base, after, found := strings.Cut(remainder[1:], "//")
		container = "/" + strings.TrimSuffix(base, "/")
		if found {
			rest = after
		}
		if container != "/" {
			container = path.Clean(container)
		}
	default:
		return nil, fmt.Errorf("%w: %s (supported: swift, s3, file, mem)", ErrUnsupportedProvider, scheme)
	}

	if container == "" {
		return nil, fmt.Errorf("%w: in %s", ErrMissingContainer, uri)
	}

	loc := &Location{Scheme: scheme, Container: container}
	rest = strings.TrimPrefix(rest, "/")
	if match.IsGlobPattern(rest) {
		loc.Pattern = rest
	}
	loc.Path = strings.Trim(match.DerivePrefix(rest), "/")
	return loc, nil
}

// openProvider connects to the store named by loc.
func openProvider(ctx context.Context, loc *Location, cfg *config.Config) (provider.Provider, error) {
	switch loc.Scheme {
	case provider.ProviderSwift:
		return swift.New(ctx, swift.Config{
			Container:        loc.Container,
			EnvPrefix:        cfg.Swift.EnvPrefix,
			Region:           cfg.Swift.Region,
			Interface:        cfg.Swift.Interface,
			SegmentContainer: cfg.Swift.SegmentContainer,
			CreateContainer:  cfg.Swift.CreateContainer,
			PageSize:         cfg.Swift.PageSize,
			UserAgent:        userAgent(cfg),
		})
	case provider.ProviderS3:
		return s3.New(ctx, s3.Config{
			Bucket:   loc.Container,
			Region:   cfg.S3.Region,
			Endpoint: cfg.S3.Endpoint,
			Profile:  cfg.S3.Profile,
			// S3-compatible services (moto, MinIO, etc.) require path-style URLs.
			ForcePathStyle: cfg.S3.ForcePathStyle || cfg.S3.Endpoint != "",
			MaxKeys:        cfg.S3.MaxKeys,
		})
	case provider.ProviderFile:
		return file.New(file.Config{BaseDir: loc.Container})
	case provider.ProviderMemory:
		return memory.Named(loc.Container), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, loc.Scheme)
}

// openAdapter connects to loc's store and wraps it in a storage adapter
// configured from cfg.
func openAdapter(ctx context.Context, loc *Location, cfg *config.Config) (*storage.Adapter, error) {
	p, err := openProvider(ctx, loc, cfg)
	if err != nil {
		return nil, err
	}
	a, err := storage.New(p, cfg.Storage, storage.WithLogger(observability.CLILogger))
	if err != nil {
		_ = p.Close()
		return nil, err
	}
	return a, nil
}

func userAgent(cfg *config.Config) string {
	if cfg.Swift.UserAgent != "" {
		return cfg.Swift.UserAgent
	}
	return swift.DefaultUserAgent + "/" + versionInfo.Version
}

// currentConfig returns the loaded config, loading defaults when a command
// runs without the root pre-run (tests).
func currentConfig(ctx context.Context) (*config.Config, error) {
	if appConfig != nil {
		return appConfig, nil
	}
	if cfg := config.GetConfig(); cfg != nil {
		return cfg, nil
	}
	return config.Load(ctx)
}
