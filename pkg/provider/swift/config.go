// Package swift implements the provider interface for OpenStack Swift.
package swift

// Config configures a Swift provider.
//
// Authentication uses the OpenStack client environment (OS_AUTH_URL,
// OS_USERNAME, OS_PASSWORD, OS_PROJECT_NAME, OS_APPLICATION_CREDENTIAL_ID,
// ...), read with EnvPrefix in place of "OS_". Region and Interface select
// the Swift endpoint from the Keystone catalog.
type Config struct {
	// Container is the Swift container name (required).
	Container string

	// EnvPrefix is the prefix of the OpenStack auth environment variables.
	// Defaults to "OS_".
	EnvPrefix string

	// Region selects the catalog region. Empty accepts any region.
	Region string

	// Interface selects the endpoint interface ("public", "internal",
	// "admin"). Empty uses the gophercloud default.
	Interface string

	// SegmentContainer receives large object segments.
	// Defaults to Container.
	SegmentContainer string

	// CreateContainer creates the container (and segment container) when
	// missing.
	CreateContainer bool

	// PageSize is the default listing page size.
	// Zero uses DefaultPageSize. Values over MaxPageSize are clamped.
	PageSize int

	// UserAgent overrides the User-Agent sent to Swift.
	UserAgent string
}

// DefaultEnvPrefix is the standard OpenStack client environment prefix.
const DefaultEnvPrefix = "OS_"

// DefaultPageSize is the default listing page size.
const DefaultPageSize = 1000

// MaxPageSize is the container listing limit enforced by Swift's default
// configuration (container_listing_limit).
const MaxPageSize = 10000

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.Container == "" {
		return &ConfigError{Field: "Container", Message: "container name is required"}
	}
	if c.PageSize < 0 {
		return &ConfigError{Field: "PageSize", Message: "page size must not be negative"}
	}
	return nil
}

func (c Config) envPrefix() string {
	if c.EnvPrefix == "" {
		return DefaultEnvPrefix
	}
	return c.EnvPrefix
}

func (c Config) segmentContainer() string {
	if c.SegmentContainer == "" {
		return c.Container
	}
	return c.SegmentContainer
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "swift config: " + e.Field + ": " + e.Message
}
