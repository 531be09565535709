package driven

import "github.com/custodia-labs/tabletalk-cli/internal/core/domain"

// ConfigStore persists application configuration.
// Implementations may load from a file, environment, or remote service.
type ConfigStore interface {
	// Load reads the stored configuration. When no configuration has
	// been written yet it returns domain.DefaultConfig().
	Load() (domain.Config, error)

	// Save writes the configuration.
	Save(cfg domain.Config) error

	// Path returns a human-readable location of the backing store, for
	// diagnostics.
	Path() string
}
