package file

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/tabletalk-cli/internal/core/domain"
	"github.com/custodia-labs/tabletalk-cli/internal/core/ports/driven"
)

// Ensure ConfigStore implements the interface.
var _ driven.ConfigStore = (*ConfigStore)(nil)

// ConfigStore is a TOML-file-backed implementation of
// driven.ConfigStore.
type ConfigStore struct {
	mu       sync.Mutex
	filePath string
}

// NewConfigStore creates a config store rooted at configDir.
// If configDir is empty, defaults to ~/.tabletalk.
func NewConfigStore(configDir string) (*ConfigStore, error) {
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		configDir = filepath.Join(home, ".tabletalk")
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	return &ConfigStore{
		filePath: filepath.Join(configDir, "config.toml"),
	}, nil
}

// Load reads the configuration file. A missing file yields the default
// configuration; values absent from the file keep their defaults, so
// a partial config file is valid.
func (s *ConfigStore) Load() (domain.Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := domain.DefaultConfig()

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	// Slice-valued settings start empty: TOML decoding appends to
	// pre-populated slices, which would duplicate defaults.
	decoded := domain.DefaultConfig()
	decoded.LLM.Providers = nil
	decoded.LLM.Preference = nil
	decoded.Classifier.StatisticalKeywords = nil
	decoded.Classifier.SearchKeywords = nil
	decoded.Classifier.LoadingKeywords = nil
	decoded.Classifier.ChatKeywords = nil

	if err := toml.Unmarshal(data, &decoded); err != nil {
		return cfg, fmt.Errorf("parsing %s: %w", s.filePath, err)
	}

	if decoded.LLM.Providers == nil {
		decoded.LLM.Providers = cfg.LLM.Providers
	}
	if decoded.Classifier.StatisticalKeywords == nil {
		decoded.Classifier.StatisticalKeywords = cfg.Classifier.StatisticalKeywords
	}
	if decoded.Classifier.SearchKeywords == nil {
		decoded.Classifier.SearchKeywords = cfg.Classifier.SearchKeywords
	}
	if decoded.Classifier.LoadingKeywords == nil {
		decoded.Classifier.LoadingKeywords = cfg.Classifier.LoadingKeywords
	}
	if decoded.Classifier.ChatKeywords == nil {
		decoded.Classifier.ChatKeywords = cfg.Classifier.ChatKeywords
	}
	return decoded, nil
}

// Save writes the configuration with restricted permissions.
func (s *ConfigStore) Save(cfg domain.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(s.filePath, data, 0600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Path returns the configuration file path.
func (s *ConfigStore) Path() string {
	return s.filePath
}
