package cli

import (
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/tabletalk-cli/internal/adapters/driven/config/file"
	"github.com/custodia-labs/tabletalk-cli/internal/core/domain"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and manage configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, cfg, err := loadConfig()
		if err != nil {
			return err
		}

		data, err := toml.Marshal(cfg)
		if err != nil {
			return err
		}
		cmd.Printf("# %s\n%s", store.Path(), string(data))
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file path",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, err := file.NewConfigStore(configDir)
		if err != nil {
			return err
		}
		cmd.Println(store.Path())
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration file",
	Long: `Writes the compiled-in defaults to the config file so every tunable
is visible and editable. Existing settings are preserved.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := store.Save(cfg); err != nil {
			return err
		}
		cmd.Printf("Wrote %s\n", store.Path())
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd, configPathCmd, configInitCmd)
	rootCmd.AddCommand(configCmd)
}

func loadConfig() (*file.ConfigStore, domain.Config, error) {
	store, err := file.NewConfigStore(configDir)
	if err != nil {
		return nil, domain.Config{}, err
	}
	cfg, err := store.Load()
	if err != nil {
		return nil, domain.Config{}, err
	}
	return store, cfg, nil
}
