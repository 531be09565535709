package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check connectivity to the configured providers",
	Long: `Makes a lightweight request to the embedding provider and every
configured LLM provider. No inference runs and nothing is stored.`,
	Args: cobra.NoArgs,
	RunE: runPing,
}

func init() {
	rootCmd.AddCommand(pingCmd)
}

func runPing(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	failures := 0

	if err := a.embedder.Ping(ctx); err != nil {
		color.Red("embedding (%s): %v", a.embedder.ModelName(), err)
		failures++
	} else {
		color.Green("embedding (%s): ok", a.embedder.ModelName())
	}

	providers, err := a.llmProviders()
	if err != nil {
		return err
	}
	for _, p := range providers {
		if err := p.Service.Ping(ctx); err != nil {
			color.Red("llm %s (%s): %v", p.Name, p.Service.ModelName(), err)
			failures++
			continue
		}
		color.Green("llm %s (%s): ok", p.Name, p.Service.ModelName())
	}

	if failures > 0 {
		return fmt.Errorf("%d provider(s) unreachable", failures)
	}
	return nil
}
