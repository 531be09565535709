package cli

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/tabletalk-cli/internal/core/domain"
)

var (
	askSession string
	askDataset string
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question about ingested data",
	Long: `Classifies the question, gathers grounding context from the vector
store, generates an answer and validates its numeric claims against
statistics computed from the stored data.`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askSession, "session", "default", "conversation session identifier")
	askCmd.Flags().StringVar(&askDataset, "dataset", "", "bias answers towards this ingested source")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	assistant, err := a.assistant()
	if err != nil {
		return err
	}
	if askDataset != "" {
		assistant.AttachDataset(askSession, askDataset)
	}

	answer, err := assistant.Ask(ctx, args[0], askSession)
	if err != nil {
		var allFailed *domain.AllProvidersFailedError
		if errors.As(err, &allFailed) {
			color.Red("All LLM providers failed:")
			for _, attempt := range allFailed.Attempts {
				cmd.PrintErrf("  %s (%s): %v\n", attempt.Provider, attempt.Model, attempt.Err)
			}
		}
		return err
	}

	printAnswer(cmd, answer)
	return nil
}

func printAnswer(cmd *cobra.Command, answer domain.Answer) {
	cmd.Println(answer.Text)
	cmd.Println()

	meta := fmt.Sprintf("agent=%s confidence=%.2f", answer.AgentUsed, answer.ConfidenceScore)
	if answer.LLMModel != "" {
		meta += " model=" + answer.LLMModel
	}
	color.New(color.Faint).Fprintln(cmd.OutOrStdout(), meta)

	if answer.LowConfidence {
		color.Yellow("Some figures could not be verified against the dataset; treat them with caution.")
	}
}
