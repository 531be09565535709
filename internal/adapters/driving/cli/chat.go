package cli

import (
	"bufio"
	"errors"
	"strings"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/tabletalk-cli/internal/core/domain"
)

var chatDataset string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive question session",
	Long: `Opens a read-eval-print loop over the query pipeline. Conversation
context carries across turns within the session. Type "exit" or
"quit" (or press Ctrl-D) to leave.`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatDataset, "dataset", "", "bias answers towards this ingested source")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, _ []string) error {
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

	sessionID := uuid.New().String()
	if chatDataset != "" {
		assistant.AttachDataset(sessionID, chatDataset)
	}

	cmd.Println("tabletalk chat. Ask about your data; \"exit\" to leave.")

	prompt := color.New(color.FgCyan, color.Bold)
	scanner := bufio.NewScanner(cmd.InOrStdin())
	scanner.Buffer(make([]byte, 64*1024), 64*1024)

	for {
		prompt.Fprint(cmd.OutOrStdout(), "> ")
		if !scanner.Scan() {
			cmd.Println()
			return scanner.Err()
		}

		query := strings.TrimSpace(scanner.Text())
		switch query {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		answer, err := assistant.Ask(ctx, query, sessionID)
		if err != nil {
			var allFailed *domain.AllProvidersFailedError
			if errors.As(err, &allFailed) {
				// Fatal for this turn only; the session survives.
				color.Red("All LLM providers failed (%d attempts), try again later.", len(allFailed.Attempts))
				continue
			}
			color.Red("%v", err)
			continue
		}

		cmd.Println()
		printAnswer(cmd, answer)
		cmd.Println()
	}
}
