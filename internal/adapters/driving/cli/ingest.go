package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/tabletalk-cli/internal/core/domain"
)

var (
	ingestSource   string
	ingestStrategy string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [file]",
	Short: "Ingest a tabular data file",
	Long: `Chunks, enriches and embeds a tabular data file into the vector
store. Re-ingesting the same source replaces its previous contents.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestSource, "source", "", "source identifier (default: file name)")
	ingestCmd.Flags().StringVar(&ingestStrategy, "strategy", "tabular", "chunking strategy: tabular, sentence, paragraph, fixed")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	path := args[0]

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	sourceID := ingestSource
	if sourceID == "" {
		sourceID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	strategy := domain.ChunkStrategy(ingestStrategy)
	if !strategy.IsValid() {
		return fmt.Errorf("%w: unknown strategy %q", domain.ErrInvalidInput, ingestStrategy)
	}

	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	report, err := a.ingestor().Ingest(ctx, string(raw), sourceID, strategy)

	var ingestErr *domain.IngestionError
	if errors.As(err, &ingestErr) {
		// Partial ingestion keeps what was stored; tell the user where it
		// stopped so a retry can pick up.
		color.Yellow("Ingestion interrupted at batch %d: %v", ingestErr.FailedBatch, ingestErr.Err)
		color.Yellow("%d embeddings were stored and remain queryable.", ingestErr.EmbeddedCount)
		return err
	}
	if err != nil {
		return err
	}

	color.Green("Ingested %q", sourceID)
	cmd.Printf("  chunks:     %d\n", report.ChunksCreated)
	cmd.Printf("  embeddings: %d\n", report.EmbeddingsStored)
	return nil
}
