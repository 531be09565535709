package cli

import (
	"fmt"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/tabletalk-cli/internal/core/domain"
)

var statsColumns []string

var statsCmd = &cobra.Command{
	Use:   "stats [source]",
	Short: "Show statistics computed from ingested data",
	Long: `Reconstructs the dataset from stored chunks and prints per-column
statistics. These are the same figures answers are validated against.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStats,
}

func init() {
	statsCmd.Flags().StringSliceVar(&statsColumns, "columns", nil, "restrict output to these columns")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	sourceID := ""
	if len(args) == 1 {
		sourceID = args[0]
	}

	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	stat := a.statistician()

	table, err := stat.Reconstruct(ctx, sourceID)
	if err != nil {
		return err
	}
	if table.IsEmpty() {
		cmd.Println("No tabular data found. Ingest a dataset first.")
		return nil
	}

	stats, err := stat.Statistics(ctx, sourceID, statsColumns)
	if err != nil {
		return err
	}

	header := color.New(color.FgCyan, color.Bold)
	header.Fprintf(cmd.OutOrStdout(), "%s: %d rows, %d columns\n\n",
		displaySource(sourceID), table.RowCount, len(table.Columns))

	for _, name := range orderedColumns(table.Columns, stats) {
		cs := stats[name]
		header.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", cs.Name, cs.Type)

		switch cs.Type {
		case domain.ColumnNumeric:
			cmd.Printf("  count=%d mean=%.4f median=%.4f mode=%.4f std=%.4f min=%.4f max=%.4f\n",
				cs.Count, cs.Mean, cs.Median, cs.Mode, cs.StdDev, cs.Min, cs.Max)
		case domain.ColumnTemporal:
			cmd.Printf("  count=%d min=%.0f max=%.0f\n", cs.Count, cs.Min, cs.Max)
		default:
			cmd.Printf("  count=%d distinct=%d\n", cs.Count, len(cs.DistinctValues))
			for _, pair := range topValues(cs.DistinctValues, 5) {
				cmd.Printf("    %s\n", pair)
			}
		}
		cmd.Println()
	}
	return nil
}

func displaySource(sourceID string) string {
	if sourceID == "" {
		return "all sources"
	}
	return sourceID
}

// orderedColumns keeps the dataset's column order, dropping columns
// without computed statistics.
func orderedColumns(columns []string, stats map[string]domain.ColumnStats) []string {
	ordered := make([]string, 0, len(stats))
	for _, name := range columns {
		if _, ok := stats[name]; ok {
			ordered = append(ordered, name)
		}
	}
	return ordered
}

// topValues renders the n most frequent categorical values.
func topValues(counts map[string]int, n int) []string {
	type pair struct {
		value string
		count int
	}
	pairs := make([]pair, 0, len(counts))
	for v, c := range counts {
		pairs = append(pairs, pair{v, c})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].count != pairs[j].count {
			return pairs[i].count > pairs[j].count
		}
		return pairs[i].value < pairs[j].value
	})
	if len(pairs) > n {
		pairs = pairs[:n]
	}

	out := make([]string, len(pairs))
	for i, p := range pairs {
		out[i] = fmt.Sprintf("%s: %d", p.value, p.count)
	}
	return out
}
