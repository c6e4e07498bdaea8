package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [bill-id]",
	Short: "Generate grounded analysis for an ingested bill",
	Long: `Generates the analysis facets for a previously ingested bill and
links every claim back to its source passage. Facets that cannot be
grounded are recorded as ungenerated rather than invented.

This is the expensive pipeline stage; it spends language model tokens.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	if pipelineService == nil {
		return errors.New("pipeline service not configured")
	}

	result, err := pipelineService.Analyze(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("analyze failed: %w", err)
	}

	cmd.Printf("Analyzed %s in %s\n", result.BillID, result.Duration.Round(time.Millisecond))
	cmd.Printf("  Facets:   %d\n", len(result.Facets))
	cmd.Printf("  Links:    %d (%d exact, %d fuzzy, %d rejected)\n",
		len(result.Links), result.LinkedExact, result.LinkedFuzzy, result.Unlinked)
	if len(result.Topics) > 0 {
		cmd.Printf("  Topics:   %v\n", result.Topics)
	}
	printUsage(cmd)
	return nil
}

// printUsage reports cumulative token spend when a cost reporter is wired.
func printUsage(cmd *cobra.Command) {
	if costReporter == nil {
		return
	}
	usage := costReporter.Usage()
	if usage.Calls == 0 {
		return
	}
	cmd.Printf("  Tokens:   %d in / %d out over %d calls (est. $%.4f)\n",
		usage.InputTokens, usage.OutputTokens, usage.Calls, usage.EstimatedUSD)
}
