package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	queryLimit int
	queryJSON  bool
)

var queryCmd = &cobra.Command{
	Use:   "query [bill-id] [query]",
	Short: "Search within an ingested bill",
	Long: `Runs a hybrid search over a bill's chunks, fusing vector similarity
with keyword overlap, and prints the top matches with their scores.`,
	Args: cobra.ExactArgs(2),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().IntVarP(&queryLimit, "limit", "n", 5, "maximum number of chunks to return")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	if retrievalService == nil {
		return errors.New("retrieval service not configured")
	}

	billID, query := args[0], args[1]
	results, err := retrievalService.Retrieve(context.Background(), billID, query, queryLimit)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if queryJSON {
		data, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding results: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	if len(results) == 0 {
		cmd.Printf("No matches in %s for %q\n", billID, query)
		return nil
	}

	cmd.Printf("Top %d matches in %s for %q:\n\n", len(results), billID, query)
	for i, scored := range results {
		cmd.Printf("%d. [%s] score %.3f (dense %.3f, lexical %.3f)\n",
			i+1, scored.Chunk.ID, scored.Score, scored.DenseScore, scored.LexicalScore)
		if scored.Chunk.Section != "" {
			cmd.Printf("   %s\n", scored.Chunk.Section)
		}
		cmd.Printf("   %s\n\n", snippet(scored.Chunk.Text, 200))
	}
	return nil
}

// snippet truncates content to at most n runes for terminal display.
func snippet(content string, n int) string {
	runes := []rune(content)
	if len(runes) <= n {
		return content
	}
	return string(runes[:n]) + "..."
}
