package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	ingestID    string
	ingestTitle string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [file...]",
	Short: "Chunk, embed and index bill files",
	Long: `Reads bill files (plain text or JSON), chunks the text, embeds the
chunks and rebuilds the per-bill indexes. Re-ingesting a bill replaces
its chunks and clears any stale analysis.

This is the cheap pipeline stage; no language model tokens are spent.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestID, "id", "", "override the bill ID (single file only)")
	ingestCmd.Flags().StringVar(&ingestTitle, "title", "", "override the bill title (single file only)")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if pipelineService == nil {
		return errors.New("pipeline service not configured")
	}
	if len(args) > 1 && (ingestID != "" || ingestTitle != "") {
		return errors.New("--id and --title apply to a single file only")
	}

	bills, err := loadBills(args)
	if err != nil {
		return err
	}
	if ingestID != "" {
		bills[0].ID = ingestID
	}
	if ingestTitle != "" {
		bills[0].Title = ingestTitle
	}

	ctx := context.Background()
	for _, bill := range bills {
		result, err := pipelineService.Ingest(ctx, bill)
		if err != nil {
			return fmt.Errorf("ingest %s: %w", bill.ID, err)
		}
		cmd.Printf("Ingested %s: %d chunks (%s) in %s\n",
			result.BillID, result.ChunkCount, result.EmbeddingModel,
			result.Duration.Round(time.Millisecond))
	}
	return nil
}
