package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/openuspolitics/billtrace/internal/core/domain"
)

var showCmd = &cobra.Command{
	Use:   "show [bill-id]",
	Short: "Display a bill's stored analysis",
	Long: `Prints the stored record for a bill: its facets, topics and
provenance counts. Use export for the full machine-readable record.`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

func init() {
	rootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	if reportService == nil {
		return errors.New("report service not configured")
	}

	record, err := reportService.Get(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("fetching %s: %w", args[0], err)
	}

	cmd.Printf("%s", record.BillID)
	if record.Number != "" {
		cmd.Printf(" (%s)", record.Number)
	}
	cmd.Println()
	if record.Title != "" {
		cmd.Println(record.Title)
	}
	cmd.Printf("Chunks: %d", len(record.Chunks))
	if record.EmbeddingModel != "" {
		cmd.Printf(", embedded with %s", record.EmbeddingModel)
	}
	cmd.Println()
	if len(record.Topics) > 0 {
		cmd.Printf("Topics: %s\n", strings.Join(record.Topics, ", "))
	}

	if len(record.Analysis) == 0 {
		cmd.Println("\nNot yet analyzed")
		return nil
	}
	if record.ModelUsed != "" {
		cmd.Printf("Analyzed with %s\n", record.ModelUsed)
	}

	for _, kind := range domain.AllFacetKinds() {
		facet, ok := record.Facet(kind)
		if !ok {
			continue
		}
		cmd.Printf("\n== %s ==\n", kind)
		if facet.Ungenerated {
			cmd.Println("(not generated: no grounding context retrieved)")
			continue
		}
		cmd.Println(facet.Text)
		links := 0
		for _, link := range record.Provenance {
			if link.Facet == kind {
				links++
			}
		}
		cmd.Printf("(%d provenance links", links)
		if facet.Rejected > 0 {
			cmd.Printf(", %d claims rejected", facet.Rejected)
		}
		cmd.Println(")")
	}
	return nil
}
