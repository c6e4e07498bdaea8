package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var lineageJSON bool

var lineageCmd = &cobra.Command{
	Use:   "lineage [bill-id]",
	Short: "Show a bill's processing history",
	Long: `Prints the recorded lineage events for a bill: where its text came
from, how it was chunked and embedded, which model analyzed it and
where the result was stored. Omit the bill ID to see all bills.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLineage,
}

func init() {
	lineageCmd.Flags().BoolVar(&lineageJSON, "json", false, "output events as JSON")
	rootCmd.AddCommand(lineageCmd)
}

func runLineage(cmd *cobra.Command, args []string) error {
	if lineageService == nil {
		return errors.New("lineage service not configured")
	}

	billID := ""
	if len(args) == 1 {
		billID = args[0]
	}

	if lineageJSON {
		data, err := lineageService.ExportJSON(billID)
		if err != nil {
			return fmt.Errorf("exporting lineage: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	events := lineageService.Events(billID)
	if len(events) == 0 {
		cmd.Println("No lineage events recorded")
		return nil
	}
	for _, event := range events {
		cmd.Printf("%s  %-10s %s", event.Timestamp.Format(time.RFC3339), event.Type, event.BillID)
		if event.Step != "" {
			cmd.Printf("  step=%s", event.Step)
		}
		if event.Model != "" {
			cmd.Printf("  model=%s", event.Model)
		}
		cmd.Println()
	}
	return nil
}
