package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export [bill-id]",
	Short: "Export a bill's record as JSON",
	Long: `Writes the complete stored record for a bill as indented JSON:
metadata, chunks, analysis facets and every provenance link.`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "write to a file instead of stdout")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	if reportService == nil {
		return errors.New("report service not configured")
	}

	data, err := reportService.ExportJSON(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("exporting %s: %w", args[0], err)
	}

	if exportOut == "" {
		cmd.Println(string(data))
		return nil
	}
	if err := os.WriteFile(exportOut, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", exportOut, err)
	}
	cmd.Printf("Exported %s to %s\n", args[0], exportOut)
	return nil
}
