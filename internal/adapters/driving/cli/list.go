package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List ingested bills",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, _ []string) error {
	if reportService == nil {
		return errors.New("report service not configured")
	}

	ids, err := reportService.List(context.Background())
	if err != nil {
		return fmt.Errorf("listing bills: %w", err)
	}
	if len(ids) == 0 {
		cmd.Println("No bills ingested")
		return nil
	}
	for _, id := range ids {
		cmd.Println(id)
	}
	return nil
}
