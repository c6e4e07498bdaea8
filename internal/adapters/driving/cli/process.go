package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/openuspolitics/billtrace/internal/adapters/driving/watcher"
	"github.com/openuspolitics/billtrace/internal/core/ports/driving"
)

var processWatch string

var processCmd = &cobra.Command{
	Use:   "process [file...]",
	Short: "Run the full pipeline on bill files",
	Long: `Runs ingest and analyze back to back for each bill file. Multiple
files are processed concurrently with a bounded worker pool; one bad
file never aborts the batch.

With --watch, processes files as they are dropped into the given inbox
directory instead. Runs until interrupted.`,
	RunE: runProcess,
}

func init() {
	processCmd.Flags().StringVar(&processWatch, "watch", "", "watch a directory and process files as they arrive")
	rootCmd.AddCommand(processCmd)
}

func runProcess(cmd *cobra.Command, args []string) error {
	if pipelineService == nil {
		return errors.New("pipeline service not configured")
	}
	if processWatch != "" {
		if len(args) > 0 {
			return errors.New("--watch takes no file arguments")
		}
		return runWatch(cmd, processWatch)
	}
	if len(args) == 0 {
		return errors.New("requires at least one file argument (or --watch)")
	}

	bills, err := loadBills(args)
	if err != nil {
		return err
	}

	ctx := context.Background()
	if len(bills) == 1 {
		result, err := pipelineService.Process(ctx, bills[0])
		if err != nil {
			return fmt.Errorf("process %s: %w", bills[0].ID, err)
		}
		printProcessResult(cmd, *result)
		printUsage(cmd)
		return nil
	}

	results := pipelineService.ProcessAll(ctx, bills)
	failed := 0
	for _, result := range results {
		printProcessResult(cmd, result)
		if result.Err != nil {
			failed++
		}
	}
	printUsage(cmd)
	if failed > 0 {
		return fmt.Errorf("%d of %d bills failed", failed, len(results))
	}
	return nil
}

func runWatch(cmd *cobra.Command, inboxDir string) error {
	w := watcher.New(pipelineService, inboxDir)
	defer w.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	results, err := w.Watch(ctx)
	if err != nil {
		return fmt.Errorf("watch %s: %w", inboxDir, err)
	}

	cmd.Printf("Watching %s for bill files (ctrl-c to stop)\n", inboxDir)
	for result := range results {
		printProcessResult(cmd, result)
	}
	return nil
}

func printProcessResult(cmd *cobra.Command, result driving.ProcessResult) {
	if result.Err != nil {
		cmd.Printf("Failed %s: %v\n", result.BillID, result.Err)
		return
	}
	var total time.Duration
	chunks := 0
	if result.Ingest != nil {
		total += result.Ingest.Duration
		chunks = result.Ingest.ChunkCount
	}
	facets := 0
	if result.Analyze != nil {
		total += result.Analyze.Duration
		facets = len(result.Analyze.Facets)
	}
	cmd.Printf("Processed %s: %d chunks, %d facets in %s\n",
		result.BillID, chunks, facets, total.Round(time.Millisecond))
}
