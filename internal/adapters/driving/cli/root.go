// Package cli provides the billtrace command line interface.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/openuspolitics/billtrace/internal/core/ports/driven"
	"github.com/openuspolitics/billtrace/internal/core/ports/driving"
	"github.com/openuspolitics/billtrace/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

// Injected services. Commands check for nil so the CLI degrades to a
// clear error instead of a panic when wiring is incomplete.
var (
	pipelineService  driving.PipelineService
	retrievalService driving.RetrievalService
	reportService    driving.ReportService
	lineageService   driving.LineageService
	costReporter     driven.CostReporter
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "billtrace",
	Short: "Grounded analysis of congressional bills",
	Long: `billtrace turns raw congressional bill text into plain-English
analysis where every claim links back to the exact source passage.

The pipeline has two stages: ingest (chunk, embed, index - cheap, safe
to rerun) and analyze (retrieve, generate, link - burns model tokens).`,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
}

// Services bundles everything the commands need.
type Services struct {
	Pipeline  driving.PipelineService
	Retrieval driving.RetrievalService
	Report    driving.ReportService
	Lineage   driving.LineageService

	// Cost is optional; when set the analyze and process commands
	// print a token usage summary.
	Cost driven.CostReporter
}

// Configure injects the services the commands run against.
func Configure(s Services) {
	pipelineService = s.Pipeline
	retrievalService = s.Retrieval
	reportService = s.Report
	lineageService = s.Lineage
	costReporter = s.Cost
}

// SetVersion sets the version string reported by the version command.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
