package cmd

import (
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "member-insights",
	Short: "Batch generation of versioned member summaries from interaction data",
	Long: `Member Insights walks a warehouse of member interaction records,
feeds each member's pending evidence to an LLM in token-budgeted
batches, and maintains a versioned, sectioned summary per member.
Runs can be parallel and claim-coordinated so several instances
share one backlog safely.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", ".member-insights.yml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
