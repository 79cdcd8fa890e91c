package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/member-insights/internal/db"
	"github.com/ziadkadry99/member-insights/internal/logger"
	"github.com/ziadkadry99/member-insights/internal/runlog"
	"github.com/ziadkadry99/member-insights/internal/warehouse"
)

var statsRecent int

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show backlog counts and recent run history",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		database, err := db.Open(cfg.DatabasePath)
		if err != nil {
			return err
		}
		defer database.Close()

		wh := warehouse.NewSQLiteConnector(database, logger.NewNop())
		whStats, err := wh.CountByStatus(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Println("Evidence backlog:")
		fmt.Printf("  pending:    %d\n", whStats.Pending)
		fmt.Printf("  completed:  %d\n", whStats.Completed)
		fmt.Printf("  failed:     %d\n", whStats.Failed)

		runs := runlog.NewStore(database)
		totalRuns, successful, failed, skipped, err := runs.Totals(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("\nRecorded runs: %d (%d successful, %d failed, %d skipped contacts)\n",
			totalRuns, successful, failed, skipped)

		recent, err := runs.Recent(cmd.Context(), statsRecent)
		if err != nil {
			return err
		}
		if len(recent) > 0 {
			fmt.Println("\nRecent runs:")
			for _, r := range recent {
				duration := ""
				if !r.FinishedAt.IsZero() {
					duration = r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String()
				}
				fmt.Printf("  %s  %-10s  contacts=%d ok=%d failed=%d skipped=%d  %s\n",
					r.StartedAt.Format("2006-01-02 15:04"), r.Generator,
					r.ContactsTotal, r.Successful, r.Failed, r.Skipped, duration)
			}
		}
		return nil
	},
}

func init() {
	statsCmd.Flags().IntVar(&statsRecent, "recent", 10, "number of recent runs to list")
	rootCmd.AddCommand(statsCmd)
}
