package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/member-insights/internal/db"
	"github.com/ziadkadry99/member-insights/internal/insight"
	"github.com/ziadkadry99/member-insights/internal/logger"
	"github.com/ziadkadry99/member-insights/internal/warehouse"
)

var importCmd = &cobra.Command{
	Use:   "import <file.json>",
	Short: "Load evidence rows from a JSON export into the warehouse",
	Long: `Reads a JSON array of evidence rows and inserts them as pending
work. Rows whose eni_id already exists are left untouched, so repeated
imports of overlapping exports are safe.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading %s: %w", args[0], err)
		}
		var rows []insight.EvidenceRow
		if err := json.Unmarshal(data, &rows); err != nil {
			return fmt.Errorf("parsing %s: %w", args[0], err)
		}
		for i, row := range rows {
			if row.ENIID == "" || row.ContactID == "" {
				return fmt.Errorf("row %d: eni_id and contact_id are required", i)
			}
		}

		database, err := db.Open(cfg.DatabasePath)
		if err != nil {
			return err
		}
		defer database.Close()

		wh := warehouse.NewSQLiteConnector(database, logger.NewNop())
		if err := wh.InsertRows(cmd.Context(), rows); err != nil {
			return err
		}
		fmt.Printf("Imported %d rows from %s\n", len(rows), args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}
