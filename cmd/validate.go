package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/member-insights/internal/claims"
	"github.com/ziadkadry99/member-insights/internal/config"
	"github.com/ziadkadry99/member-insights/internal/contextbuild"
	"github.com/ziadkadry99/member-insights/internal/db"
	"github.com/ziadkadry99/member-insights/internal/logger"
	"github.com/ziadkadry99/member-insights/internal/warehouse"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check configuration and connectivity before a run",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runValidate(cmd)
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command) error {
	failures := 0
	check := func(name string, err error) {
		if err != nil {
			failures++
			fmt.Printf("  FAIL  %s: %v\n", name, err)
			return
		}
		fmt.Printf("  ok    %s\n", name)
	}

	fmt.Printf("Validating %s\n", cfgFile)

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	check("config", cfg.Validate())

	check("api key", checkAPIKey(cfg))

	database, err := db.Open(cfg.DatabasePath)
	check("database", err)
	if err == nil {
		defer database.Close()
		wh := warehouse.NewSQLiteConnector(database, logger.NewNop())
		check("warehouse", wh.Connect(cmd.Context()))
	}

	_, err = contextbuild.LoadTemplate(cfg.PromptTemplate)
	check("prompt template", err)

	if cfg.Claims.Backend == config.ClaimBackendRedis {
		c := claims.NewRedisCoordinator(cfg.Claims.RedisAddr)
		check("redis claims", c.Ping(cmd.Context()))
		c.Close()
	}

	if cfg.Airtable.Enabled {
		check("airtable credentials", checkAirtableKey())
	}

	if failures > 0 {
		return fmt.Errorf("%d check(s) failed", failures)
	}
	fmt.Println("All checks passed")
	return nil
}

func checkAPIKey(cfg *config.Config) error {
	envVar := config.APIKeyEnvVar(cfg.Provider)
	if envVar == "" {
		return nil
	}
	if os.Getenv(envVar) == "" {
		return fmt.Errorf("%s is not set", envVar)
	}
	return nil
}

func checkAirtableKey() error {
	if os.Getenv("AIRTABLE_API_KEY") == "" {
		return fmt.Errorf("AIRTABLE_API_KEY is not set")
	}
	return nil
}
