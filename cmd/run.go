package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/member-insights/internal/airtable"
	"github.com/ziadkadry99/member-insights/internal/claims"
	"github.com/ziadkadry99/member-insights/internal/config"
	"github.com/ziadkadry99/member-insights/internal/contextbuild"
	"github.com/ziadkadry99/member-insights/internal/db"
	"github.com/ziadkadry99/member-insights/internal/export"
	"github.com/ziadkadry99/member-insights/internal/insight"
	"github.com/ziadkadry99/member-insights/internal/llm"
	"github.com/ziadkadry99/member-insights/internal/pipeline"
	"github.com/ziadkadry99/member-insights/internal/progress"
	"github.com/ziadkadry99/member-insights/internal/runlog"
	"github.com/ziadkadry99/member-insights/internal/status"
	"github.com/ziadkadry99/member-insights/internal/warehouse"
)

var (
	runContacts    []string
	runMaxContacts int
	runStatusAddr  string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process pending evidence into member summaries",
	Long: `Selects members with pending interaction records, builds a
token-budgeted prompt per (source type, subtype) partition, calls the
configured model, and stores each result as a new summary version.

With --contacts the given members are processed sequentially and no
claims are taken; otherwise candidates are selected from the backlog,
prioritized by never-processed first, then least recently processed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPipeline(cmd.Context())
	},
}

func init() {
	runCmd.Flags().StringSliceVar(&runContacts, "contacts", nil, "explicit contact ids to process sequentially")
	runCmd.Flags().IntVar(&runMaxContacts, "max-contacts", 0, "stop after this many contacts (0 = config value)")
	runCmd.Flags().StringVar(&runStatusAddr, "status-addr", "", "serve /healthz, /runs and /backlog on this address while running")
	rootCmd.AddCommand(runCmd)
}

func runPipeline(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	database, err := db.Open(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer database.Close()

	wh := warehouse.NewSQLiteConnector(database, log)
	if err := wh.Connect(ctx); err != nil {
		return fmt.Errorf("warehouse unavailable: %w", err)
	}

	provider, err := llm.NewProvider(string(cfg.Provider), cfg.Model)
	if err != nil {
		return err
	}
	limiter := llm.NewRateLimiter(cfg.LLM.MaxConcurrent)
	client := llm.NewClient(provider, limiter, log,
		cfg.LLM.MaxRetries, cfg.Processing.ReserveOutputTokens, cfg.LLM.Temperature)

	store, err := insight.NewStore(database, log, cfg.Generator, cfg.Processing.InsightCacheSize)
	if err != nil {
		return err
	}

	template, err := contextbuild.LoadTemplate(cfg.PromptTemplate)
	if err != nil {
		return err
	}

	var mirror pipeline.Mirror
	if cfg.Airtable.Enabled {
		apiKey := os.Getenv("AIRTABLE_API_KEY")
		if apiKey == "" {
			return fmt.Errorf("AIRTABLE_API_KEY environment variable is required when airtable is enabled")
		}
		mirror = airtable.NewClient(apiKey, cfg.Airtable.BaseID, cfg.Airtable.TableName, log)
	}

	var exporter pipeline.Exporter
	if cfg.OutputDir != "" {
		exporter = export.NewWriter(cfg.OutputDir)
	}

	claimer, cleanup, err := newClaimer(ctx, cfg, database)
	if err != nil {
		return err
	}
	defer cleanup()

	processor := pipeline.NewProcessor(cfg, log, wh, store, client, template, mirror, exporter)

	runs := runlog.NewStore(database)
	if runStatusAddr != "" {
		srv := status.New(runStatusAddr, runs, wh, log)
		go func() {
			if err := srv.Start(); err != nil && err != http.ErrServerClosed {
				log.Error("status server stopped", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	maxWorkers := 1
	if cfg.Parallel.Enabled {
		maxWorkers = cfg.Parallel.MaxConcurrentContacts
	}
	maxContacts := cfg.Parallel.MaxContacts
	if runMaxContacts > 0 {
		maxContacts = runMaxContacts
	}
	cutoff := time.Now().Add(-time.Duration(cfg.Parallel.CutoffHours) * time.Hour)

	dispatcher := pipeline.NewDispatcher(log, processor, wh, claimer, progress.NewReporter(),
		cfg.Generator, maxWorkers, cfg.Parallel.SelectionBatchSize, maxContacts,
		time.Duration(cfg.Claims.TTLSeconds)*time.Second, cutoff)

	var summary pipeline.RunSummary
	if len(runContacts) > 0 {
		summary = dispatcher.RunSequential(ctx, runContacts)
	} else {
		summary = dispatcher.Run(ctx)
	}

	if err := runs.Record(context.Background(), summary); err != nil {
		log.Warn("failed to persist run summary", "error", err)
	}

	printSummary(summary)
	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d contacts failed", summary.Failed, summary.ContactsTotal)
	}
	return nil
}

// newClaimer builds the configured claim coordinator. The returned
// cleanup closes backend connections and is safe to call always.
func newClaimer(ctx context.Context, cfg *config.Config, database *db.DB) (claims.Coordinator, func(), error) {
	switch cfg.Claims.Backend {
	case config.ClaimBackendRedis:
		c := claims.NewRedisCoordinator(cfg.Claims.RedisAddr)
		if err := c.Ping(ctx); err != nil {
			c.Close()
			return nil, nil, fmt.Errorf("redis claim backend unavailable: %w", err)
		}
		return c, func() { c.Close() }, nil
	default:
		return claims.NewSQLiteCoordinator(database), func() {}, nil
	}
}

func printSummary(s pipeline.RunSummary) {
	fmt.Printf("\nRun %s finished in %s\n", s.RunID, s.FinishedAt.Sub(s.StartedAt).Round(time.Second))
	fmt.Printf("  contacts:   %d (%d successful, %d failed, %d skipped)\n",
		s.ContactsTotal, s.Successful, s.Failed, s.Skipped)
	fmt.Printf("  evidence:   %d rows consumed\n", s.EvidenceRows)
	fmt.Printf("  tokens:     ~%d in / ~%d out\n", s.EstInputTokens, s.EstOutputTokens)
	if len(s.Errors) > 0 {
		fmt.Printf("  errors (%d):\n", len(s.Errors))
		for _, e := range s.Errors {
			fmt.Printf("    - %s\n", e)
		}
	}
}
