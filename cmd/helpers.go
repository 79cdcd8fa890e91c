package cmd

import (
	"fmt"

	"github.com/ziadkadry99/member-insights/internal/config"
	"github.com/ziadkadry99/member-insights/internal/logger"
)

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `member-insights init` to create a config file", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// newLogger builds the process logger. --verbose forces dev mode.
func newLogger(cfg *config.Config) (*logger.Logger, error) {
	mode := cfg.LogMode
	if verbose {
		mode = "dev"
	}
	return logger.New(mode)
}
