package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (MEMBERINSIGHTS_*).
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Start from defaults.
	cfg := DefaultConfig()

	// Load YAML file if it exists.
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	// Overlay environment variables: MEMBERINSIGHTS_PROVIDER -> provider,
	// MEMBERINSIGHTS_CLAIMS_TTL_SECONDS -> claims.ttl_seconds, etc.
	if err := k.Load(env.Provider("MEMBERINSIGHTS_", ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, "MEMBERINSIGHTS_"))
		return strings.Replace(key, "_", ".", 1)
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// validProviders is the set of recognized provider values.
var validProviders = map[ProviderType]bool{
	ProviderAnthropic: true,
	ProviderOpenAI:    true,
	ProviderOllama:    true,
}

// validClaimBackends is the set of recognized claim backend values.
var validClaimBackends = map[ClaimBackend]bool{
	ClaimBackendSQLite: true,
	ClaimBackendRedis:  true,
}

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	if c.Provider == "" {
		return fmt.Errorf("provider is required")
	}
	if !validProviders[c.Provider] {
		return fmt.Errorf("invalid provider %q: must be one of anthropic, openai, ollama", c.Provider)
	}

	if c.Model == "" {
		return fmt.Errorf("model is required")
	}

	if c.Generator == "" {
		return fmt.Errorf("generator is required")
	}

	if c.DatabasePath == "" {
		return fmt.Errorf("database_path is required")
	}

	if c.Processing.ContextWindowTokens <= 0 {
		return fmt.Errorf("processing.context_window_tokens must be positive")
	}
	if c.Processing.ReserveOutputTokens < 0 {
		return fmt.Errorf("processing.reserve_output_tokens must be non-negative")
	}
	if c.Processing.ReserveOutputTokens >= c.Processing.ContextWindowTokens {
		return fmt.Errorf("processing.reserve_output_tokens must be smaller than the context window")
	}
	if c.Processing.MaxNewDataTokensPerGroup <= 0 {
		return fmt.Errorf("processing.max_new_data_tokens_per_group must be positive")
	}
	if c.Processing.OverheadTokens < 0 {
		return fmt.Errorf("processing.overhead_tokens must be non-negative")
	}
	if c.Processing.InsightCacheSize <= 0 {
		return fmt.Errorf("processing.insight_cache_size must be positive")
	}

	if c.Parallel.MaxConcurrentContacts < 1 {
		return fmt.Errorf("parallel.max_concurrent_contacts must be at least 1")
	}
	if c.Parallel.SelectionBatchSize < 1 {
		return fmt.Errorf("parallel.selection_batch_size must be at least 1")
	}
	if c.Parallel.MaxContacts < 0 {
		return fmt.Errorf("parallel.max_contacts must be non-negative")
	}

	if !validClaimBackends[c.Claims.Backend] {
		return fmt.Errorf("invalid claims.backend %q: must be one of sqlite, redis", c.Claims.Backend)
	}
	if c.Claims.TTLSeconds <= 0 {
		return fmt.Errorf("claims.ttl_seconds must be positive")
	}
	if c.Claims.Backend == ClaimBackendRedis && c.Claims.RedisAddr == "" {
		return fmt.Errorf("claims.redis_addr is required when claims.backend is redis")
	}

	if c.LLM.MaxRetries < 1 {
		return fmt.Errorf("llm.max_retries must be at least 1")
	}
	if c.LLM.MaxConcurrent < 1 {
		return fmt.Errorf("llm.max_concurrent must be at least 1")
	}

	if c.Airtable.Enabled {
		if c.Airtable.BaseID == "" || c.Airtable.TableName == "" {
			return fmt.Errorf("airtable.base_id and airtable.table_name are required when airtable is enabled")
		}
	}

	return nil
}

// APIKeyEnvVar returns the conventional environment variable name for
// the API key of the given provider.
func APIKeyEnvVar(provider ProviderType) string {
	switch provider {
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	default:
		return ""
	}
}
