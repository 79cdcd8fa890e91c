package config

// ProviderType identifies an LLM provider.
type ProviderType string

const (
	ProviderAnthropic ProviderType = "anthropic"
	ProviderOpenAI    ProviderType = "openai"
	ProviderOllama    ProviderType = "ollama"
)

// ClaimBackend identifies the backing store for contact claims.
type ClaimBackend string

const (
	ClaimBackendSQLite ClaimBackend = "sqlite"
	ClaimBackendRedis  ClaimBackend = "redis"
)

// Config is the top-level pipeline configuration, corresponding to
// .member-insights.yml.
type Config struct {
	Provider       ProviderType           `yaml:"provider" koanf:"provider"`
	Model          string                 `yaml:"model" koanf:"model"`
	Generator      string                 `yaml:"generator" koanf:"generator"`
	LogMode        string                 `yaml:"log_mode" koanf:"log_mode"`
	DatabasePath   string                 `yaml:"database_path" koanf:"database_path"`
	OutputDir      string                 `yaml:"output_dir" koanf:"output_dir"`
	PromptTemplate string                 `yaml:"prompt_template" koanf:"prompt_template"`
	Processing     ProcessingConfig       `yaml:"processing" koanf:"processing"`
	Rules          RulesConfig            `yaml:"rules" koanf:"rules"`
	Parallel       ParallelConfig         `yaml:"parallel" koanf:"parallel"`
	Claims         ClaimsConfig           `yaml:"claims" koanf:"claims"`
	LLM            LLMConfig              `yaml:"llm" koanf:"llm"`
	Airtable       AirtableConfig         `yaml:"airtable" koanf:"airtable"`
	ContextFiles   map[string]TypeContext `yaml:"context_files" koanf:"context_files"`
}

// ProcessingConfig holds the token-budgeting knobs for prompt assembly.
type ProcessingConfig struct {
	ContextWindowTokens      int `yaml:"context_window_tokens" koanf:"context_window_tokens"`
	ReserveOutputTokens      int `yaml:"reserve_output_tokens" koanf:"reserve_output_tokens"`
	MaxNewDataTokensPerGroup int `yaml:"max_new_data_tokens_per_group" koanf:"max_new_data_tokens_per_group"`
	OverheadTokens           int `yaml:"overhead_tokens" koanf:"overhead_tokens"`
	InsightCacheSize         int `yaml:"insight_cache_size" koanf:"insight_cache_size"`
}

// RulesConfig maps each source type to its allow-listed subtypes. The
// "null" subtype is always processed for every listed type regardless
// of the allow-list.
type RulesConfig struct {
	Subtypes map[string][]string `yaml:"subtypes" koanf:"subtypes"`
}

// TypeContext points at the static reference text for a source type and
// its subtypes.
type TypeContext struct {
	Default  string            `yaml:"default" koanf:"default"`
	Subtypes map[string]string `yaml:"subtypes" koanf:"subtypes"`
}

// ParallelConfig controls the contact-level dispatcher.
type ParallelConfig struct {
	Enabled               bool `yaml:"enabled" koanf:"enabled"`
	MaxConcurrentContacts int  `yaml:"max_concurrent_contacts" koanf:"max_concurrent_contacts"`
	SelectionBatchSize    int  `yaml:"selection_batch_size" koanf:"selection_batch_size"`
	MaxContacts           int  `yaml:"max_contacts" koanf:"max_contacts"`
	CutoffHours           int  `yaml:"cutoff_hours" koanf:"cutoff_hours"`
}

// ClaimsConfig controls the distributed claim coordinator.
type ClaimsConfig struct {
	Backend    ClaimBackend `yaml:"backend" koanf:"backend"`
	TTLSeconds int          `yaml:"ttl_seconds" koanf:"ttl_seconds"`
	RedisAddr  string       `yaml:"redis_addr" koanf:"redis_addr"`
}

// LLMConfig controls the shared model-call throttle and retry policy.
type LLMConfig struct {
	MaxRetries    int     `yaml:"max_retries" koanf:"max_retries"`
	MaxConcurrent int     `yaml:"max_concurrent" koanf:"max_concurrent"`
	Temperature   float64 `yaml:"temperature" koanf:"temperature"`
}

// AirtableConfig controls the optional spreadsheet mirror. The API key
// is read from the AIRTABLE_API_KEY environment variable.
type AirtableConfig struct {
	Enabled   bool   `yaml:"enabled" koanf:"enabled"`
	BaseID    string `yaml:"base_id" koanf:"base_id"`
	TableName string `yaml:"table_name" koanf:"table_name"`
}
