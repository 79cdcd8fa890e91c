package config

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Provider:     ProviderOpenAI,
		Model:        "gpt-4o",
		Generator:    "structured_insight",
		LogMode:      "dev",
		DatabasePath: "data/member-insights.db",
		OutputDir:    "output",
		Processing: ProcessingConfig{
			ContextWindowTokens:      128000,
			ReserveOutputTokens:      8000,
			MaxNewDataTokensPerGroup: 40000,
			OverheadTokens:           500,
			InsightCacheSize:         1024,
		},
		Rules: RulesConfig{
			Subtypes: map[string][]string{},
		},
		Parallel: ParallelConfig{
			Enabled:               false,
			MaxConcurrentContacts: 1,
			SelectionBatchSize:    10,
			MaxContacts:           0,
			CutoffHours:           24,
		},
		Claims: ClaimsConfig{
			Backend:    ClaimBackendSQLite,
			TTLSeconds: 900,
		},
		LLM: LLMConfig{
			MaxRetries:    3,
			MaxConcurrent: 3,
			Temperature:   0.2,
		},
		Airtable: AirtableConfig{
			Enabled: false,
		},
	}
}

// AllowedSubtype reports whether the given subtype of a source type
// should be processed. The "null" sentinel is always allowed; other
// subtypes only when explicitly listed for their type.
func (c *Config) AllowedSubtype(sourceType, sourceSubtype string) bool {
	if sourceSubtype == "null" || sourceSubtype == "" {
		return true
	}
	for _, s := range c.Rules.Subtypes[sourceType] {
		if s == sourceSubtype {
			return true
		}
	}
	return false
}
