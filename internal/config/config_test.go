package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty provider", func(c *Config) { c.Provider = "" }},
		{"unknown provider", func(c *Config) { c.Provider = "mystery" }},
		{"empty model", func(c *Config) { c.Model = "" }},
		{"empty generator", func(c *Config) { c.Generator = "" }},
		{"zero context window", func(c *Config) { c.Processing.ContextWindowTokens = 0 }},
		{"reserve exceeds window", func(c *Config) {
			c.Processing.ContextWindowTokens = 100
			c.Processing.ReserveOutputTokens = 100
		}},
		{"zero group budget", func(c *Config) { c.Processing.MaxNewDataTokensPerGroup = 0 }},
		{"zero workers", func(c *Config) { c.Parallel.MaxConcurrentContacts = 0 }},
		{"bad claim backend", func(c *Config) { c.Claims.Backend = "zookeeper" }},
		{"zero claim ttl", func(c *Config) { c.Claims.TTLSeconds = 0 }},
		{"redis without addr", func(c *Config) {
			c.Claims.Backend = ClaimBackendRedis
			c.Claims.RedisAddr = ""
		}},
		{"zero retries", func(c *Config) { c.LLM.MaxRetries = 0 }},
		{"airtable enabled without base", func(c *Config) {
			c.Airtable.Enabled = true
			c.Airtable.BaseID = ""
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Provider != ProviderOpenAI {
		t.Errorf("expected default provider, got %q", cfg.Provider)
	}
	if cfg.Claims.TTLSeconds != 900 {
		t.Errorf("expected default claim TTL 900, got %d", cfg.Claims.TTLSeconds)
	}
}

func TestLoadYAMLAndEnvOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".member-insights.yml")
	yaml := `
provider: anthropic
model: claude-sonnet-4-5-20250929
processing:
  context_window_tokens: 100000
rules:
  subtypes:
    airtable_notes:
      - meeting
      - call
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("MEMBERINSIGHTS_MODEL", "claude-haiku-4-5-20251001")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Provider != ProviderAnthropic {
		t.Errorf("expected provider from file, got %q", cfg.Provider)
	}
	if cfg.Model != "claude-haiku-4-5-20251001" {
		t.Errorf("expected env override to win, got %q", cfg.Model)
	}
	if cfg.Processing.ContextWindowTokens != 100000 {
		t.Errorf("expected window from file, got %d", cfg.Processing.ContextWindowTokens)
	}
	if got := cfg.Rules.Subtypes["airtable_notes"]; len(got) != 2 {
		t.Errorf("expected 2 allow-listed subtypes, got %v", got)
	}
}

func TestAllowedSubtype(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Rules.Subtypes = map[string][]string{
		"airtable_notes": {"meeting"},
	}

	tests := []struct {
		sourceType, subtype string
		want                bool
	}{
		{"airtable_notes", "null", true},
		{"airtable_notes", "", true},
		{"airtable_notes", "meeting", true},
		{"airtable_notes", "call", false},
		{"pipedrive", "null", true},
		{"pipedrive", "deal", false},
	}

	for _, tt := range tests {
		if got := cfg.AllowedSubtype(tt.sourceType, tt.subtype); got != tt.want {
			t.Errorf("AllowedSubtype(%q, %q) = %v, want %v", tt.sourceType, tt.subtype, got, tt.want)
		}
	}
}
