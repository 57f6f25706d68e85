package cfg

import (
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"
)

// Supported generative text providers.
const (
	ProviderClaude = "claude"
	ProviderGemini = "gemini"
)

// Config holds application-level settings. The go-core packages register
// their own configs alongside it.
type Config struct {
	DrainSeconds          int
	ShutdownBudgetSeconds int
	APIPort               int
	APIToken              string
	DatabaseURL           string
	DBMaxConns            int
	DBSlowQuery           time.Duration
	LLMProvider           string
	ClaudeAPIKey          string
	ClaudeModel           string
	GeminiAPIKey          string
	GeminiModel           string
	GenerationTimeout     time.Duration
	EphemerisEndpoint     string
	EphemerisFile         string
	EphemerisTimeout      time.Duration
	BatchInterval         time.Duration
	BatchBurst            int
	ScanTime              string
	ScanTimezone          string
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 60, "seconds to wait for in-flight requests to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 90, "total seconds for component shutdown after drain (1..300)")
	fs.IntVar(&c.APIPort, "http-port", 8080, "API listen TCP port (1..65535)")
	fs.StringVar(&c.APIToken, "api-token", "", "bearer token for API access, comma-separated to allow rotation")
	fs.StringVar(&c.DatabaseURL, "database-url", "", "PostgreSQL connection URL (empty = in-memory stores)")
	fs.IntVar(&c.DBMaxConns, "db-max-conns", 0, "maximum pooled database connections (0 = pgx default)")
	fs.DurationVar(&c.DBSlowQuery, "db-slow-query", 200*time.Millisecond, "log successful queries only when slower than this (0 logs every query)")
	fs.StringVar(&c.LLMProvider, "llm-provider", ProviderClaude, "generative text provider (claude|gemini)")
	fs.StringVar(&c.ClaudeAPIKey, "claude-api-key", "", "API key for the Claude provider")
	fs.StringVar(&c.ClaudeModel, "claude-model", "claude-3-5-haiku-latest", "Claude model used for alert copy")
	fs.StringVar(&c.GeminiAPIKey, "gemini-api-key", "", "API key for the Gemini provider")
	fs.StringVar(&c.GeminiModel, "gemini-model", "gemini-2.0-flash", "Gemini model used for alert copy")
	fs.DurationVar(&c.GenerationTimeout, "generation-timeout", 20*time.Second, "per-alert bound on the generative text call (1s..5m)")
	fs.StringVar(&c.EphemerisEndpoint, "ephemeris-endpoint", "", "base URL of the ephemeris positions service")
	fs.StringVar(&c.EphemerisFile, "ephemeris-file", "", "YAML file of dated position snapshots (alternative to ephemeris-endpoint)")
	fs.DurationVar(&c.EphemerisTimeout, "ephemeris-timeout", 10*time.Second, "bound on each ephemeris and natal chart fetch")
	fs.DurationVar(&c.BatchInterval, "batch-interval", time.Second, "minimum spacing between generation calls in a batch (0 disables pacing)")
	fs.IntVar(&c.BatchBurst, "batch-burst", 1, "generation calls allowed back to back before pacing applies")
	fs.StringVar(&c.ScanTime, "scan-time", "", "daily scan time as HH:MM (empty disables the scheduled scan)")
	fs.StringVar(&c.ScanTimezone, "scan-timezone", "UTC", "IANA time zone for scan-time")
}

// Validate checks all configuration fields for correctness.
// It returns every violation joined, or nil if all fields are valid.
func (c *Config) Validate() error {
	var errs []error

	// Drain and shutdown budgets
	if c.DrainSeconds <= 0 || c.DrainSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid DRAIN_SECONDS %d (must be 1..300)", c.DrainSeconds))
	}
	if c.ShutdownBudgetSeconds <= 0 || c.ShutdownBudgetSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid SHUTDOWN_BUDGET_SECONDS %d (must be 1..300)", c.ShutdownBudgetSeconds))
	}

	// Shutdown budget must be greater than drain time
	if c.ShutdownBudgetSeconds <= c.DrainSeconds {
		errs = append(errs, fmt.Errorf("SHUTDOWN_BUDGET_SECONDS %d must be greater than DRAIN_SECONDS %d", c.ShutdownBudgetSeconds, c.DrainSeconds))
	}

	// API port must be valid TCP port number
	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.APIPort))
	}

	if len(c.APITokens()) == 0 {
		errs = append(errs, errors.New("API_TOKEN is required"))
	}

	if c.DBMaxConns < 0 {
		errs = append(errs, fmt.Errorf("invalid DB_MAX_CONNS %d (must be >= 0)", c.DBMaxConns))
	}
	if c.DBSlowQuery < 0 {
		errs = append(errs, fmt.Errorf("invalid DB_SLOW_QUERY %s (must be >= 0)", c.DBSlowQuery))
	}

	// Provider credentials are only required for the selected provider
	switch c.LLMProvider {
	case ProviderClaude:
		if c.ClaudeAPIKey == "" {
			errs = append(errs, errors.New("CLAUDE_API_KEY is required when LLM_PROVIDER is claude"))
		}
		if c.ClaudeModel == "" {
			errs = append(errs, errors.New("CLAUDE_MODEL is required when LLM_PROVIDER is claude"))
		}
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			errs = append(errs, errors.New("GEMINI_API_KEY is required when LLM_PROVIDER is gemini"))
		}
		if c.GeminiModel == "" {
			errs = append(errs, errors.New("GEMINI_MODEL is required when LLM_PROVIDER is gemini"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid LLM_PROVIDER %q (must be claude or gemini)", c.LLMProvider))
	}

	if c.GenerationTimeout < time.Second || c.GenerationTimeout > 5*time.Minute {
		errs = append(errs, fmt.Errorf("invalid GENERATION_TIMEOUT %s (must be 1s..5m)", c.GenerationTimeout))
	}

	// Exactly one ephemeris source
	switch {
	case c.EphemerisEndpoint == "" && c.EphemerisFile == "":
		errs = append(errs, errors.New("one of EPHEMERIS_ENDPOINT or EPHEMERIS_FILE is required"))
	case c.EphemerisEndpoint != "" && c.EphemerisFile != "":
		errs = append(errs, errors.New("EPHEMERIS_ENDPOINT and EPHEMERIS_FILE are mutually exclusive"))
	}
	if c.EphemerisTimeout <= 0 {
		errs = append(errs, fmt.Errorf("invalid EPHEMERIS_TIMEOUT %s (must be > 0)", c.EphemerisTimeout))
	}

	if c.BatchInterval < 0 {
		errs = append(errs, fmt.Errorf("invalid BATCH_INTERVAL %s (must be >= 0)", c.BatchInterval))
	}
	if c.BatchBurst < 1 {
		errs = append(errs, fmt.Errorf("invalid BATCH_BURST %d (must be >= 1)", c.BatchBurst))
	}

	if c.ScanTime != "" {
		if _, err := time.Parse("15:04", c.ScanTime); err != nil {
			errs = append(errs, fmt.Errorf("invalid SCAN_TIME %q (must be HH:MM)", c.ScanTime))
		}
	}
	if _, err := time.LoadLocation(c.ScanTimezone); err != nil || c.ScanTimezone == "" {
		errs = append(errs, fmt.Errorf("invalid SCAN_TIMEZONE %q", c.ScanTimezone))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// APITokens splits APIToken on commas, dropping blanks.
func (c *Config) APITokens() []string {
	var out []string
	for _, t := range strings.Split(c.APIToken, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
