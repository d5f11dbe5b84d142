// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Keep fields unexported where possible and use functional options.
// - Provide New(...) initializer to build a Config with defaults.
// - External errors must be wrapped via this package's error helpers.
package config

// Store kinds accepted by StoreKind.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// StoreKind selects the record store backend: memory or sqlite.
	StoreKind string `koanf:"store_kind"`

	// SQLitePath is the database file used when StoreKind is sqlite.
	SQLitePath string `koanf:"sqlite_path"`

	// DiligenceBaseURL is the diligence worker endpoint base.
	DiligenceBaseURL string `koanf:"diligence_base_url"`

	// DiligencePollIntervalMS sets the delay between status polls.
	DiligencePollIntervalMS int `koanf:"diligence_poll_interval_ms"`

	// DiligenceMaxPolls bounds the number of polls per run.
	DiligenceMaxPolls int `koanf:"diligence_max_polls"`

	// DiligenceMaxTransientFailures bounds consecutive poll failures
	// tolerated before the run is declared errored.
	DiligenceMaxTransientFailures int `koanf:"diligence_max_transient_failures"`

	// DiligenceRequestTimeoutMS bounds each outbound worker request.
	DiligenceRequestTimeoutMS int `koanf:"diligence_request_timeout_ms"`

	// Risk classification thresholds. Carried over from product as given;
	// see the risk package for how they are applied.
	RiskNeutralScore float64 `koanf:"risk_neutral_score"`
	RiskHighScore    float64 `koanf:"risk_high_score"`
	RiskMediumScore  float64 `koanf:"risk_medium_score"`
	RiskHighFlags    int     `koanf:"risk_high_flags"`
	RiskMediumFlags  int     `koanf:"risk_medium_flags"`

	// View model defaulting policy overrides.
	DefaultCompanyName  string   `koanf:"default_company_name"`
	DefaultFounderName  string   `koanf:"default_founder_name"`
	DefaultCompanyStage string   `koanf:"default_company_stage"`
	DefaultSectors      []string `koanf:"default_sectors"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:                      "info",
		Addr:                          ":9080",
		StoreKind:                     StoreMemory,
		SQLitePath:                    "dealflow.db",
		DiligenceBaseURL:              "http://localhost:9090",
		DiligencePollIntervalMS:       2000,
		DiligenceMaxPolls:             150,
		DiligenceMaxTransientFailures: 5,
		DiligenceRequestTimeoutMS:     10_000,
		RiskNeutralScore:              5,
		RiskHighScore:                 4,
		RiskMediumScore:               7,
		RiskHighFlags:                 3,
		RiskMediumFlags:               1,
	}
}
