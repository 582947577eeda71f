package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Weaviate   WeaviateConfig   `yaml:"weaviate" mapstructure:"weaviate"`
	Neo4j      Neo4jConfig      `yaml:"neo4j" mapstructure:"neo4j"`
	Postgres   PostgresConfig   `yaml:"postgres" mapstructure:"postgres"`
	Cascade    CascadeConfig    `yaml:"cascade" mapstructure:"cascade"`
	Fusion     FusionConfig     `yaml:"fusion" mapstructure:"fusion"`
	Synthesis  SynthesisConfig  `yaml:"synthesis" mapstructure:"synthesis"`
	Confidence ConfidenceConfig `yaml:"confidence" mapstructure:"confidence"`
	Audit      AuditConfig      `yaml:"audit" mapstructure:"audit"`
	Resilience ResilienceConfig `yaml:"resilience" mapstructure:"resilience"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// AnthropicConfig holds Anthropic API settings for answer synthesis.
type AnthropicConfig struct {
	Key               string  `yaml:"key" mapstructure:"key"`
	Model             string  `yaml:"model" mapstructure:"model"`
	MaxTokens         int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	RequestsPerMinute float64 `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
}

// WeaviateConfig holds connection and query settings for the hybrid search
// backend serving tiers 1 and 2.
type WeaviateConfig struct {
	Host         string  `yaml:"host" mapstructure:"host"`
	Scheme       string  `yaml:"scheme" mapstructure:"scheme"`
	APIKey       string  `yaml:"api_key" mapstructure:"api_key"`
	Class        string  `yaml:"class" mapstructure:"class"`
	Alpha        float64 `yaml:"alpha" mapstructure:"alpha"`                 // hybrid blend, 0 = pure keyword, 1 = pure vector
	BroadenAlpha float64 `yaml:"broaden_alpha" mapstructure:"broaden_alpha"` // blend used by the broadened tier 2 pass
}

// Neo4jConfig holds connection settings for the graph backend serving tier 3.
type Neo4jConfig struct {
	URI           string `yaml:"uri" mapstructure:"uri"`
	Username      string `yaml:"username" mapstructure:"username"`
	Password      string `yaml:"password" mapstructure:"password"`
	Database      string `yaml:"database" mapstructure:"database"`
	FulltextIndex string `yaml:"fulltext_index" mapstructure:"fulltext_index"`
	MaxDepth      int    `yaml:"max_depth" mapstructure:"max_depth"` // relationship traversal bound
}

// PostgresConfig holds settings for the relational full-text backend serving
// tier 4 and, when selected, the audit store.
type PostgresConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SearchLang  string `yaml:"search_lang" mapstructure:"search_lang"` // default ts config: "english" or "french"
}

// CascadeConfig configures tier escalation. PolicyFile, when set, overrides
// these values from a standalone yaml policy.
type CascadeConfig struct {
	AcceptScore       float64 `yaml:"accept_score" mapstructure:"accept_score"`
	MinSufficientHits int     `yaml:"min_sufficient_hits" mapstructure:"min_sufficient_hits"`
	PerTierTimeoutSec int     `yaml:"per_tier_timeout_secs" mapstructure:"per_tier_timeout_secs"`
	MaxHitsPerTier    int     `yaml:"max_hits_per_tier" mapstructure:"max_hits_per_tier"`
	ParallelFallback  bool    `yaml:"parallel_fallback" mapstructure:"parallel_fallback"`
	BreadthBoost      float64 `yaml:"breadth_boost" mapstructure:"breadth_boost"`
	PolicyFile        string  `yaml:"policy_file" mapstructure:"policy_file"`
}

// FusionConfig configures context assembly.
type FusionConfig struct {
	BudgetChars int `yaml:"budget_chars" mapstructure:"budget_chars"`
}

// SynthesisConfig configures the single-call answer generation.
type SynthesisConfig struct {
	TimeoutSecs  int  `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RetryOnParse bool `yaml:"retry_on_parse" mapstructure:"retry_on_parse"`
}

// ConfidenceConfig holds the documented confidence grading thresholds.
type ConfidenceConfig struct {
	HighScoreBar float64 `yaml:"high_score_bar" mapstructure:"high_score_bar"` // min top evidence score for High
	LowScoreBar  float64 `yaml:"low_score_bar" mapstructure:"low_score_bar"`   // below this, Low regardless
}

// AuditConfig configures the query audit log.
type AuditConfig struct {
	Enabled     bool   `yaml:"enabled" mapstructure:"enabled"`
	Driver      string `yaml:"driver" mapstructure:"driver"` // "postgres" or "sqlite"
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// ResilienceConfig tunes retry and circuit breaker behavior for backend calls.
type ResilienceConfig struct {
	RetryMaxAttempts        int `yaml:"retry_max_attempts" mapstructure:"retry_max_attempts"`
	RetryInitialBackoffMs   int `yaml:"retry_initial_backoff_ms" mapstructure:"retry_initial_backoff_ms"`
	RetryMaxBackoffMs       int `yaml:"retry_max_backoff_ms" mapstructure:"retry_max_backoff_ms"`
	BreakerFailureThreshold int `yaml:"breaker_failure_threshold" mapstructure:"breaker_failure_threshold"`
	BreakerResetTimeoutSecs int `yaml:"breaker_reset_timeout_secs" mapstructure:"breaker_reset_timeout_secs"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("STATUTEQA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 2048)
	v.SetDefault("anthropic.requests_per_minute", 60)
	v.SetDefault("weaviate.host", "localhost:8080")
	v.SetDefault("weaviate.scheme", "http")
	v.SetDefault("weaviate.class", "Provision")
	v.SetDefault("weaviate.alpha", 0.5)
	v.SetDefault("weaviate.broaden_alpha", 0.75)
	v.SetDefault("neo4j.uri", "neo4j://localhost:7687")
	v.SetDefault("neo4j.database", "neo4j")
	v.SetDefault("neo4j.fulltext_index", "provision_text")
	v.SetDefault("neo4j.max_depth", 2)
	v.SetDefault("postgres.search_lang", "english")
	v.SetDefault("cascade.accept_score", 0.55)
	v.SetDefault("cascade.min_sufficient_hits", 3)
	v.SetDefault("cascade.per_tier_timeout_secs", 8)
	v.SetDefault("cascade.max_hits_per_tier", 10)
	v.SetDefault("cascade.parallel_fallback", false)
	v.SetDefault("cascade.breadth_boost", 1.5)
	v.SetDefault("fusion.budget_chars", 24000)
	v.SetDefault("synthesis.timeout_secs", 45)
	v.SetDefault("synthesis.retry_on_parse", true)
	v.SetDefault("confidence.high_score_bar", 0.75)
	v.SetDefault("confidence.low_score_bar", 0.35)
	v.SetDefault("audit.enabled", false)
	v.SetDefault("audit.driver", "sqlite")
	v.SetDefault("audit.sqlite_path", "statuteqa_audit.db")
	v.SetDefault("resilience.retry_max_attempts", 3)
	v.SetDefault("resilience.retry_initial_backoff_ms", 500)
	v.SetDefault("resilience.retry_max_backoff_ms", 30000)
	v.SetDefault("resilience.breaker_failure_threshold", 5)
	v.SetDefault("resilience.breaker_reset_timeout_secs", 30)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the fields required for the given mode are present
// and that tunables are inside their legal ranges. Modes: "answer", "serve",
// "status".
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "answer", "serve":
		if c.Anthropic.Key == "" {
			problems = append(problems, "anthropic.key is required")
		}
	case "status":
		// Status only pings backends; no generation credentials needed.
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if mode == "serve" && c.Server.Port <= 0 {
		problems = append(problems, "server.port must be > 0")
	}

	if c.Cascade.AcceptScore < 0 || c.Cascade.AcceptScore > 1 {
		problems = append(problems, "cascade.accept_score must be between 0 and 1")
	}
	if c.Cascade.MinSufficientHits < 1 {
		problems = append(problems, "cascade.min_sufficient_hits must be >= 1")
	}
	if c.Cascade.MaxHitsPerTier < 1 || c.Cascade.MaxHitsPerTier > 100 {
		problems = append(problems, "cascade.max_hits_per_tier must be between 1 and 100")
	}
	if c.Weaviate.Alpha < 0 || c.Weaviate.Alpha > 1 || c.Weaviate.BroadenAlpha < 0 || c.Weaviate.BroadenAlpha > 1 {
		problems = append(problems, "weaviate alpha values must be between 0 and 1")
	}
	if c.Confidence.LowScoreBar >= c.Confidence.HighScoreBar {
		problems = append(problems, "confidence.low_score_bar must be below confidence.high_score_bar")
	}
	if c.Fusion.BudgetChars < 1000 {
		problems = append(problems, "fusion.budget_chars must be >= 1000")
	}
	if c.Audit.Enabled {
		switch c.Audit.Driver {
		case "postgres":
			if c.Audit.DatabaseURL == "" && c.Postgres.DatabaseURL == "" {
				problems = append(problems, "audit.database_url is required when audit.driver is postgres")
			}
		case "sqlite":
			if c.Audit.SQLitePath == "" {
				problems = append(problems, "audit.sqlite_path is required when audit.driver is sqlite")
			}
		default:
			problems = append(problems, "audit.driver must be postgres or sqlite")
		}
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
