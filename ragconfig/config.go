// Package ragconfig holds the recognised configuration keys from spec.md §6,
// loaded from environment variables. Structure and the getEnv/getEnvInt
// loader helpers are grounded on the teacher pack's platform/config.Load()
// convention (typed sub-structs per concern, defaults baked into Load).
package ragconfig

import (
	"os"
	"strconv"
	"time"
)

// Strategy is one of the seven dispatcher routing strategies (spec.md §4.4).
type Strategy string

const (
	StrategyPrimaryOnly      Strategy = "PRIMARY_ONLY"
	StrategyFailover         Strategy = "FAILOVER"
	StrategyRoundRobin       Strategy = "ROUND_ROBIN"
	StrategySpecialized      Strategy = "SPECIALIZED"
	StrategyDualVerification Strategy = "DUAL_VERIFICATION"
	StrategySmartRouting     Strategy = "SMART_ROUTING"
	StrategyModelBased       Strategy = "MODEL_BASED"
)

// ProviderConfig registers one dispatcher provider (spec.md §6 table).
type ProviderConfig struct {
	Name               string
	Kind               string // "openai_compat" or "bedrock"
	URL                string
	Key                string
	Models             []string
	EmbeddingModel     string
	EmbeddingDimension int
}

// DatabaseConfig holds the Postgres connection settings for store/pgstore and
// library/pgregistry.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// DSN returns a postgres:// connection string.
func (c DatabaseConfig) DSN() string {
	return "postgres://" + c.User + ":" + c.Password + "@" + c.Host + ":" +
		strconv.Itoa(c.Port) + "/" + c.Database + "?sslmode=" + c.SSLMode
}

// SplitterConfig holds Phase B chunk-sizing knobs (spec.md §6).
type SplitterConfig struct {
	ChunkIdealTokens        int
	ChunkMinTokens          int
	SummaryThresholdTokens  int
	SummaryMaxTokens        int
}

// Config is the complete recognised configuration surface.
type Config struct {
	Providers     []ProviderConfig
	Strategy      Strategy
	MaxRetries    int
	TimeoutPerAttempt time.Duration
	BatchSize     int
	Database      DatabaseConfig
	Splitter      SplitterConfig
}

// Load builds a Config from environment variables, applying the spec.md §6
// defaults for every key it does not find set. It reads no provider
// registrations from the environment: Providers is left empty, and a caller
// that needs providers fills []ProviderConfig itself.
func Load() *Config {
	cfg := &Config{
		Strategy:          Strategy(getEnv("RAG_STRATEGY", string(StrategyFailover))),
		MaxRetries:        getEnvInt("RAG_MAX_RETRIES", 3),
		TimeoutPerAttempt: time.Duration(getEnvInt("RAG_TIMEOUT_SECONDS", 30)) * time.Second,
		BatchSize:         getEnvInt("RAG_BATCH_SIZE", 5),
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			Database: getEnv("DB_NAME", "stratarag"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Splitter: SplitterConfig{
			ChunkIdealTokens:       getEnvInt("RAG_CHUNK_IDEAL_TOKENS", 512),
			ChunkMinTokens:         getEnvInt("RAG_CHUNK_MIN_TOKENS", 256),
			SummaryThresholdTokens: getEnvInt("RAG_SUMMARY_THRESHOLD_TOKENS", 2500),
			SummaryMaxTokens:       getEnvInt("RAG_SUMMARY_MAX_TOKENS", 2048),
		},
	}
	if cfg.BatchSize > 10 {
		cfg.BatchSize = 10
	}
	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
