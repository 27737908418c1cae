// Package config loads and validates the application configuration from a
// YAML file, environment variables, and defaults, in that precedence
// order (environment wins, file overrides defaults).
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App       App       `mapstructure:"app"`
	Logging   Logging   `mapstructure:"logging"`
	CLI       CLI       `mapstructure:"cli"`
	Store     Store     `mapstructure:"store"`
	Ingest    Ingest    `mapstructure:"ingest"`
	Dedup     Dedup     `mapstructure:"dedup"`
	Chunking  Chunking  `mapstructure:"chunking"`
	Embedding Embedding `mapstructure:"embedding"`
	Index     Index     `mapstructure:"index"`
	ANN       ANN       `mapstructure:"ann"`
	Retrieval Retrieval `mapstructure:"retrieval"`
	LLM       LLM       `mapstructure:"llm"`
	Auth      Auth      `mapstructure:"auth"`
}

// App holds general application configuration.
type App struct {
	Debug      bool   `mapstructure:"debug"`
	LogLevel   string `mapstructure:"log_level"`
	DataDir    string `mapstructure:"data_dir"`
	ConfigFile string `mapstructure:"config_file"`
}

// Logging configures the structured logger.
type Logging struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "json" | "console"
}

// CLI configures the cobra command tree's defaults.
type CLI struct {
	DefaultFormat string `mapstructure:"default_format"`
	Interactive   bool   `mapstructure:"interactive"`
}

// Store holds the Record Store Adapter's connection settings.
type Store struct {
	ConnectionString string `mapstructure:"connection_string"`
	MaxConnections   int    `mapstructure:"max_connections"`
	IdleConnections  int    `mapstructure:"idle_connections"`
	TxTimeout        string `mapstructure:"tx_timeout"`
}

// Ingest holds the Incremental Pipeline Orchestrator's settings.
type Ingest struct {
	MaxWorkers       int    `mapstructure:"max_workers"`
	BatchSize        int    `mapstructure:"batch_size"`
	MaxPerInvocation int    `mapstructure:"max_per_invocation"`
	SourceDirectory  string `mapstructure:"source_directory"`
	WorkerTimeout    string `mapstructure:"worker_timeout"`
}

// Dedup holds the Deduplicator & Content Hasher's settings.
type Dedup struct {
	HashStrength        int     `mapstructure:"hash_strength"` // 128 | 160 | 256
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
	NearDuplicatePolicy string  `mapstructure:"near_duplicate_policy"` // "annotate" | "reject"
}

// Chunking holds the Chunker's settings.
type Chunking struct {
	Strategy     string `mapstructure:"strategy"`
	ChunkSize    int    `mapstructure:"chunk_size"`
	ChunkOverlap int    `mapstructure:"chunk_overlap"`
}

// Embedding holds the Embedder & Model Adapter's settings.
type Embedding struct {
	Backend            string `mapstructure:"backend"` // "managed" | "local" | "fallback"
	Dimensions         int    `mapstructure:"dimensions"`
	Managed            ManagedEmbeddingConfig `mapstructure:"managed"`
	Local              LocalEmbeddingConfig   `mapstructure:"local"`
}

// ManagedEmbeddingConfig configures the remote text-embedding backend.
type ManagedEmbeddingConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// LocalEmbeddingConfig configures the in-process / self-hosted backend.
type LocalEmbeddingConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
}

// Index holds the Vector Indexer's lifecycle settings.
type Index struct {
	Name       string `mapstructure:"name"`
	Dimensions int    `mapstructure:"dimensions"`
	Distance   string `mapstructure:"distance"` // "dot" (default) | "cosine" | "l2"
	BatchSize  int    `mapstructure:"batch_size"`
}

// ANN selects and configures the ANN provider backend.
type ANN struct {
	Provider string `mapstructure:"provider"` // "pgvector" | "local"
	LocalDB  string `mapstructure:"local_db"` // sqlite path when provider = "local"
}

// Retrieval holds the Hybrid Retrieval Engine's defaults.
type Retrieval struct {
	TopK               int     `mapstructure:"top_k"`
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
	VectorWeight       float64 `mapstructure:"vector_weight"`
	KeywordWeight      float64 `mapstructure:"keyword_weight"`
	RerankWeight       float64 `mapstructure:"rerank_weight"`
	MaxContextBytes    int     `mapstructure:"max_context_bytes"`
	BleveIndexPath     string  `mapstructure:"bleve_index_path"`
}

// LLM holds the out-of-scope generative client's settings.
type LLM struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// Auth holds the out-of-scope JWT verifier's settings.
type Auth struct {
	Issuer    string `mapstructure:"issuer"`
	Audience  string `mapstructure:"audience"`
	JWKSURL   string `mapstructure:"jwks_url"`
	HMACSecret string `mapstructure:"hmac_secret"`
}

var globalConfig *Config

// Load reads configuration from configFile (or the default search path),
// environment variables, and built-in defaults, in that precedence order,
// then validates the result. Subsequent calls return the cached config.
func Load(configFile string) (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Printf("warning: error loading .env file: %v\n", err)
		}
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
		viper.SetConfigName(".briefly")
		viper.SetConfigType("yaml")
	}

	setDefaults()
	bindEnvironmentVariables()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	globalConfig = config
	return config, nil
}

// Get returns the global configuration, loading it with defaults if it
// has not been loaded yet.
func Get() *Config {
	if globalConfig == nil {
		config, err := Load("")
		if err != nil {
			panic(fmt.Sprintf("failed to load configuration: %v", err))
		}
		return config
	}
	return globalConfig
}

// Reset clears the cached global configuration and viper's state, for
// test isolation.
func Reset() {
	globalConfig = nil
	viper.Reset()
}

func setDefaults() {
	viper.SetDefault("app.debug", false)
	viper.SetDefault("app.log_level", "info")
	viper.SetDefault("app.data_dir", ".briefly")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")

	viper.SetDefault("cli.default_format", "text")
	viper.SetDefault("cli.interactive", false)

	viper.SetDefault("store.max_connections", 25)
	viper.SetDefault("store.idle_connections", 5)
	viper.SetDefault("store.tx_timeout", "15s")

	viper.SetDefault("ingest.max_workers", 4)
	viper.SetDefault("ingest.batch_size", 50)
	viper.SetDefault("ingest.max_per_invocation", 1000)
	viper.SetDefault("ingest.source_directory", "./data/incoming")
	viper.SetDefault("ingest.worker_timeout", "30s")

	viper.SetDefault("dedup.hash_strength", 128)
	viper.SetDefault("dedup.similarity_threshold", 0.8)
	viper.SetDefault("dedup.near_duplicate_policy", "annotate")

	viper.SetDefault("chunking.strategy", "sentence")
	viper.SetDefault("chunking.chunk_size", 500)
	viper.SetDefault("chunking.chunk_overlap", 50)

	viper.SetDefault("embedding.backend", "fallback")
	viper.SetDefault("embedding.dimensions", 768)
	viper.SetDefault("embedding.managed.model", "gemini-embedding-001")
	viper.SetDefault("embedding.local.model", "text-embedding-3-small")

	viper.SetDefault("index.name", "articles-v1")
	viper.SetDefault("index.dimensions", 768)
	viper.SetDefault("index.distance", "dot")
	viper.SetDefault("index.batch_size", 50)

	viper.SetDefault("ann.provider", "local")
	viper.SetDefault("ann.local_db", ".briefly/index.db")

	viper.SetDefault("retrieval.top_k", 10)
	viper.SetDefault("retrieval.similarity_threshold", 0.0)
	viper.SetDefault("retrieval.vector_weight", 0.6)
	viper.SetDefault("retrieval.keyword_weight", 0.3)
	viper.SetDefault("retrieval.rerank_weight", 0.1)
	viper.SetDefault("retrieval.max_context_bytes", 4000)
	viper.SetDefault("retrieval.bleve_index_path", ".briefly/bleve")

	viper.SetDefault("llm.model", "gemini-flash-lite-latest")
}

func bindEnvironmentVariables() {
	bindings := map[string]string{
		"store.connection_string": "DATABASE_URL",
		"embedding.managed.api_key": "GEMINI_API_KEY",
		"embedding.local.api_key":   "OPENAI_API_KEY",
		"llm.api_key":               "GEMINI_API_KEY",
		"auth.hmac_secret":          "AUTH_HMAC_SECRET",
		"app.debug":                 "BRIEFLY_DEBUG",
	}
	for key, env := range bindings {
		_ = viper.BindEnv(key, env)
	}
}

// validateConfig rejects configurations that would violate a core
// invariant before the pipeline ever runs: weights must not exceed 1.0
// (spec.md §4.8), dedup thresholds and chunk geometry must be sane, and
// the distance metric must be one the indexer understands (spec.md §9's
// Open Question: refuse mixing distance metrics).
func validateConfig(config *Config) error {
	sum := config.Retrieval.VectorWeight + config.Retrieval.KeywordWeight + config.Retrieval.RerankWeight
	if sum > 1.0001 {
		return fmt.Errorf("retrieval weights must sum to <= 1.0, got %.3f", sum)
	}
	if config.Dedup.SimilarityThreshold < 0 || config.Dedup.SimilarityThreshold > 1 {
		return fmt.Errorf("dedup.similarity_threshold must be in [0,1], got %.3f", config.Dedup.SimilarityThreshold)
	}
	switch config.Dedup.HashStrength {
	case 128, 160, 256:
	default:
		return fmt.Errorf("dedup.hash_strength must be 128, 160, or 256, got %d", config.Dedup.HashStrength)
	}
	if config.Chunking.ChunkOverlap >= config.Chunking.ChunkSize && config.Chunking.ChunkSize > 0 {
		return fmt.Errorf("chunking.chunk_overlap must be smaller than chunk_size")
	}
	switch config.Index.Distance {
	case "dot", "cosine", "l2":
	default:
		return fmt.Errorf("index.distance must be one of dot, cosine, l2, got %q", config.Index.Distance)
	}
	if config.Ingest.MaxWorkers <= 0 {
		return fmt.Errorf("ingest.max_workers must be positive")
	}
	return nil
}

// ParseDuration parses one of the config package's duration strings,
// falling back to fallback on a parse error.
func ParseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
