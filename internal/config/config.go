package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Server
	Host        string `json:"host"`
	Port        int    `json:"port"`
	Environment string `json:"environment"`
	APIPrefix   string `json:"api_prefix"`
	LogLevel    string `json:"log_level"`

	// CORS
	CORSOrigins []string `json:"cors_origins"`

	// Auth
	APIKeyHeader string   `json:"api_key_header"`
	APIKeys      []string `json:"api_keys"`
	EnableAuth   bool     `json:"enable_auth"`

	// Rate Limiting
	RateLimitPerMinute int `json:"rate_limit_per_minute"`

	// Generator
	LLMProvider              string `json:"llm_provider"` // "anthropic" | "openai" | "none"
	LLMAPIKey                string `json:"llm_api_key"`
	LLMModel                 string `json:"llm_model"`
	LLMBaseURL               string `json:"llm_base_url"` // proxy or OpenAI-compatible local server
	LLMMaxTokens             int    `json:"llm_max_tokens"`
	GeneratorTimeout         int    `json:"generator_timeout"` // seconds
	MaxConcurrentGenerations int    `json:"max_concurrent_generations"`

	// Executor
	Executor     string `json:"executor"`      // "duckdb" | "postgres" | "bigquery"
	QueryTimeout int    `json:"query_timeout"` // seconds
	PostgresURL  string `json:"postgres_url"`
	PGMaxConns   int    `json:"pg_max_conns"`
	DuckDBPath   string `json:"duckdb_path"`

	// BigQuery
	GCPProjectID                 string `json:"gcp_project_id"`
	BigQueryDataset              string `json:"bigquery_dataset"`
	GoogleApplicationCredentials string `json:"google_application_credentials"`
	BigQueryLocation             string `json:"bigquery_location"`
	MaxQueryBytesProcessed       int64  `json:"max_query_bytes_processed"`

	// Security
	MaxQuestionLength  int      `json:"max_question_length"`
	EnableDataMasking  bool     `json:"enable_data_masking"`
	MaskedColumns      []string `json:"masked_columns"`
	EnablePIIDetection bool     `json:"enable_pii_detection"`
	PIIKeywords        []string `json:"pii_keywords"`
	EnableAuditLogging bool     `json:"enable_audit_logging"`

	// Sessions
	SessionBackend string `json:"session_backend"` // "memory" | "redis"
	SessionTTL     int    `json:"session_ttl"`     // seconds
	RedisAddress   string `json:"redis_address"`
	RedisPassword  string `json:"redis_password"`
	RedisDB        int    `json:"redis_db"`
	RedisKeyPrefix string `json:"redis_key_prefix"`

	// Elasticsearch query history
	HistoryEnabled           bool   `json:"history_enabled"`
	ElasticsearchHost        string `json:"elasticsearch_host"`
	ElasticsearchPort        int    `json:"elasticsearch_port"`
	ElasticsearchScheme      string `json:"elasticsearch_scheme"`
	ElasticsearchUser        string `json:"elasticsearch_user"`
	ElasticsearchPassword    string `json:"elasticsearch_password"`
	ElasticsearchVerifyCerts bool   `json:"elasticsearch_verify_certs"`
	ElasticsearchMaxRetries  int    `json:"elasticsearch_max_retries"`
	HistoryIndex             string `json:"history_index"`
}

func Load() (*Config, error) {
	cfg := &Config{
		Host:                     DefaultHost,
		Port:                     DefaultPort,
		Environment:              DefaultEnvironment,
		APIPrefix:                DefaultAPIPrefix,
		LogLevel:                 DefaultLogLevel,
		CORSOrigins:              DefaultCORSOrigins,
		APIKeyHeader:             "X-API-Key",
		EnableAuth:               true,
		RateLimitPerMinute:       DefaultRateLimitPerMinute,
		LLMProvider:              DefaultLLMProvider,
		LLMMaxTokens:             DefaultLLMMaxTokens,
		GeneratorTimeout:         DefaultGeneratorTimeout,
		MaxConcurrentGenerations: DefaultMaxGenerations,
		Executor:                 DefaultExecutor,
		QueryTimeout:             DefaultQueryTimeout,
		PGMaxConns:               DefaultPGMaxConns,
		DuckDBPath:               DefaultDuckDBPath,
		BigQueryLocation:         DefaultBigQueryLocation,
		MaxQueryBytesProcessed:   DefaultMaxQueryBytesProcessed,
		MaxQuestionLength:        DefaultMaxQuestionLength,
		EnableDataMasking:        true,
		MaskedColumns:            DefaultMaskedColumns,
		EnablePIIDetection:       true,
		PIIKeywords:              DefaultPIIKeywords,
		EnableAuditLogging:       true,
		SessionBackend:           DefaultSessionBackend,
		SessionTTL:               DefaultSessionTTL,
		RedisAddress:             DefaultRedisAddress,
		RedisKeyPrefix:           DefaultRedisKeyPrefix,
		ElasticsearchPort:        DefaultElasticsearchPort,
		ElasticsearchScheme:      DefaultElasticsearchScheme,
		ElasticsearchVerifyCerts: true,
		ElasticsearchMaxRetries:  DefaultElasticsearchMaxRetries,
		HistoryIndex:             DefaultHistoryIndex,
	}

	// Load from JSON config file if specified
	if path := getEnv("ASKQL_CONFIG", ""); path != "" {
		if err := loadJSON(path, cfg); err != nil {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
	}

	// Environment overrides
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings that cannot start the service.
func (c *Config) Validate() error {
	switch c.Executor {
	case "duckdb", "postgres", "bigquery":
	default:
		return fmt.Errorf("unknown executor %q", c.Executor)
	}
	switch c.LLMProvider {
	case "anthropic", "openai", "none":
	default:
		return fmt.Errorf("unknown llm provider %q", c.LLMProvider)
	}
	switch c.SessionBackend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown session backend %q", c.SessionBackend)
	}
	if c.Executor == "postgres" && c.PostgresURL == "" {
		return fmt.Errorf("executor postgres requires postgres_url")
	}
	if c.Executor == "bigquery" && (c.GCPProjectID == "" || c.BigQueryDataset == "") {
		return fmt.Errorf("executor bigquery requires gcp_project_id and bigquery_dataset")
	}
	return nil
}

// Seconds converts a seconds setting to a duration.
func Seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// Addr is the listen address of the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func loadJSON(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, cfg)
}

func applyEnvOverrides(cfg *Config) {
	setString(&cfg.Host, "ASKQL_HOST")
	setInt(&cfg.Port, "ASKQL_PORT")
	setString(&cfg.Environment, "ASKQL_ENV")
	setString(&cfg.APIPrefix, "ASKQL_API_PREFIX")
	setString(&cfg.LogLevel, "ASKQL_LOG_LEVEL")
	setList(&cfg.CORSOrigins, "ASKQL_CORS_ORIGINS")
	setList(&cfg.APIKeys, "ASKQL_API_KEYS")
	setBool(&cfg.EnableAuth, "ENABLE_AUTH")
	setInt(&cfg.RateLimitPerMinute, "RATE_LIMIT_PER_MINUTE")

	setString(&cfg.LLMProvider, "ASKQL_LLM_PROVIDER")
	setString(&cfg.LLMModel, "ASKQL_LLM_MODEL")
	setString(&cfg.LLMBaseURL, "ASKQL_LLM_BASE_URL")
	setInt(&cfg.LLMMaxTokens, "ASKQL_LLM_MAX_TOKENS")
	setInt(&cfg.GeneratorTimeout, "ASKQL_GENERATOR_TIMEOUT")
	setInt(&cfg.MaxConcurrentGenerations, "ASKQL_MAX_CONCURRENT_GENERATIONS")
	// provider keys are read under their usual names
	switch cfg.LLMProvider {
	case "anthropic":
		setString(&cfg.LLMAPIKey, "ANTHROPIC_API_KEY")
		if cfg.LLMBaseURL == "" {
			setString(&cfg.LLMBaseURL, "ANTHROPIC_BASE_URL")
		}
	case "openai":
		setString(&cfg.LLMAPIKey, "OPENAI_API_KEY")
		if cfg.LLMBaseURL == "" {
			setString(&cfg.LLMBaseURL, "OPENAI_BASE_URL")
		}
	}
	setString(&cfg.LLMAPIKey, "ASKQL_LLM_API_KEY")

	setString(&cfg.Executor, "ASKQL_EXECUTOR")
	setInt(&cfg.QueryTimeout, "ASKQL_QUERY_TIMEOUT")
	setString(&cfg.PostgresURL, "DATABASE_URL")
	setInt(&cfg.PGMaxConns, "ASKQL_PG_MAX_CONNS")
	setString(&cfg.DuckDBPath, "ASKQL_DUCKDB_PATH")

	setString(&cfg.GCPProjectID, "GCP_PROJECT_ID")
	setString(&cfg.BigQueryDataset, "BIGQUERY_DATASET")
	setString(&cfg.GoogleApplicationCredentials, "GOOGLE_APPLICATION_CREDENTIALS")
	setString(&cfg.BigQueryLocation, "BIGQUERY_LOCATION")
	if v := getEnv("MAX_QUERY_BYTES_PROCESSED", ""); v != "" {
		if b, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.MaxQueryBytesProcessed = b
		}
	}

	setInt(&cfg.MaxQuestionLength, "ASKQL_MAX_QUESTION_LENGTH")
	setBool(&cfg.EnableDataMasking, "ENABLE_DATA_MASKING")
	setList(&cfg.MaskedColumns, "ASKQL_MASKED_COLUMNS")
	setBool(&cfg.EnablePIIDetection, "ENABLE_PII_DETECTION")
	setBool(&cfg.EnableAuditLogging, "ENABLE_AUDIT_LOGGING")

	setString(&cfg.SessionBackend, "ASKQL_SESSION_BACKEND")
	setInt(&cfg.SessionTTL, "ASKQL_SESSION_TTL")
	setString(&cfg.RedisAddress, "REDIS_ADDRESS")
	setString(&cfg.RedisPassword, "REDIS_PASSWORD")
	setInt(&cfg.RedisDB, "REDIS_DB")

	setBool(&cfg.HistoryEnabled, "ELASTICSEARCH_ENABLED")
	setString(&cfg.ElasticsearchHost, "ELASTICSEARCH_HOST")
	setInt(&cfg.ElasticsearchPort, "ELASTICSEARCH_PORT")
	setString(&cfg.ElasticsearchScheme, "ELASTICSEARCH_SCHEME")
	setString(&cfg.ElasticsearchUser, "ELASTICSEARCH_USER")
	setString(&cfg.ElasticsearchPassword, "ELASTICSEARCH_PASSWORD")
	setString(&cfg.HistoryIndex, "ASKQL_HISTORY_INDEX")
}

func setString(dst *string, key string) {
	if v := getEnv(key, ""); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := getEnv(key, ""); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := getEnv(key, ""); v != "" {
		*dst = v == "true" || v == "1"
	}
}

func setList(dst *[]string, key string) {
	if v := getEnv(key, ""); v != "" {
		var out []string
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		*dst = out
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}
