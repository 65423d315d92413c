package config

const (
	DefaultHost        = "0.0.0.0"
	DefaultPort        = 8000
	DefaultEnvironment = "development"
	DefaultAPIPrefix   = "/api/v1"
	DefaultLogLevel    = "info"

	DefaultRateLimitPerMinute = 60

	DefaultLLMProvider       = "anthropic"
	DefaultLLMMaxTokens      = 1024
	DefaultGeneratorTimeout  = 30 // seconds
	DefaultMaxGenerations    = 4
	DefaultMaxQuestionLength = 2000

	DefaultExecutor     = "duckdb"
	DefaultDuckDBPath   = "askql.duckdb"
	DefaultQueryTimeout = 30 // seconds
	DefaultPGMaxConns   = 10

	DefaultBigQueryLocation       = "US"
	DefaultMaxQueryBytesProcessed = 10_000_000_000 // 10GB

	DefaultElasticsearchPort       = 9200
	DefaultElasticsearchScheme     = "http"
	DefaultElasticsearchMaxRetries = 3
	DefaultHistoryIndex            = "askql-history"

	DefaultSessionBackend = "memory"
	DefaultSessionTTL     = 900 // seconds
	DefaultRedisAddress   = "localhost:6379"
	DefaultRedisKeyPrefix = "askql:pending:"

	DefaultCORSMaxAge = 300
)

var DefaultCORSOrigins = []string{
	"http://localhost:3000",
	"http://localhost:8080",
}

// DefaultMaskedColumns are masked in every result set.
var DefaultMaskedColumns = []string{"email"}

var DefaultPIIKeywords = []string{
	"password", "ssn", "social security", "credit card",
	"bank account", "secret", "private key",
	"access token", "api key",
}
