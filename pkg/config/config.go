package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds application configuration
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Storage    StorageConfig
	Assembly   AssemblyAIConfig
	LLM        LLMConfig
	Embedding  EmbeddingConfig
	Pipeline   PipelineConfig
	HTTPClient HTTPClientConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port            string
	Host            string
	Environment     string
	AllowedOrigins  []string
	ShutdownTimeout int
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host        string
	Port        string
	User        string
	Password    string
	Name        string
	SSLMode     string
	MaxConns    int
	MinConns    int
	AutoMigrate bool
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	DB       int
}

// StorageConfig holds storage configuration
type StorageConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	UseSSL          bool
	PublicURL       string
}

// AssemblyAIConfig holds speech-to-text configuration
type AssemblyAIConfig struct {
	APIKey       string
	BaseURL      string
	LanguageCode string
	PollInterval time.Duration
	MaxPolls     int
}

// LLMConfig holds the OpenAI-compatible completion endpoint configuration
type LLMConfig struct {
	APIKey           string
	BaseURL          string
	FastModel        string
	ChatModel        string
	LongContextModel string
	Timeout          time.Duration
}

// EmbeddingConfig holds the embedding endpoint configuration
type EmbeddingConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	BatchSize int
}

// HTTPClientConfig is used for transcript and caption downloads
type HTTPClientConfig struct {
	Timeout   time.Duration
	UserAgent string
}

// PipelineConfig holds enrichment tuning, loaded with envconfig under PIPELINE_
type PipelineConfig struct {
	Concurrency             int           `envconfig:"CONCURRENCY" default:"5"`
	RunTimeout              time.Duration `envconfig:"RUN_TIMEOUT" default:"45m"`
	RunRetries              int           `envconfig:"RUN_RETRIES" default:"1"`
	QueueSize               int           `envconfig:"QUEUE_SIZE" default:"500"`
	Workers                 int           `envconfig:"WORKERS" default:"5"`
	FeedCacheTTL            time.Duration `envconfig:"FEED_CACHE_TTL" default:"10m"`
	SummaryTokenBudget      int           `envconfig:"SUMMARY_TOKEN_BUDGET" default:"100000"`
	FullContextTokenCeiling int           `envconfig:"FULL_CONTEXT_TOKEN_CEILING" default:"100000"`
	ChunkSize               int           `envconfig:"CHUNK_SIZE" default:"1000"`
	ParagraphGapSeconds     float64       `envconfig:"PARAGRAPH_GAP_SECONDS" default:"8"`
	TopicMatchThreshold     float64       `envconfig:"TOPIC_MATCH_THRESHOLD" default:"0.85"`
	RetrievalThreshold      float64       `envconfig:"RETRIEVAL_THRESHOLD" default:"0.3"`
	RetrievalCount          int           `envconfig:"RETRIEVAL_COUNT" default:"10"`
	RetrievalMinContent     int           `envconfig:"RETRIEVAL_MIN_CONTENT" default:"50"`
	Quality                 QualityConfig `envconfig:"QUALITY"`
}

// QualityConfig holds the transcript quality gate thresholds
type QualityConfig struct {
	MinChars           int     `envconfig:"MIN_CHARS" default:"600"`
	MinWords           int     `envconfig:"MIN_WORDS" default:"120"`
	RepetitionMinWords int     `envconfig:"REPETITION_MIN_WORDS" default:"200"`
	MinUniqueRatio     float64 `envconfig:"MIN_UNIQUE_RATIO" default:"0.12"`
	LongEpisodeSeconds float64 `envconfig:"LONG_EPISODE_SECONDS" default:"480"`
	WordsPerSecond     float64 `envconfig:"WORDS_PER_SECOND" default:"0.22"`
	MinCoverage        float64 `envconfig:"MIN_COVERAGE" default:"0.2"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables or defaults")
	}

	config := &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			Host:            getEnv("HOST", "0.0.0.0"),
			Environment:     getEnv("ENVIRONMENT", "development"),
			AllowedOrigins:  getEnvAsSlice("ALLOWED_ORIGINS", "http://localhost:3000"),
			ShutdownTimeout: getEnvAsInt("SHUTDOWN_TIMEOUT", 10),
		},
		Database: DatabaseConfig{
			Host:        getEnv("DB_HOST", "localhost"),
			Port:        getEnv("DB_PORT", "5432"),
			User:        getEnv("DB_USER", "postgres"),
			Password:    getEnv("DB_PASSWORD", "postgres"),
			Name:        getEnv("DB_NAME", "podcast_assistant"),
			SSLMode:     getEnv("DB_SSLMODE", "disable"),
			MaxConns:    getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:    getEnvAsInt("DB_MIN_CONNS", 5),
			AutoMigrate: getEnvAsBool("DB_AUTO_MIGRATE", false),
		},
		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Storage: StorageConfig{
			Endpoint:        getEnv("STORAGE_ENDPOINT", "localhost:9000"),
			AccessKeyID:     getEnv("STORAGE_ACCESS_KEY", "minioadmin"),
			SecretAccessKey: getEnv("STORAGE_SECRET_KEY", "minioadmin"),
			BucketName:      getEnv("STORAGE_BUCKET", "podcast-assistant"),
			UseSSL:          getEnvAsBool("STORAGE_USE_SSL", false),
			PublicURL:       getEnv("STORAGE_PUBLIC_URL", ""),
		},
		Assembly: AssemblyAIConfig{
			APIKey:       getEnv("ASSEMBLYAI_API_KEY", ""),
			BaseURL:      getEnv("ASSEMBLYAI_BASE_URL", ""),
			LanguageCode: getEnv("ASSEMBLYAI_LANGUAGE_CODE", ""),
			PollInterval: getEnvAsDuration("ASSEMBLYAI_POLL_INTERVAL", "5s"),
			MaxPolls:     getEnvAsInt("ASSEMBLYAI_MAX_POLLS", 360),
		},
		LLM: LLMConfig{
			APIKey:           getEnv("LLM_API_KEY", ""),
			BaseURL:          getEnv("LLM_BASE_URL", "https://openrouter.ai/api/v1"),
			FastModel:        getEnv("LLM_FAST_MODEL", "meta-llama/llama-3.3-70b-instruct"),
			ChatModel:        getEnv("LLM_CHAT_MODEL", "meta-llama/llama-3.3-70b-instruct"),
			LongContextModel: getEnv("LLM_LONG_CONTEXT_MODEL", "google/gemini-2.0-flash-001"),
			Timeout:          getEnvAsDuration("LLM_TIMEOUT", "3m"),
		},
		Embedding: EmbeddingConfig{
			APIKey:    getEnv("EMBEDDING_API_KEY", ""),
			BaseURL:   getEnv("EMBEDDING_BASE_URL", "https://api.deepinfra.com/v1/openai"),
			Model:     getEnv("EMBEDDING_MODEL", "BAAI/bge-base-en-v1.5"),
			BatchSize: getEnvAsInt("EMBEDDING_BATCH_SIZE", 50),
		},
		HTTPClient: HTTPClientConfig{
			Timeout:   getEnvAsDuration("FETCH_TIMEOUT", "30s"),
			UserAgent: getEnv("FETCH_USER_AGENT", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
		},
	}

	if err := envconfig.Process("pipeline", &config.Pipeline); err != nil {
		return nil, fmt.Errorf("failed to load pipeline config: %w", err)
	}

	// Validate required fields
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.Host == "" || c.Database.Name == "" {
		return fmt.Errorf("DB_HOST and DB_NAME are required")
	}
	if c.Pipeline.Concurrency <= 0 {
		return fmt.Errorf("PIPELINE_CONCURRENCY must be positive")
	}
	if c.Embedding.BatchSize <= 0 {
		return fmt.Errorf("EMBEDDING_BATCH_SIZE must be positive")
	}
	return nil
}

// GetDatabaseDSN returns the database connection string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// GetRedisAddr returns the Redis address
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Redis.Host, c.Redis.Port)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}
	return duration
}

func getEnvAsSlice(key string, defaultValue string) []string {
	parts := strings.Split(getEnv(key, defaultValue), ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
