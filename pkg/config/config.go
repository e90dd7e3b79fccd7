package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	CORS      CORSConfig
	Milvus    MilvusConfig
	LLM       LLMConfig
	Redis     RedisConfig
	SQLite    SQLiteConfig
	Analysis  AnalysisConfig
	RateLimit RateLimitConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Host          string
	Port          int
	ReadTimeout   int
	WriteTimeout  int
	BodyLimit     int
	IsDevelopment bool
}

type CORSConfig struct {
	AllowedOrigins []string
}

type MilvusConfig struct {
	Endpoint               string
	APIKey                 string
	VehicleCollection      string
	CompetitorCollection   string
	VectorField            string
	MetricType             string
	NProbe                 int
	VehicleOutputFields    []string
	CompetitorOutputFields []string
	TimeoutSec             int
}

type LLMConfig struct {
	BaseURL             string
	APIKey              string
	Model               string
	TimeoutSec          int
	EmbeddingBaseURL    string
	EmbeddingAPIKey     string
	EmbeddingModel      string
	EmbeddingTimeoutSec int
}

type RedisConfig struct {
	Enabled         bool
	Host            string
	Port            int
	Password        string
	DB              int
	EmbeddingTTLSec int
}

type SQLiteConfig struct {
	Enabled bool
	Path    string
}

type AnalysisConfig struct {
	DefaultTopK         int
	MaxTopK             int
	MaxQueryLength      int
	ParallelCompetitors bool
	MaxConcurrency      int
}

type RateLimitConfig struct {
	RequestsPerMinute int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/tatavision")

	return load(v)
}

// LoadFile reads configuration from an explicit path, still honouring env overrides.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix("TATAVISION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Analysis.DefaultTopK < 1 || c.Analysis.DefaultTopK > c.Analysis.MaxTopK {
		return fmt.Errorf("analysis.defaultTopK must be between 1 and analysis.maxTopK (%d)", c.Analysis.MaxTopK)
	}
	if c.Milvus.VehicleCollection == "" || c.Milvus.CompetitorCollection == "" {
		return fmt.Errorf("milvus collections must be configured")
	}
	if c.Milvus.VehicleCollection == c.Milvus.CompetitorCollection {
		return fmt.Errorf("milvus.vehicleCollection and milvus.competitorCollection must differ")
	}
	if c.Analysis.MaxConcurrency < 1 {
		return fmt.Errorf("analysis.maxConcurrency must be positive")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 90)
	v.SetDefault("server.bodyLimit", 1048576)
	v.SetDefault("server.isDevelopment", false)

	v.SetDefault("cors.allowedOrigins", []string{"http://localhost:5173", "http://127.0.0.1:5173"})

	v.SetDefault("milvus.endpoint", "localhost:19530")
	v.SetDefault("milvus.apiKey", "")
	v.SetDefault("milvus.vehicleCollection", "tata_motors_sentiment")
	v.SetDefault("milvus.competitorCollection", "competitors_sentiment")
	v.SetDefault("milvus.vectorField", "embedding")
	v.SetDefault("milvus.metricType", "COSINE")
	v.SetDefault("milvus.nProbe", 16)
	v.SetDefault("milvus.vehicleOutputFields", []string{"content", "sentiment_label", "location"})
	v.SetDefault("milvus.competitorOutputFields", []string{"content", "sentiment_label", "location", "brand"})
	v.SetDefault("milvus.timeoutSec", 10)

	v.SetDefault("llm.baseURL", "https://generativelanguage.googleapis.com/v1beta/openai")
	v.SetDefault("llm.apiKey", "")
	v.SetDefault("llm.model", "gemini-2.0-flash")
	v.SetDefault("llm.timeoutSec", 30)
	v.SetDefault("llm.embeddingBaseURL", "http://localhost:8080/v1")
	v.SetDefault("llm.embeddingAPIKey", "")
	v.SetDefault("llm.embeddingModel", "sentence-transformers/all-MiniLM-L6-v2")
	v.SetDefault("llm.embeddingTimeoutSec", 15)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.embeddingTTLSec", 86400)

	v.SetDefault("sqlite.enabled", true)
	v.SetDefault("sqlite.path", "./data/tatavision.db")

	v.SetDefault("analysis.defaultTopK", 10)
	v.SetDefault("analysis.maxTopK", 100)
	v.SetDefault("analysis.maxQueryLength", 2000)
	v.SetDefault("analysis.parallelCompetitors", true)
	v.SetDefault("analysis.maxConcurrency", 3)

	v.SetDefault("rateLimit.requestsPerMinute", 30)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.outputPath", "stdout")
}
