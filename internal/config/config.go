package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Qdrant  QdrantConfig  `yaml:"qdrant"`
	Ollama  OllamaConfig  `yaml:"ollama"`
	Auth    AuthConfig    `yaml:"auth"`
	Limits  LimitsConfig  `yaml:"limits"`
	Metrics MetricsConfig `yaml:"metrics"`
	Audit   AuditConfig   `yaml:"audit"`
	Logger  LoggerConfig  `yaml:"logger"`
}

type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
	Mode         string        `yaml:"mode"` // gin.ReleaseMode, gin.DebugMode, gin.TestMode
}

// QdrantConfig points at the external vector database.
type QdrantConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	CollectionName string `yaml:"collection_name"`
}

// OllamaConfig points at the external embedding endpoint.
type OllamaConfig struct {
	BaseURL   string        `yaml:"base_url"`
	Model     string        `yaml:"model"`
	EmbedPath string        `yaml:"embed_path"`
	Timeout   time.Duration `yaml:"timeout"`
}

type AuthConfig struct {
	Token string `yaml:"token"` // empty disables the bearer-token gate
}

// LimitsConfig bounds the request shapes the façade accepts.
type LimitsConfig struct {
	MaxTextLength        int           `yaml:"max_text_length"`
	MaxBatchSize         int           `yaml:"max_batch_size"`
	HealthCheckTimeout   time.Duration `yaml:"health_check_timeout"`
	MaxTags              int           `yaml:"max_tags"`
	MaxTagLength         int           `yaml:"max_tag_length"`
	MaxSourceLength      int           `yaml:"max_source_length"`
	LockTableSize        int           `yaml:"lock_table_size"`
	CollectionCacheTTL   time.Duration `yaml:"collection_cache_ttl"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type AuditConfig struct {
	Enabled bool `yaml:"enabled"`
}

type LoggerConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
	Output string `yaml:"output"` // stdout, file
}

// Load reads configuration from an optional YAML file and layers every
// environment variable named in the interface contract on top, so an
// operator who sets nothing still gets complete, working defaults.
func Load() (*Config, error) {
	cfg := loadFromEnv()

	if yamlCfg, err := loadFromYAML(); err == nil {
		cfg = yamlCfg
		mergeWithEnv(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func loadFromYAML() (*Config, error) {
	configPath := getEnvOrDefault("CONFIG_FILE", "config.yml")

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	return cfg, nil
}

func loadFromEnv() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         getEnvOrDefault("API_HOST", "0.0.0.0"),
			Port:         getEnvOrDefaultInt("API_PORT", 8100),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
			Mode:         getEnvOrDefault("SERVER_MODE", "release"),
		},
		Qdrant: QdrantConfig{
			Host:           getEnvOrDefault("QDRANT_HOST", "localhost"),
			Port:           getEnvOrDefaultInt("QDRANT_PORT", 6333),
			CollectionName: getEnvOrDefault("COLLECTION_NAME", "memories"),
		},
		Ollama: OllamaConfig{
			BaseURL:   getEnvOrDefault("OLLAMA_BASE_URL", "http://localhost:11434"),
			Model:     getEnvOrDefault("EMBED_MODEL", "nomic-embed-text"),
			EmbedPath: getEnvOrDefault("OLLAMA_EMBED_PATH", "/api/embed"),
			Timeout:   30 * time.Second,
		},
		Auth: AuthConfig{
			Token: getEnvOrDefault("API_AUTH_TOKEN", ""),
		},
		Limits: LimitsConfig{
			MaxTextLength:      getEnvOrDefaultInt("MAX_TEXT_LENGTH", 8000),
			MaxBatchSize:       getEnvOrDefaultInt("MAX_BATCH_SIZE", 100),
			HealthCheckTimeout: getEnvOrDefaultDurationSeconds("HEALTH_CHECK_TIMEOUT_S", 5.0),
			MaxTags:            20,
			MaxTagLength:       100,
			MaxSourceLength:    200,
			LockTableSize:      1000,
			CollectionCacheTTL: 30 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: getEnvOrDefaultBool("METRICS_ENABLED", true),
			Path:    getEnvOrDefault("METRICS_PATH", "/metrics"),
		},
		Audit: AuditConfig{
			Enabled: getEnvOrDefaultBool("AUDIT_ENABLED", true),
		},
		Logger: LoggerConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
			Output: getEnvOrDefault("LOG_OUTPUT", "stdout"),
		},
	}
}

// mergeWithEnv overlays every supported environment variable onto a
// YAML-sourced config, env taking precedence.
func mergeWithEnv(cfg *Config) {
	if v := os.Getenv("QDRANT_HOST"); v != "" {
		cfg.Qdrant.Host = v
	}
	if v := os.Getenv("QDRANT_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Qdrant.Port = n
		}
	}
	if v := os.Getenv("COLLECTION_NAME"); v != "" {
		cfg.Qdrant.CollectionName = v
	}
	if v := os.Getenv("OLLAMA_BASE_URL"); v != "" {
		cfg.Ollama.BaseURL = v
	}
	if v := os.Getenv("EMBED_MODEL"); v != "" {
		cfg.Ollama.Model = v
	}
	if v := os.Getenv("OLLAMA_EMBED_PATH"); v != "" {
		cfg.Ollama.EmbedPath = v
	}
	if v := os.Getenv("API_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("API_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = n
		}
	}
	if v := os.Getenv("API_AUTH_TOKEN"); v != "" {
		cfg.Auth.Token = v
	}
	if v := os.Getenv("MAX_TEXT_LENGTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Limits.MaxTextLength = n
		}
	}
	if v := os.Getenv("MAX_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Limits.MaxBatchSize = n
		}
	}
	if v := os.Getenv("HEALTH_CHECK_TIMEOUT_S"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Limits.HealthCheckTimeout = time.Duration(f * float64(time.Second))
		}
	}
}

// Validate checks that configuration values are usable.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Qdrant.Port <= 0 || c.Qdrant.Port > 65535 {
		return fmt.Errorf("invalid qdrant port: %d", c.Qdrant.Port)
	}
	if c.Qdrant.CollectionName == "" {
		return fmt.Errorf("collection name must not be empty")
	}
	if c.Limits.MaxTextLength <= 0 {
		return fmt.Errorf("max text length must be positive")
	}
	if c.Limits.MaxBatchSize <= 0 {
		return fmt.Errorf("max batch size must be positive")
	}
	if c.Logger.Level != "debug" && c.Logger.Level != "info" && c.Logger.Level != "warn" && c.Logger.Level != "error" {
		return fmt.Errorf("unsupported log level: %s", c.Logger.Level)
	}
	if c.Logger.Format != "json" && c.Logger.Format != "text" {
		return fmt.Errorf("unsupported log format: %s", c.Logger.Format)
	}
	return nil
}

// Address returns the server listen address string.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// QdrantURL returns the base REST URL of the configured Qdrant instance.
func (c *Config) QdrantURL() string {
	return fmt.Sprintf("http://%s:%d", c.Qdrant.Host, c.Qdrant.Port)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvOrDefaultBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvOrDefaultDurationSeconds(key string, defaultSeconds float64) time.Duration {
	seconds := defaultSeconds
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			seconds = f
		}
	}
	return time.Duration(seconds * float64(time.Second))
}
