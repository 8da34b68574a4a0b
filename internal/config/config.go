package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the memrag configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Storage    StorageConfig    `yaml:"storage"`
	Cache      CacheConfig      `yaml:"cache"`
	Database   DatabaseConfig   `yaml:"database"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Completion CompletionConfig `yaml:"completion"`
	Chunking   ChunkingConfig   `yaml:"chunking"`
	Memory     MemoryConfig     `yaml:"memory"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Converter  ConverterConfig  `yaml:"converter"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`

	// APIKeys enables bearer authentication when non-empty.
	APIKeys []string `yaml:"api_keys"`
}

// StorageConfig holds filesystem layout settings.
type StorageConfig struct {
	DataDir     string   `yaml:"data_dir"`
	DocsDir     string   `yaml:"docs_dir"`
	SessionsDir string   `yaml:"sessions_dir"` // default: <data_dir>/sessions
	Extensions  []string `yaml:"extensions"`
	KeyPrefix   string   `yaml:"key_prefix"`
}

// CacheConfig selects the cache backend.
type CacheConfig struct {
	Driver          string `yaml:"driver"` // file, redis, sqlite (default: file)
	EmbeddingsFile  string `yaml:"embeddings_file"`
	CompletionsFile string `yaml:"completions_file"`
	SQLitePath      string `yaml:"sqlite_path"`
}

// DatabaseConfig holds Redis connection settings for the redis cache driver.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// EmbeddingConfig holds embedding backend settings.
type EmbeddingConfig struct {
	Provider            string `yaml:"provider"` // openai, ollama, hashing
	APIKey              string `yaml:"api_key"`
	BaseURL             string `yaml:"base_url"`
	Model               string `yaml:"model"`
	Dimensions          int    `yaml:"dimensions"`
	BatchSize           int    `yaml:"batch_size"`
	DocumentInstruction string `yaml:"document_instruction"`
	QueryInstruction    string `yaml:"query_instruction"`
}

// CompletionConfig holds completion backend settings.
type CompletionConfig struct {
	Provider    string  `yaml:"provider"` // openai, ollama
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"` // 0 = provider default
}

// ChunkingConfig holds splitter settings.
type ChunkingConfig struct {
	Size       int      `yaml:"size"`
	Overlap    int      `yaml:"overlap"`
	Separators []string `yaml:"separators"`
}

// MemoryConfig holds conversation memory settings.
type MemoryConfig struct {
	MaxHistory int `yaml:"max_history"`
	TopK       int `yaml:"top_k"`
}

// RetrievalConfig holds document retrieval settings.
type RetrievalConfig struct {
	TopK int `yaml:"top_k"`
}

// ConverterConfig holds document conversion service settings.
type ConverterConfig struct {
	URL                string `yaml:"url"`
	Strategy           string `yaml:"strategy"`
	EmbedModelProvider string `yaml:"embed_model_provider"`
	TimeoutSec         int    `yaml:"timeout_sec"`
	SourceDir          string `yaml:"source_dir"`
}

// Cache drivers.
const (
	CacheDriverFile   = "file"
	CacheDriverRedis  = "redis"
	CacheDriverSQLite = "sqlite"
)

// Providers.
const (
	ProviderOpenAI  = "openai"
	ProviderOllama  = "ollama"
	ProviderHashing = "hashing"
)

// Load reads configuration from a YAML file by environment name (local, dev, prod).
// A .env file in the working directory is loaded first when present.
func Load(env string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}

	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse expands env variables in data, decodes it and applies defaults and validation.
func Parse(data []byte) (Config, error) {
	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from MEMRAG_ENV or ENV, defaulting to "local".
func GetEnv() string {
	for _, key := range []string{"MEMRAG_ENV", "ENV"} {
		if env := os.Getenv(key); env != "" {
			return env
		}
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 120
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}

	if c.Storage.DataDir == "" {
		c.Storage.DataDir = "data"
	}
	if c.Storage.DocsDir == "" {
		c.Storage.DocsDir = "docs"
	}
	if c.Storage.SessionsDir == "" {
		c.Storage.SessionsDir = filepath.Join(c.Storage.DataDir, "sessions")
	}
	if len(c.Storage.Extensions) == 0 {
		c.Storage.Extensions = []string{".txt", ".md"}
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "memrag:"
	}

	if c.Cache.Driver == "" {
		c.Cache.Driver = CacheDriverFile
	}
	if c.Cache.EmbeddingsFile == "" {
		c.Cache.EmbeddingsFile = filepath.Join(c.Storage.DataDir, "embed_cache.json")
	}
	if c.Cache.CompletionsFile == "" {
		c.Cache.CompletionsFile = filepath.Join(c.Storage.DataDir, "completion_cache.json")
	}
	if c.Cache.SQLitePath == "" {
		c.Cache.SQLitePath = filepath.Join(c.Storage.DataDir, "cache.db")
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}

	if c.Embedding.Provider == "" {
		c.Embedding.Provider = ProviderOpenAI
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-3-small"
	}
	if c.Embedding.BatchSize <= 0 {
		c.Embedding.BatchSize = 50
	}
	if c.Embedding.Provider == ProviderHashing && c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 256
	}

	if c.Completion.Provider == "" {
		c.Completion.Provider = ProviderOpenAI
	}
	if c.Completion.Model == "" {
		c.Completion.Model = "gpt-4o-mini"
	}

	if c.Chunking.Size <= 0 {
		c.Chunking.Size = 1000
		if c.Chunking.Overlap == 0 {
			c.Chunking.Overlap = 200
		}
	}

	if c.Memory.MaxHistory == 0 {
		c.Memory.MaxHistory = 10
	}
	if c.Memory.TopK == 0 {
		c.Memory.TopK = 2
	}
	if c.Retrieval.TopK == 0 {
		c.Retrieval.TopK = 5
	}

	if c.Converter.Strategy == "" {
		c.Converter.Strategy = "recursive"
	}
	if c.Converter.EmbedModelProvider == "" {
		c.Converter.EmbedModelProvider = "gemini"
	}
	if c.Converter.TimeoutSec <= 0 {
		c.Converter.TimeoutSec = 300
	}
	if c.Converter.SourceDir == "" {
		c.Converter.SourceDir = "pdfs"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}

	switch c.Cache.Driver {
	case CacheDriverFile, CacheDriverSQLite:
	case CacheDriverRedis:
		if len(c.Database.Addrs) == 0 {
			return fmt.Errorf("database.addrs is required for cache.driver %q", CacheDriverRedis)
		}
	default:
		return fmt.Errorf("cache.driver must be one of file, redis, sqlite, got %q", c.Cache.Driver)
	}

	switch c.Embedding.Provider {
	case ProviderOpenAI, ProviderOllama:
	case ProviderHashing:
		if c.Embedding.Dimensions <= 0 {
			return fmt.Errorf("embedding.dimensions must be positive for the hashing provider")
		}
	default:
		return fmt.Errorf("embedding.provider must be one of openai, ollama, hashing, got %q", c.Embedding.Provider)
	}

	switch c.Completion.Provider {
	case ProviderOpenAI, ProviderOllama:
	default:
		return fmt.Errorf("completion.provider must be one of openai, ollama, got %q", c.Completion.Provider)
	}

	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		return fmt.Errorf("chunking.overlap must be in [0, %d), got %d", c.Chunking.Size, c.Chunking.Overlap)
	}
	if c.Memory.MaxHistory < 4 {
		return fmt.Errorf("memory.max_history must be at least 4, got %d", c.Memory.MaxHistory)
	}
	if c.Memory.TopK <= 0 {
		return fmt.Errorf("memory.top_k must be positive, got %d", c.Memory.TopK)
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval.top_k must be positive, got %d", c.Retrieval.TopK)
	}
	for _, ext := range c.Storage.Extensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("storage.extensions entries must start with a dot, got %q", ext)
		}
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
