package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "KHOBOR"

// Config is the fully resolved runtime configuration. It is built once at
// startup and passed by value into constructors.
type Config struct {
	Server     ServerConfig    `mapstructure:"server"`
	Fetcher    FetcherConfig   `mapstructure:"fetcher"`
	Extractor  ExtractorConfig `mapstructure:"extractor"`
	Analyzer   AnalyzerConfig  `mapstructure:"analyzer"`
	Store      StoreConfig     `mapstructure:"store"`
	Lock       LockConfig      `mapstructure:"lock"`
	Batch      BatchConfig     `mapstructure:"batch"`
	Discovery  DiscoveryConfig `mapstructure:"discovery"`
	Publishers PublishConfig   `mapstructure:"publishers"`
	Logging    LoggingConfig   `mapstructure:"logging"`
}

type ServerConfig struct {
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	APIKey      string        `mapstructure:"api_key"`
	CORSOrigins []string      `mapstructure:"cors_origins"`
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
}

// Addr is the listen address for the HTTP server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type FetcherConfig struct {
	UserAgent      string        `mapstructure:"user_agent"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxHeaderBytes int64         `mapstructure:"max_header_bytes"`
	Strategies     []string      `mapstructure:"strategies"`
	CurlBinary     string        `mapstructure:"curl_binary"`
	ScratchDir     string        `mapstructure:"scratch_dir"`
	YahooAPIBase   string        `mapstructure:"yahoo_api_base"`
}

type ExtractorConfig struct {
	Readability bool `mapstructure:"readability"`
}

type AnalyzerConfig struct {
	Provider         string        `mapstructure:"provider"`
	APIKey           string        `mapstructure:"api_key"`
	BaseURL          string        `mapstructure:"base_url"`
	Model            string        `mapstructure:"model"`
	Temperature      float64       `mapstructure:"temperature"`
	MaxTokens        int           `mapstructure:"max_tokens"`
	MaxContentLength int           `mapstructure:"max_content_length"`
	DefaultSentiment string        `mapstructure:"default_sentiment"`
	Timeout          time.Duration `mapstructure:"timeout"`
}

type StoreConfig struct {
	Driver         string       `mapstructure:"driver"`
	BoltPath       string       `mapstructure:"bolt_path"`
	PostgresDSN    string       `mapstructure:"postgres_dsn"`
	UTCOffsetHours int          `mapstructure:"utc_offset_hours"`
	Notion         NotionConfig `mapstructure:"notion"`
}

type NotionConfig struct {
	Token      string `mapstructure:"token"`
	DatabaseID string `mapstructure:"database_id"`
	BaseURL    string `mapstructure:"base_url"`
	Version    string `mapstructure:"version"`
}

type LockConfig struct {
	RedisURL string        `mapstructure:"redis_url"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type BatchConfig struct {
	Delay time.Duration `mapstructure:"delay"`
}

type DiscoveryConfig struct {
	ProvidersFile string `mapstructure:"providers_file"`
	FinnhubAPIKey string `mapstructure:"finnhub_api_key"`
}

type PublishConfig struct {
	File string `mapstructure:"file"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// legacyEnv lists environment variable names accepted in addition to the
// prefixed KHOBOR_* form.
var legacyEnv = map[string][]string{
	"server.port":               {"PORT"},
	"server.api_key":            {"API_KEY"},
	"analyzer.provider":         {"AI_PROVIDER"},
	"store.postgres_dsn":        {"DATABASE_URL"},
	"store.notion.token":        {"NOTION_SECRET", "NOTION_TOKEN"},
	"store.notion.database_id":  {"NOTION_DATABASE_ID"},
	"lock.redis_url":            {"REDIS_URL"},
	"discovery.finnhub_api_key": {"FINNHUB_API_KEY"},
}

// providerKeyEnv maps analyzer providers to the conventional key variable.
var providerKeyEnv = map[string]string{
	"openai":    "OPENAI_API_KEY",
	"xai":       "XAI_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
	"gemini":    "GEMINI_API_KEY",
}

// Load resolves configuration from defaults, an optional YAML file, a .env
// file and the environment, in increasing order of precedence.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if path = strings.TrimSpace(path); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("khobor")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".khobor"))
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range legacyEnv {
		args := append([]string{key, envName(key)}, names...)
		if err := v.BindEnv(args...); err != nil {
			return Config{}, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	normalize(&cfg)
	return cfg, nil
}

func envName(key string) string {
	return envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 5001)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.read_timeout", 15*time.Second)

	v.SetDefault("fetcher.user_agent", DefaultUserAgent)
	v.SetDefault("fetcher.timeout", 60*time.Second)
	v.SetDefault("fetcher.max_header_bytes", 16*1024*20)
	v.SetDefault("fetcher.strategies", []string{"yahoo-api", "http", "curl"})
	v.SetDefault("fetcher.curl_binary", "curl")
	v.SetDefault("fetcher.scratch_dir", "tmp")
	v.SetDefault("fetcher.yahoo_api_base", "https://finance.yahoo.com")

	v.SetDefault("extractor.readability", false)

	v.SetDefault("analyzer.provider", "openai")
	v.SetDefault("analyzer.api_key", "")
	v.SetDefault("analyzer.base_url", "")
	v.SetDefault("analyzer.model", "")
	v.SetDefault("analyzer.temperature", 0.3)
	v.SetDefault("analyzer.max_tokens", 5000)
	v.SetDefault("analyzer.max_content_length", 3000)
	v.SetDefault("analyzer.default_sentiment", "Neutral")
	v.SetDefault("analyzer.timeout", 90*time.Second)

	v.SetDefault("store.driver", "bolt")
	v.SetDefault("store.bolt_path", "data/khobor.db")
	v.SetDefault("store.utc_offset_hours", 8)
	v.SetDefault("store.notion.base_url", "https://api.notion.com")
	v.SetDefault("store.notion.version", "2022-06-28")

	v.SetDefault("lock.ttl", 2*time.Minute)

	v.SetDefault("batch.delay", 5*time.Second)

	v.SetDefault("discovery.providers_file", "config/providers.yaml")
	v.SetDefault("publishers.file", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// DefaultUserAgent mimics a current desktop Chrome build.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

const minFetchTimeout = 30 * time.Second

func normalize(cfg *Config) {
	cfg.Analyzer.Provider = strings.ToLower(strings.TrimSpace(cfg.Analyzer.Provider))
	if cfg.Analyzer.APIKey == "" {
		if name, ok := providerKeyEnv[cfg.Analyzer.Provider]; ok {
			cfg.Analyzer.APIKey = strings.TrimSpace(os.Getenv(name))
		}
	}
	cfg.Store.Driver = strings.ToLower(strings.TrimSpace(cfg.Store.Driver))
	if cfg.Fetcher.Timeout < minFetchTimeout {
		cfg.Fetcher.Timeout = minFetchTimeout
	}
	for i, s := range cfg.Fetcher.Strategies {
		cfg.Fetcher.Strategies[i] = strings.ToLower(strings.TrimSpace(s))
	}
}

// MissingError enumerates every unmet requirement found by Validate.
type MissingError struct {
	Missing []string
}

func (e *MissingError) Error() string {
	return "missing required configuration: " + strings.Join(e.Missing, ", ")
}

// Validate checks that the settings needed by the selected analyzer and
// store are present. All problems are reported together.
func (c Config) Validate() error {
	var missing []string

	if c.Analyzer.APIKey == "" {
		name := providerKeyEnv[c.Analyzer.Provider]
		if name == "" {
			name = envName("analyzer.api_key")
		}
		missing = append(missing, name)
	}

	switch c.Store.Driver {
	case "bolt":
		if c.Store.BoltPath == "" {
			missing = append(missing, envName("store.bolt_path"))
		}
	case "postgres":
		if c.Store.PostgresDSN == "" {
			missing = append(missing, "DATABASE_URL")
		}
	case "notion":
		if c.Store.Notion.Token == "" {
			missing = append(missing, "NOTION_SECRET")
		}
		if c.Store.Notion.DatabaseID == "" {
			missing = append(missing, "NOTION_DATABASE_ID")
		}
	case "memory":
	default:
		missing = append(missing, fmt.Sprintf("%s (unknown driver %q)", envName("store.driver"), c.Store.Driver))
	}

	if len(missing) == 0 {
		return nil
	}
	return &MissingError{Missing: missing}
}
