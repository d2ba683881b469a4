package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Log     LogConfig     `yaml:"log"`
	Market  MarketConfig  `yaml:"market"`
	Store   StoreConfig   `yaml:"store"`
	Insight InsightConfig `yaml:"insight"`
	Push    PushConfig    `yaml:"push"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type MarketConfig struct {
	UseMockData     bool               `yaml:"use_mock_data"`
	Currency        string             `yaml:"currency"`
	EarningsEnabled bool               `yaml:"earnings_enabled"`
	Cache           CacheConfig        `yaml:"cache"`
	AlphaVantage    AlphaVantageConfig `yaml:"alpha_vantage"`
	Google          GoogleConfig       `yaml:"google"`
	Yahoo           YahooConfig        `yaml:"yahoo"`
	Alpaca          AlpacaConfig       `yaml:"alpaca"`
}

type CacheConfig struct {
	QuoteTTLSec    int `yaml:"quote_ttl_sec"`
	EarningsTTLSec int `yaml:"earnings_ttl_sec"`
}

type AlphaVantageConfig struct {
	APIKey        string `yaml:"api_key"`
	BaseURL       string `yaml:"base_url"`
	MinIntervalMs int    `yaml:"min_interval_ms"`
	TimeoutMs     int    `yaml:"timeout_ms"`
}

type GoogleConfig struct {
	BaseURL   string `yaml:"base_url"`
	StaggerMs int    `yaml:"stagger_ms"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

type YahooConfig struct {
	BaseURL   string `yaml:"base_url"`
	StaggerMs int    `yaml:"stagger_ms"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

type AlpacaConfig struct {
	Enabled       bool   `yaml:"enabled"`
	APIKey        string `yaml:"api_key"`
	APISecret     string `yaml:"api_secret"`
	BaseURL       string `yaml:"base_url"`
	MinIntervalMs int    `yaml:"min_interval_ms"`
}

type StoreConfig struct {
	Sqlite SqliteConfig `yaml:"sqlite"`
}

type SqliteConfig struct {
	Path string `yaml:"path"`
}

type InsightConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Model      string `yaml:"model"`
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	ByAzure    bool   `yaml:"by_azure"`
	APIVersion string `yaml:"api_version"`
	TimeoutMs  int    `yaml:"timeout_ms"`
}

type PushConfig struct {
	Dingtalk          DingtalkConfig `yaml:"dingtalk"`
	DigestIntervalSec int            `yaml:"digest_interval_sec"`
	DigestDedupSec    int            `yaml:"digest_dedup_sec"`
}

type DingtalkConfig struct {
	Webhook   string `yaml:"webhook"`
	Secret    string `yaml:"secret"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{Port: 5000},
		Log:    LogConfig{Level: "info"},
		Market: MarketConfig{
			UseMockData:     true,
			Currency:        "INR",
			EarningsEnabled: true,
			Cache:           CacheConfig{QuoteTTLSec: 60, EarningsTTLSec: 3600},
			AlphaVantage:    AlphaVantageConfig{MinIntervalMs: 12000, TimeoutMs: 10000},
			Google:          GoogleConfig{StaggerMs: 1000, TimeoutMs: 10000},
			Yahoo:           YahooConfig{StaggerMs: 500, TimeoutMs: 10000},
			Alpaca:          AlpacaConfig{MinIntervalMs: 300},
		},
		Store: StoreConfig{
			Sqlite: SqliteConfig{Path: ":memory:"},
		},
		Insight: InsightConfig{
			Enabled:   false,
			Model:     "gpt-4.1-mini",
			TimeoutMs: 10000,
		},
		Push: PushConfig{
			Dingtalk:       DingtalkConfig{TimeoutMs: 5000},
			DigestDedupSec: 3600,
		},
	}
}

// Load reads .env files, then the YAML file at path over the defaults, then
// environment overrides. A missing file of either kind is not an error.
func Load(path string, envFiles ...string) (*Config, error) {
	if err := loadDotEnv(envFiles...); err != nil {
		return nil, err
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadDotEnv never overrides variables already set in the environment.
func loadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil || p <= 0 || p > 65535 {
			return fmt.Errorf("invalid PORT: %q", v)
		}
		cfg.Server.Port = p
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v, ok := os.LookupEnv("USE_MOCK_DATA"); ok {
		cfg.Market.UseMockData = strings.TrimSpace(strings.ToLower(v)) != "false"
	}
	if v := os.Getenv("ALPHA_VANTAGE_API_KEY"); v != "" {
		cfg.Market.AlphaVantage.APIKey = v
	}
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Market.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Market.Alpaca.APISecret = v
	}
	if v := os.Getenv("INSIGHT_API_KEY"); v != "" {
		cfg.Insight.APIKey = v
	}
	if v := os.Getenv("DINGTALK_WEBHOOK"); v != "" {
		cfg.Push.Dingtalk.Webhook = v
	}
	if v := os.Getenv("DINGTALK_SECRET"); v != "" {
		cfg.Push.Dingtalk.Secret = v
	}
	return nil
}

func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

func Millis(ms int) time.Duration {
	if ms <= 0 {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}

func Seconds(sec int) time.Duration {
	if sec <= 0 {
		return 0
	}
	return time.Duration(sec) * time.Second
}
