package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for gradecart
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Vision   VisionConfig   `mapstructure:"vision"`
	Commerce CommerceConfig `mapstructure:"commerce"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Security SecurityConfig `mapstructure:"security"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Address      string `mapstructure:"address"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

// VisionConfig holds extraction provider settings
type VisionConfig struct {
	APIKey    string `mapstructure:"api_key"`
	BaseURL   string `mapstructure:"base_url"`
	Model     string `mapstructure:"model"`
	Timeout   int    `mapstructure:"timeout"` // seconds per extraction call
	MaxTokens int    `mapstructure:"max_tokens"`
	Retries   int    `mapstructure:"retries"` // transport-level retries only
	RPM       int    `mapstructure:"rpm"`     // rate limit, requests per minute
}

// CommerceConfig holds partner store API settings
type CommerceConfig struct {
	BaseURL        string `mapstructure:"base_url"` // e.g. https://partner-store.com/wp-json/wc/v3
	StoreURL       string `mapstructure:"store_url"`
	ConsumerKey    string `mapstructure:"consumer_key"`
	ConsumerSecret string `mapstructure:"consumer_secret"`
	AffiliateID    string `mapstructure:"affiliate_id"`
	Timeout        int    `mapstructure:"timeout"`
	SearchPerPage  int    `mapstructure:"search_per_page"`
}

// StorageConfig holds database settings
type StorageConfig struct {
	DataDir    string `mapstructure:"data_dir"`
	SQLitePath string `mapstructure:"sqlite_path"`
	BadgerPath string `mapstructure:"badger_path"`
}

// PipelineConfig holds scan pipeline tunables
type PipelineConfig struct {
	MaxPages         int `mapstructure:"max_pages"`
	ImageMaxWidth    int `mapstructure:"image_max_width"`
	ImageQuality     int `mapstructure:"image_quality"`
	HistoryRetention int `mapstructure:"history_retention_days"`
}

// SecurityConfig holds security settings
type SecurityConfig struct {
	JWTSecret    string   `mapstructure:"jwt_secret"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// Load loads configuration from file, env, and defaults
func Load(configPath, dataDir string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if dataDir == "" {
		dataDir = getDefaultDataDir()
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	v.Set("storage.data_dir", dataDir)
	v.Set("storage.sqlite_path", filepath.Join(dataDir, "gradecart.db"))
	v.Set("storage.badger_path", filepath.Join(dataDir, "badger"))

	if configPath == "" {
		configPath = filepath.Join(dataDir, "gradecart.yaml")
	}
	if _, err := os.Stat(configPath); err == nil {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	// Environment variables (GRADECART_SERVER_PORT, GRADECART_VISION_API_KEY, ...)
	v.SetEnvPrefix("GRADECART")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	loadEnvOverrides(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.address", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 30)

	// Vision defaults
	v.SetDefault("vision.base_url", "https://api.anthropic.com/v1")
	v.SetDefault("vision.model", "claude-3-5-sonnet-20241022")
	v.SetDefault("vision.timeout", 60)
	v.SetDefault("vision.max_tokens", 4000)
	v.SetDefault("vision.retries", 1)
	v.SetDefault("vision.rpm", 60)

	// Commerce defaults
	v.SetDefault("commerce.timeout", 30)
	v.SetDefault("commerce.search_per_page", 5)
	v.SetDefault("commerce.affiliate_id", "default-affiliate")

	// Pipeline defaults
	v.SetDefault("pipeline.max_pages", 10)
	v.SetDefault("pipeline.image_max_width", 600)
	v.SetDefault("pipeline.image_quality", 50)
	v.SetDefault("pipeline.history_retention_days", 90)

	// Security defaults
	v.SetDefault("security.allow_origins", []string{"*"})
}

func getDefaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "gradecart")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "./data"
	}
	return filepath.Join(home, ".local", "share", "gradecart")
}

// loadEnvOverrides covers keys Viper's AutomaticEnv misses for nested structs
func loadEnvOverrides(cfg *Config) {
	getEnv := func(key, fallback string) string {
		if val := os.Getenv(key); val != "" {
			return val
		}
		return fallback
	}

	cfg.Vision.APIKey = getEnv("GRADECART_VISION_API_KEY", cfg.Vision.APIKey)
	cfg.Vision.BaseURL = getEnv("GRADECART_VISION_BASE_URL", cfg.Vision.BaseURL)
	cfg.Vision.Model = getEnv("GRADECART_VISION_MODEL", cfg.Vision.Model)

	cfg.Commerce.BaseURL = getEnv("GRADECART_COMMERCE_BASE_URL", cfg.Commerce.BaseURL)
	cfg.Commerce.StoreURL = getEnv("GRADECART_COMMERCE_STORE_URL", cfg.Commerce.StoreURL)
	cfg.Commerce.ConsumerKey = getEnv("GRADECART_COMMERCE_CONSUMER_KEY", cfg.Commerce.ConsumerKey)
	cfg.Commerce.ConsumerSecret = getEnv("GRADECART_COMMERCE_CONSUMER_SECRET", cfg.Commerce.ConsumerSecret)
	cfg.Commerce.AffiliateID = getEnv("GRADECART_COMMERCE_AFFILIATE_ID", cfg.Commerce.AffiliateID)

	cfg.Server.Address = getEnv("GRADECART_SERVER_ADDRESS", cfg.Server.Address)
	if port := os.Getenv("GRADECART_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}

	cfg.Storage.DataDir = getEnv("GRADECART_STORAGE_DATA_DIR", cfg.Storage.DataDir)
	cfg.Security.JWTSecret = getEnv("GRADECART_SECURITY_JWT_SECRET", cfg.Security.JWTSecret)
}

func validate(cfg *Config) error {
	if cfg.Pipeline.MaxPages < 1 {
		return fmt.Errorf("pipeline.max_pages must be at least 1")
	}
	if cfg.Pipeline.ImageQuality < 1 || cfg.Pipeline.ImageQuality > 100 {
		return fmt.Errorf("pipeline.image_quality must be between 1 and 100")
	}
	if cfg.Commerce.StoreURL == "" && cfg.Commerce.BaseURL != "" {
		// Derive the shopper-facing store URL from the API base
		cfg.Commerce.StoreURL = strings.TrimSuffix(cfg.Commerce.BaseURL, "/wp-json/wc/v3")
	}
	if cfg.Security.JWTSecret == "" {
		cfg.Security.JWTSecret = generateRandomString(32)
	}
	return nil
}

func generateRandomString(n int) string {
	b := make([]byte, n)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// VisionReady reports whether the extraction provider can be called
func (c *Config) VisionReady() bool {
	return c.Vision.APIKey != "" && c.Vision.BaseURL != ""
}
