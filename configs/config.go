package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/edlight123/eventhaiti-payouts/logger"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Database     DatabaseConfig     `yaml:"database"`
	Security     SecurityConfig     `yaml:"security"`
	Settlement   SettlementConfig   `yaml:"settlement"`
	Prefunding   PrefundingConfig   `yaml:"prefunding"`
	ExchangeRate ExchangeRateConfig `yaml:"exchange_rate"`
	Email        EmailConfig        `yaml:"email"`
	Cloudinary   CloudinaryConfig   `yaml:"cloudinary"`
	Log          logger.Config      `yaml:"log"`
}

type ServerConfig struct {
	Port         string        `yaml:"port"`
	AppName      string        `yaml:"app_name"`
	Environment  string        `yaml:"environment"`
	AllowOrigins string        `yaml:"allow_origins"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

type DatabaseConfig struct {
	URL             string        `yaml:"url"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type SecurityConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	// DestinationKeyHex is the 32-byte sealing key for payout destinations, hex encoded.
	DestinationKeyHex string `yaml:"destination_key_hex"`
	InternalToken     string `yaml:"internal_token"`
}

type SettlementConfig struct {
	Schedule           string `yaml:"schedule"`
	HoldDays           int    `yaml:"hold_days"`
	MinimumPayoutCents int64  `yaml:"minimum_payout_cents"`
}

type PrefundingConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Schedule        string        `yaml:"schedule"`
	MinBalanceCents int64         `yaml:"min_balance_cents"`
	BaseURL         string        `yaml:"base_url"`
	ClientID        string        `yaml:"client_id"`
	ClientSecret    string        `yaml:"client_secret"`
	Timeout         time.Duration `yaml:"timeout"`
}

type ExchangeRateConfig struct {
	BaseURL  string        `yaml:"base_url"`
	APIKey   string        `yaml:"api_key"`
	Timeout  time.Duration `yaml:"timeout"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

type EmailConfig struct {
	BrevoAPIKey string   `yaml:"brevo_api_key"`
	SenderEmail string   `yaml:"sender_email"`
	SenderName  string   `yaml:"sender_name"`
	AdminEmails []string `yaml:"admin_emails"`
}

type CloudinaryConfig struct {
	URL    string `yaml:"url"`
	Folder string `yaml:"folder"`
}

// Load reads .env, then the optional YAML file at path, then applies environment
// overrides and defaults.
func Load(path string) (*Config, error) {
	_ = godotenv.Load(".env")

	var cfg Config
	if path == "" {
		path = Env("CONFIG_FILE", "config.yaml")
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Env returns the environment value for key, or fallback when unset.
func Env(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func (c *Config) applyEnv() {
	c.Server.Port = Env("PORT", c.Server.Port)
	c.Server.Environment = Env("ENV", c.Server.Environment)
	c.Server.AllowOrigins = Env("CORS_ALLOW_ORIGINS", c.Server.AllowOrigins)

	c.Database.URL = Env("DATABASE_URL", c.Database.URL)

	c.Security.JWTSecret = Env("JWT_SECRET", c.Security.JWTSecret)
	c.Security.DestinationKeyHex = Env("DESTINATION_KEY_HEX", c.Security.DestinationKeyHex)
	c.Security.InternalToken = Env("INTERNAL_SERVICE_TOKEN", c.Security.InternalToken)

	c.Settlement.Schedule = Env("SETTLEMENT_SCHEDULE", c.Settlement.Schedule)
	c.Settlement.HoldDays = envInt("SETTLEMENT_HOLD_DAYS", c.Settlement.HoldDays)
	c.Settlement.MinimumPayoutCents = envInt64("MINIMUM_PAYOUT_CENTS", c.Settlement.MinimumPayoutCents)

	if v := os.Getenv("PREFUNDING_ENABLED"); v != "" {
		c.Prefunding.Enabled, _ = strconv.ParseBool(v)
	}
	c.Prefunding.Schedule = Env("PREFUNDING_SCHEDULE", c.Prefunding.Schedule)
	c.Prefunding.MinBalanceCents = envInt64("PREFUNDING_MIN_BALANCE_CENTS", c.Prefunding.MinBalanceCents)
	c.Prefunding.BaseURL = Env("MONCASH_BASE_URL", c.Prefunding.BaseURL)
	c.Prefunding.ClientID = Env("MONCASH_CLIENT_ID", c.Prefunding.ClientID)
	c.Prefunding.ClientSecret = Env("MONCASH_CLIENT_SECRET", c.Prefunding.ClientSecret)

	c.ExchangeRate.BaseURL = Env("EXCHANGE_RATE_BASE_URL", c.ExchangeRate.BaseURL)
	c.ExchangeRate.APIKey = Env("EXCHANGE_RATE_API_KEY", c.ExchangeRate.APIKey)

	c.Email.BrevoAPIKey = Env("BREVO_API_KEY", c.Email.BrevoAPIKey)
	c.Email.SenderEmail = Env("EMAIL_SENDER", c.Email.SenderEmail)
	c.Email.SenderName = Env("EMAIL_SENDER_NAME", c.Email.SenderName)
	if v := Env("ADMIN_EMAILS", ""); v != "" {
		c.Email.AdminEmails = splitList(v)
	}

	c.Cloudinary.URL = Env("CLOUDINARY_URL", c.Cloudinary.URL)

	c.Log.Level = Env("LOG_LEVEL", c.Log.Level)
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.AppName == "" {
		c.Server.AppName = "EventHaiti Payouts"
	}
	if c.Server.AllowOrigins == "" {
		c.Server.AllowOrigins = "*"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 15 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60 * time.Second
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 25
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 10
	}
	if c.Database.ConnMaxLifetime == 0 {
		c.Database.ConnMaxLifetime = 5 * time.Minute
	}
	if c.Settlement.Schedule == "" {
		c.Settlement.Schedule = "*/15 * * * *"
	}
	if c.Settlement.HoldDays == 0 {
		c.Settlement.HoldDays = 7
	}
	if c.Settlement.MinimumPayoutCents == 0 {
		c.Settlement.MinimumPayoutCents = 5000
	}
	if c.Prefunding.Schedule == "" {
		c.Prefunding.Schedule = "*/10 * * * *"
	}
	if c.Prefunding.Timeout == 0 {
		c.Prefunding.Timeout = 5 * time.Second
	}
	if c.ExchangeRate.BaseURL == "" {
		c.ExchangeRate.BaseURL = "https://v6.exchangerate-api.com"
	}
	if c.ExchangeRate.Timeout == 0 {
		c.ExchangeRate.Timeout = 3 * time.Second
	}
	if c.ExchangeRate.CacheTTL == 0 {
		c.ExchangeRate.CacheTTL = 6 * time.Hour
	}
	if c.Cloudinary.Folder == "" {
		c.Cloudinary.Folder = "payout_verification"
	}
}

func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return errors.New("DATABASE_URL is required")
	}
	if c.Security.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	key, err := hex.DecodeString(c.Security.DestinationKeyHex)
	if err != nil {
		return fmt.Errorf("DESTINATION_KEY_HEX is not hex: %w", err)
	}
	if len(key) != 32 {
		return fmt.Errorf("DESTINATION_KEY_HEX must decode to 32 bytes, got %d", len(key))
	}
	if c.Settlement.HoldDays < 0 {
		return errors.New("settlement hold days cannot be negative")
	}
	return nil
}

func (c *Config) DestinationKey() []byte {
	key, _ := hex.DecodeString(c.Security.DestinationKeyHex)
	return key
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envInt64(key string, fallback int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
