package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App          AppConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	Log          LogConfig
	HTTP         HTTPConfig
	Dispatcher   DispatcherConfig
	Sweeper      SweeperConfig
	Marketplaces MarketplacesConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	MaxHeaderBytes   int
	MaxBodySize      int64
	CORSAllowOrigins []string
	CORSAllowMethods []string
	CORSAllowHeaders []string
	TrustedProxies   []string
}

// DispatcherConfig holds job dispatcher configuration
type DispatcherConfig struct {
	Enabled        bool
	Workers        int
	QueueSize      int
	PollInterval   time.Duration
	ClaimBatchSize int
	BackoffCap     time.Duration
	IdempotencyTTL time.Duration
}

// SweeperConfig holds job expiry sweeper configuration
type SweeperConfig struct {
	Enabled   bool
	Interval  time.Duration
	BatchSize int
}

// MarketplacesConfig holds per-marketplace adapter credentials. Disabled
// marketplaces are not registered and jobs targeting them fail validation.
type MarketplacesConfig struct {
	Vinted VintedCredentials
	Ebay   EbayCredentials
	Etsy   EtsyCredentials
}

// VintedCredentials holds Vinted session authentication
type VintedCredentials struct {
	Enabled       bool
	SessionCookie string
	CSRFToken     string
}

// EbayCredentials holds eBay OAuth authentication
type EbayCredentials struct {
	Enabled       bool
	ClientID      string
	ClientSecret  string
	AccessToken   string
	MarketplaceID string
	Sandbox       bool
}

// EtsyCredentials holds Etsy API authentication
type EtsyCredentials struct {
	Enabled     bool
	APIKey      string
	AccessToken string
	ShopID      string
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with RESELL_ prefix (e.g., RESELL_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	// Set config file settings
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./backend")
	v.AddConfigPath("/app")

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	// Enable environment variable override
	v.SetEnvPrefix("RESELL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Build config struct
	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:      v.GetDuration("http.read_timeout"),
			WriteTimeout:     v.GetDuration("http.write_timeout"),
			IdleTimeout:      v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:   v.GetInt("http.max_header_bytes"),
			MaxBodySize:      v.GetInt64("http.max_body_size"),
			CORSAllowOrigins: v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods: v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders: v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:   v.GetStringSlice("http.trusted_proxies"),
		},
		Dispatcher: DispatcherConfig{
			Enabled:        v.GetBool("dispatcher.enabled"),
			Workers:        v.GetInt("dispatcher.workers"),
			QueueSize:      v.GetInt("dispatcher.queue_size"),
			PollInterval:   v.GetDuration("dispatcher.poll_interval"),
			ClaimBatchSize: v.GetInt("dispatcher.claim_batch_size"),
			BackoffCap:     v.GetDuration("dispatcher.backoff_cap"),
			IdempotencyTTL: v.GetDuration("dispatcher.idempotency_ttl"),
		},
		Sweeper: SweeperConfig{
			Enabled:   v.GetBool("sweeper.enabled"),
			Interval:  v.GetDuration("sweeper.interval"),
			BatchSize: v.GetInt("sweeper.batch_size"),
		},
		Marketplaces: MarketplacesConfig{
			Vinted: VintedCredentials{
				Enabled:       v.GetBool("marketplaces.vinted.enabled"),
				SessionCookie: v.GetString("marketplaces.vinted.session_cookie"),
				CSRFToken:     v.GetString("marketplaces.vinted.csrf_token"),
			},
			Ebay: EbayCredentials{
				Enabled:       v.GetBool("marketplaces.ebay.enabled"),
				ClientID:      v.GetString("marketplaces.ebay.client_id"),
				ClientSecret:  v.GetString("marketplaces.ebay.client_secret"),
				AccessToken:   v.GetString("marketplaces.ebay.access_token"),
				MarketplaceID: v.GetString("marketplaces.ebay.marketplace_id"),
				Sandbox:       v.GetBool("marketplaces.ebay.sandbox"),
			},
			Etsy: EtsyCredentials{
				Enabled:     v.GetBool("marketplaces.etsy.enabled"),
				APIKey:      v.GetString("marketplaces.etsy.api_key"),
				AccessToken: v.GetString("marketplaces.etsy.access_token"),
				ShopID:      v.GetString("marketplaces.etsy.shop_id"),
			},
		},
	}

	// Apply defaults for empty values
	applyDefaults(cfg)

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "resell-backend"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "resell"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 10 << 20 // 10MB
	}
	// NOTE: CORS origins are intentionally not given a default fallback to "*".
	// An empty list means no cross-origin requests are allowed until explicitly
	// configured.
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "Authorization", "X-Request-ID", "X-Tenant-ID"}
	}
	if cfg.Dispatcher.Workers == 0 {
		cfg.Dispatcher.Workers = 5
	}
	if cfg.Dispatcher.QueueSize == 0 {
		cfg.Dispatcher.QueueSize = 100
	}
	if cfg.Dispatcher.PollInterval == 0 {
		cfg.Dispatcher.PollInterval = time.Second
	}
	if cfg.Dispatcher.ClaimBatchSize == 0 {
		cfg.Dispatcher.ClaimBatchSize = 50
	}
	if cfg.Dispatcher.BackoffCap == 0 {
		cfg.Dispatcher.BackoffCap = 5 * time.Minute
	}
	if cfg.Dispatcher.IdempotencyTTL == 0 {
		cfg.Dispatcher.IdempotencyTTL = 24 * time.Hour
	}
	if cfg.Sweeper.Interval == 0 {
		cfg.Sweeper.Interval = 30 * time.Second
	}
	if cfg.Sweeper.BatchSize == 0 {
		cfg.Sweeper.BatchSize = 100
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	// Validate connection pool settings
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if c.Dispatcher.Workers < 0 {
		return fmt.Errorf("dispatcher.workers cannot be negative")
	}
	if c.Dispatcher.PollInterval < 0 {
		return fmt.Errorf("dispatcher.poll_interval cannot be negative")
	}
	if c.Sweeper.Interval < 0 {
		return fmt.Errorf("sweeper.interval cannot be negative")
	}

	// Production-specific validations
	if c.App.Env == "production" {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		// CORS must not use wildcard with credentials
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns the Redis address in host:port form
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
