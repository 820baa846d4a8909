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
	App        AppConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Log        LogConfig
	HTTP       HTTPConfig
	Scheduler  SchedulerConfig
	Telemetry  TelemetryConfig
	QuickBooks QuickBooksConfig
	Sync       SyncConfig
	Security   SecurityConfig
	Archive    ArchiveConfig
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

// RedisConfig holds Redis connection settings. The distributed refresh lock
// is used only when Enabled is set.
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	LockTTL  time.Duration
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
	RateLimitRPS     float64 // on-demand sync requests per second per client
	RateLimitBurst   int
	IdempotencyTTL   time.Duration // how long an Idempotency-Key blocks a repeated write
}

// SchedulerConfig holds sync scheduler configuration
type SchedulerConfig struct {
	Enabled       bool
	SyncHour      int // hour of day (0-23, UTC) of the nightly sync
	CheckInterval time.Duration
	QueueSize     int
	JobTimeout    time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string  // Service name for traces
	Insecure          bool    // Use insecure (non-TLS) connection (development only)
	// Database tracing options
	DBTraceEnabled    bool          // Enable database query tracing (otelgorm)
	DBLogFullSQL      bool          // Log full SQL statements (dev only, disable in prod for security)
	DBSlowQueryThresh time.Duration // Slow query threshold for warnings (default: 200ms)
	// Continuous profiling
	ProfilingEnabled  bool
	PyroscopeEndpoint string
}

// QuickBooksConfig holds the accounting system connection settings
type QuickBooksConfig struct {
	ClientID      string
	ClientSecret  string
	RedirectURL   string
	Environment   string // sandbox, production
	RealmID       string
	MinorVersion  int
	Scopes        []string
	RefreshWindow time.Duration
	Timeout       time.Duration
	// Read retry
	RetryAttempts  int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	// Circuit breaker
	BreakerFailures int
	BreakerTimeout  time.Duration
}

// BaseURL returns the REST base URL of the configured environment
func (q *QuickBooksConfig) BaseURL() string {
	if q.Environment == "production" {
		return "https://quickbooks.api.intuit.com"
	}
	return "https://sandbox-quickbooks.api.intuit.com"
}

// SyncConfig holds sync engine and cost aggregation settings
type SyncConfig struct {
	BatchDelay          time.Duration
	ServiceItemName     string
	IncomeAccountType   string
	InvoiceLineTemplate string
	AccountingBasis     string // Accrual, Cash
	CostCodeRanges      []string
	CostKeywords        []string
}

// SecurityConfig holds secrets for the OAuth state and token encryption
type SecurityConfig struct {
	StateSecret        string
	StateTTL           time.Duration
	TokenEncryptionKey string // 32 bytes; empty stores tokens in plaintext
}

// ArchiveConfig holds the S3 report archive settings
type ArchiveConfig struct {
	Enabled         bool
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with FLOCON_ prefix (e.g., FLOCON_QUICKBOOKS_CLIENT_SECRET)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./backend")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("FLOCON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := fromViper(v)
	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
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
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
			LockTTL:  v.GetDuration("redis.lock_ttl"),
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
			RateLimitRPS:     v.GetFloat64("http.rate_limit_rps"),
			RateLimitBurst:   v.GetInt("http.rate_limit_burst"),
			IdempotencyTTL:   v.GetDuration("http.idempotency_ttl"),
		},
		Scheduler: SchedulerConfig{
			Enabled:       v.GetBool("scheduler.enabled"),
			SyncHour:      v.GetInt("scheduler.sync_hour"),
			CheckInterval: v.GetDuration("scheduler.check_interval"),
			QueueSize:     v.GetInt("scheduler.queue_size"),
			JobTimeout:    v.GetDuration("scheduler.job_timeout"),
			RetryAttempts: v.GetInt("scheduler.retry_attempts"),
			RetryDelay:    v.GetDuration("scheduler.retry_delay"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBLogFullSQL:      v.GetBool("telemetry.db_log_full_sql"),
			DBSlowQueryThresh: v.GetDuration("telemetry.db_slow_query_threshold"),
			ProfilingEnabled:  v.GetBool("telemetry.profiling_enabled"),
			PyroscopeEndpoint: v.GetString("telemetry.pyroscope_endpoint"),
		},
		QuickBooks: QuickBooksConfig{
			ClientID:        v.GetString("quickbooks.client_id"),
			ClientSecret:    v.GetString("quickbooks.client_secret"),
			RedirectURL:     v.GetString("quickbooks.redirect_url"),
			Environment:     v.GetString("quickbooks.environment"),
			RealmID:         v.GetString("quickbooks.realm_id"),
			MinorVersion:    v.GetInt("quickbooks.minor_version"),
			Scopes:          v.GetStringSlice("quickbooks.scopes"),
			RefreshWindow:   v.GetDuration("quickbooks.refresh_window"),
			Timeout:         v.GetDuration("quickbooks.timeout"),
			RetryAttempts:   v.GetInt("quickbooks.retry_attempts"),
			RetryBaseDelay:  v.GetDuration("quickbooks.retry_base_delay"),
			RetryMaxDelay:   v.GetDuration("quickbooks.retry_max_delay"),
			BreakerFailures: v.GetInt("quickbooks.breaker_failures"),
			BreakerTimeout:  v.GetDuration("quickbooks.breaker_timeout"),
		},
		Sync: SyncConfig{
			BatchDelay:          v.GetDuration("sync.batch_delay"),
			ServiceItemName:     v.GetString("sync.service_item_name"),
			IncomeAccountType:   v.GetString("sync.income_account_type"),
			InvoiceLineTemplate: v.GetString("sync.invoice_line_template"),
			AccountingBasis:     v.GetString("sync.accounting_basis"),
			CostCodeRanges:      v.GetStringSlice("sync.cost_code_ranges"),
			CostKeywords:        v.GetStringSlice("sync.cost_keywords"),
		},
		Security: SecurityConfig{
			StateSecret:        v.GetString("security.state_secret"),
			StateTTL:           v.GetDuration("security.state_ttl"),
			TokenEncryptionKey: v.GetString("security.token_encryption_key"),
		},
		Archive: ArchiveConfig{
			Enabled:         v.GetBool("archive.enabled"),
			Bucket:          v.GetString("archive.bucket"),
			Region:          v.GetString("archive.region"),
			Endpoint:        v.GetString("archive.endpoint"),
			AccessKeyID:     v.GetString("archive.access_key_id"),
			SecretAccessKey: v.GetString("archive.secret_access_key"),
			UsePathStyle:    v.GetBool("archive.use_path_style"),
		},
	}
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "flocon-backend"
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
		cfg.Database.DBName = "flocon"
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
	if cfg.Redis.LockTTL == 0 {
		cfg.Redis.LockTTL = 30 * time.Second
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
	// Batch sync endpoints walk every project sequentially
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 10 * time.Minute
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20 // 1MB
	}
	if cfg.HTTP.RateLimitRPS == 0 {
		cfg.HTTP.RateLimitRPS = 1
	}
	if cfg.HTTP.RateLimitBurst == 0 {
		cfg.HTTP.RateLimitBurst = 5
	}
	if cfg.HTTP.IdempotencyTTL == 0 {
		cfg.HTTP.IdempotencyTTL = 24 * time.Hour
	}
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "Authorization", "X-Request-ID", "Idempotency-Key"}
	}
	if cfg.Scheduler.SyncHour == 0 {
		cfg.Scheduler.SyncHour = 2
	}
	if cfg.Scheduler.CheckInterval == 0 {
		cfg.Scheduler.CheckInterval = time.Minute
	}
	if cfg.Scheduler.QueueSize == 0 {
		cfg.Scheduler.QueueSize = 32
	}
	if cfg.Scheduler.JobTimeout == 0 {
		cfg.Scheduler.JobTimeout = 30 * time.Minute
	}
	if cfg.Scheduler.RetryAttempts == 0 {
		cfg.Scheduler.RetryAttempts = 3
	}
	if cfg.Scheduler.RetryDelay == 0 {
		cfg.Scheduler.RetryDelay = 5 * time.Minute
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317" // Default gRPC endpoint
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "flocon-backend"
	}
	if cfg.Telemetry.DBSlowQueryThresh == 0 {
		cfg.Telemetry.DBSlowQueryThresh = 200 * time.Millisecond
	}
	if cfg.Telemetry.PyroscopeEndpoint == "" {
		cfg.Telemetry.PyroscopeEndpoint = "http://localhost:4040"
	}
	if cfg.QuickBooks.Environment == "" {
		cfg.QuickBooks.Environment = "sandbox"
	}
	if cfg.QuickBooks.MinorVersion == 0 {
		cfg.QuickBooks.MinorVersion = 75
	}
	if len(cfg.QuickBooks.Scopes) == 0 {
		cfg.QuickBooks.Scopes = []string{"com.intuit.quickbooks.accounting"}
	}
	if cfg.QuickBooks.RefreshWindow == 0 {
		cfg.QuickBooks.RefreshWindow = 5 * time.Minute
	}
	if cfg.QuickBooks.Timeout == 0 {
		cfg.QuickBooks.Timeout = 30 * time.Second
	}
	if cfg.QuickBooks.RetryAttempts == 0 {
		cfg.QuickBooks.RetryAttempts = 3
	}
	if cfg.QuickBooks.RetryBaseDelay == 0 {
		cfg.QuickBooks.RetryBaseDelay = 500 * time.Millisecond
	}
	if cfg.QuickBooks.RetryMaxDelay == 0 {
		cfg.QuickBooks.RetryMaxDelay = 8 * time.Second
	}
	if cfg.QuickBooks.BreakerFailures == 0 {
		cfg.QuickBooks.BreakerFailures = 5
	}
	if cfg.QuickBooks.BreakerTimeout == 0 {
		cfg.QuickBooks.BreakerTimeout = 60 * time.Second
	}
	if cfg.Sync.BatchDelay == 0 {
		cfg.Sync.BatchDelay = 500 * time.Millisecond
	}
	if cfg.Sync.ServiceItemName == "" {
		cfg.Sync.ServiceItemName = "Construction Services"
	}
	if cfg.Sync.IncomeAccountType == "" {
		cfg.Sync.IncomeAccountType = "ServiceFeeIncome"
	}
	if cfg.Sync.AccountingBasis == "" {
		cfg.Sync.AccountingBasis = "Accrual"
	}
	if cfg.Security.StateTTL == 0 {
		cfg.Security.StateTTL = 10 * time.Minute
	}
	if cfg.Archive.Region == "" {
		cfg.Archive.Region = "us-east-1"
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
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

	switch c.QuickBooks.Environment {
	case "sandbox", "production":
	default:
		return fmt.Errorf("quickbooks.environment must be sandbox or production, got %q", c.QuickBooks.Environment)
	}
	if c.Sync.AccountingBasis != "Accrual" && c.Sync.AccountingBasis != "Cash" {
		return fmt.Errorf("sync.accounting_basis must be Accrual or Cash, got %q", c.Sync.AccountingBasis)
	}
	if c.Scheduler.SyncHour < 0 || c.Scheduler.SyncHour > 23 {
		return fmt.Errorf("scheduler.sync_hour must be between 0 and 23, got %d", c.Scheduler.SyncHour)
	}
	if key := c.Security.TokenEncryptionKey; key != "" && len(key) != 32 {
		return fmt.Errorf("security.token_encryption_key must be exactly 32 bytes, got %d", len(key))
	}
	if c.Archive.Enabled && c.Archive.Bucket == "" {
		return fmt.Errorf("archive.bucket is required when the report archive is enabled")
	}

	if c.App.Env == "production" {
		if c.QuickBooks.ClientID == "" || c.QuickBooks.ClientSecret == "" {
			return fmt.Errorf("quickbooks.client_id and quickbooks.client_secret are required in production")
		}
		if c.QuickBooks.RedirectURL == "" {
			return fmt.Errorf("quickbooks.redirect_url is required in production")
		}
		if len(c.Security.StateSecret) < 32 {
			return fmt.Errorf("security.state_secret must be at least 32 characters in production")
		}
		if c.Security.TokenEncryptionKey == "" {
			return fmt.Errorf("security.token_encryption_key is required in production")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
		if c.Telemetry.DBLogFullSQL {
			return fmt.Errorf("telemetry.db_log_full_sql must be false in production to prevent sensitive data exposure in traces")
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
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

// Addr returns the Redis address
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
