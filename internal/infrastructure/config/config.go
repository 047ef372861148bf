package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
	Jobs      JobsConfig
	Import    ImportConfig
	Telemetry TelemetryConfig
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

// RedisConfig holds Redis connection settings for the notification sink
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// JobsConfig holds maintenance job configuration
type JobsConfig struct {
	BalanceReconEnabled   bool
	BalanceReconInterval  time.Duration
	BalanceReconTolerance string // decimal string, absolute drift tolerance
	BalanceReconPageSize  int
	BalanceReconRepair    bool // false leaves the job report-only
	PartialSelectionLimit int  // caps the per-run drift detail list
	CreditReconEnabled    bool
	CreditReconInterval   time.Duration
}

// ImportConfig holds bulk import limits
type ImportConfig struct {
	MaxRows        int
	PreviewPageMax int
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled     bool
	ServiceName string
}

// Load loads configuration from a TOML file and environment variables.
// Priority (highest to lowest): LEDGER_ prefixed environment variables,
// config.toml, built-in defaults.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Missing config file is fine, defaults and env vars apply
	}

	v.SetEnvPrefix("LEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

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
		Jobs: JobsConfig{
			BalanceReconEnabled:   v.GetBool("jobs.balance_recon_enabled"),
			BalanceReconInterval:  v.GetDuration("jobs.balance_recon_interval"),
			BalanceReconTolerance: v.GetString("jobs.balance_recon_tolerance"),
			BalanceReconPageSize:  v.GetInt("jobs.balance_recon_page_size"),
			BalanceReconRepair:    v.GetBool("jobs.balance_recon_repair"),
			PartialSelectionLimit: v.GetInt("jobs.partial_selection_limit"),
			CreditReconEnabled:    v.GetBool("jobs.credit_recon_enabled"),
			CreditReconInterval:   v.GetDuration("jobs.credit_recon_interval"),
		},
		Import: ImportConfig{
			MaxRows:        v.GetInt("import.max_rows"),
			PreviewPageMax: v.GetInt("import.preview_page_max"),
		},
		Telemetry: TelemetryConfig{
			Enabled:     v.GetBool("telemetry.enabled"),
			ServiceName: v.GetString("telemetry.service_name"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "ledger-backend"
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
		cfg.Database.DBName = "ledger"
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
	if cfg.Jobs.BalanceReconInterval == 0 {
		cfg.Jobs.BalanceReconInterval = 6 * time.Hour
	}
	if cfg.Jobs.BalanceReconTolerance == "" {
		cfg.Jobs.BalanceReconTolerance = "0.01"
	}
	if cfg.Jobs.BalanceReconPageSize == 0 {
		cfg.Jobs.BalanceReconPageSize = 500
	}
	if cfg.Jobs.PartialSelectionLimit == 0 {
		cfg.Jobs.PartialSelectionLimit = 10
	}
	if cfg.Jobs.CreditReconInterval == 0 {
		cfg.Jobs.CreditReconInterval = time.Hour
	}
	if cfg.Import.MaxRows == 0 {
		cfg.Import.MaxRows = 10000
	}
	if cfg.Import.PreviewPageMax == 0 {
		cfg.Import.PreviewPageMax = 200
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
}

func (c *Config) validate() error {
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		return fmt.Errorf("invalid database port: %d", c.Database.Port)
	}
	if c.App.Env != "development" && c.App.Env != "test" && c.App.Env != "production" {
		return fmt.Errorf("invalid app env: %s", c.App.Env)
	}
	if c.Jobs.BalanceReconPageSize < 1 {
		return fmt.Errorf("balance reconciliation page size must be positive")
	}
	if c.Jobs.PartialSelectionLimit < 1 {
		return fmt.Errorf("partial selection limit must be positive")
	}
	return nil
}

// DSN builds the PostgreSQL connection string
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// Addr builds the Redis address
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
