package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Addr                string        `yaml:"addr" env:"APP_ADDR" env-default:":8080"`
	Environment         string        `yaml:"env" env:"APP_ENV" env-default:"development"`
	DatabaseDriver      string        `yaml:"database_driver" env:"DATABASE_DRIVER" env-default:"postgres"`
	DatabaseURL         string        `yaml:"database_url" env:"DATABASE_URL"`
	JWTSecret           string        `yaml:"jwt_secret" env:"JWT_SECRET"`
	DataEncryptionKey   string        `yaml:"data_encryption_key" env:"DATA_ENCRYPTION_KEY"`
	CORSOrigins         []string      `yaml:"cors_origins" env:"CORS_ORIGINS" env-separator:","`
	MaxBodyBytes        int64         `yaml:"max_body_bytes" env:"MAX_BODY_BYTES" env-default:"1048576"`
	ShutdownTimeout     time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT" env-default:"10s"`
	PayrollWorkers      int           `yaml:"payroll_workers" env:"PAYROLL_WORKERS" env-default:"4"`
	JobQueueSize        int           `yaml:"job_queue_size" env:"JOB_QUEUE_SIZE" env-default:"32"`
	RateLimitPerMinute  int           `yaml:"rate_limit_per_minute" env:"RATE_LIMIT_PER_MINUTE" env-default:"120"`
	StrictMissingAmount bool          `yaml:"strict_missing_amount" env:"STRICT_MISSING_AMOUNT" env-default:"false"`
	BracketTaxEnabled   bool          `yaml:"bracket_tax_enabled" env:"BRACKET_TAX_ENABLED" env-default:"false"`
	TaxLabel            string        `yaml:"tax_label" env:"TAX_LABEL" env-default:"Income Tax (brackets)"`
	RunMigrations       bool          `yaml:"run_migrations" env:"RUN_MIGRATIONS" env-default:"true"`
	RunSeed             bool          `yaml:"run_seed" env:"RUN_SEED" env-default:"false"`
	MetricsEnabled      bool          `yaml:"metrics_enabled" env:"METRICS_ENABLED" env-default:"true"`
}

// Load reads CONFIG_PATH (yaml or .env) when set, then the environment.
func Load() (Config, error) {
	var cfg Config
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		return cfg, nil
	}
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("read env: %w", err)
	}
	return cfg, nil
}

func (c Config) IsProd() bool {
	return c.Environment == "production"
}

// AuthEnabled reports whether bearer tokens are checked at all. Without a
// secret the API runs open, which Validate refuses in production.
func (c Config) AuthEnabled() bool {
	return strings.TrimSpace(c.JWTSecret) != ""
}

func (c Config) Validate() error {
	switch c.DatabaseDriver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("DATABASE_DRIVER must be %q or %q", DriverPostgres, DriverSQLite)
	}
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.IsProd() {
		if strings.TrimSpace(c.JWTSecret) == "" {
			return fmt.Errorf("JWT_SECRET must be set to a strong value in production")
		}
		if strings.TrimSpace(c.DataEncryptionKey) == "" {
			return fmt.Errorf("DATA_ENCRYPTION_KEY must be set in production for encryption at rest")
		}
	}
	if c.MaxBodyBytes < 1024 {
		return fmt.Errorf("MAX_BODY_BYTES must be at least 1024")
	}
	if c.PayrollWorkers <= 0 {
		return fmt.Errorf("PAYROLL_WORKERS must be positive")
	}
	if c.JobQueueSize <= 0 {
		return fmt.Errorf("JOB_QUEUE_SIZE must be positive")
	}
	if c.RateLimitPerMinute < 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must not be negative")
	}
	if strings.TrimSpace(c.TaxLabel) == "" {
		return fmt.Errorf("TAX_LABEL must not be empty")
	}
	return nil
}
