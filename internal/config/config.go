package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Source   SourceConfig   `mapstructure:"source"`
	Ingest   IngestConfig   `mapstructure:"ingest"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	Events   EventsConfig   `mapstructure:"events"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
}

type ServerConfig struct {
	Port int        `mapstructure:"port"`
	Mode string     `mapstructure:"mode"`
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Path            string        `mapstructure:"path"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
	LogLevel        string        `mapstructure:"log_level"`
}

// DSN returns the connection string for the configured driver.
func (c *DatabaseConfig) DSN() string {
	if c.Driver == "postgres" {
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
	}
	return c.Path
}

type SourceConfig struct {
	// Driver is vpic (the live registry) or staging (a local directory).
	Driver      string `mapstructure:"driver"`
	StagingPath string `mapstructure:"staging_path"`

	BaseURL   string        `mapstructure:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	RateLimit float64       `mapstructure:"rate_limit"`
	RateBurst int           `mapstructure:"rate_burst"`
	UserAgent string        `mapstructure:"user_agent"`
}

type IngestConfig struct {
	MaxAttempts    int           `mapstructure:"max_attempts"`
	BackoffBase    time.Duration `mapstructure:"backoff_base"`
	BackoffMax     time.Duration `mapstructure:"backoff_max"`
	BatchSize      int           `mapstructure:"batch_size"`
	PublishRetries int           `mapstructure:"publish_retries"`
	Schedule       string        `mapstructure:"schedule"`
}

type CatalogConfig struct {
	DefaultPageSize int `mapstructure:"default_page_size"`
	MaxPageSize     int `mapstructure:"max_page_size"`
}

type EventsConfig struct {
	Driver string       `mapstructure:"driver"`
	Valkey ValkeyConfig `mapstructure:"valkey"`
	NATS   NATSConfig   `mapstructure:"nats"`
}

type ValkeyConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	Stream   string `mapstructure:"stream"`
}

type NATSConfig struct {
	URL           string `mapstructure:"url"`
	Stream        string `mapstructure:"stream"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

type ArchiveConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Type      string `mapstructure:"type"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	Prefix    string `mapstructure:"prefix"`
}

func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// Enable environment variable override
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Bind environment variables explicitly for sensitive data
	v.BindEnv("database.password", "DATABASE_PASSWORD")
	v.BindEnv("events.valkey.password", "VALKEY_PASSWORD")
	v.BindEnv("events.nats.url", "NATS_URL")
	v.BindEnv("archive.access_key", "S3_ACCESS_KEY")
	v.BindEnv("archive.secret_key", "S3_SECRET_KEY")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/catalog.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.dbname", "vehicle_catalog")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("source.driver", "vpic")
	v.SetDefault("source.staging_path", "./data/staging")
	v.SetDefault("source.base_url", "https://vpic.nhtsa.dot.gov/api/vehicles")
	v.SetDefault("source.timeout", 15*time.Second)
	v.SetDefault("source.rate_limit", 5.0)
	v.SetDefault("source.rate_burst", 1)
	v.SetDefault("source.user_agent", "vehicle-catalog/1.0")

	v.SetDefault("ingest.max_attempts", 3)
	v.SetDefault("ingest.backoff_base", 500*time.Millisecond)
	v.SetDefault("ingest.backoff_max", 10*time.Second)
	v.SetDefault("ingest.batch_size", 50)
	v.SetDefault("ingest.publish_retries", 3)
	v.SetDefault("ingest.schedule", "")

	v.SetDefault("catalog.default_page_size", 20)
	v.SetDefault("catalog.max_page_size", 100)

	v.SetDefault("events.driver", "log")
	v.SetDefault("events.valkey.addr", "localhost:6379")
	v.SetDefault("events.valkey.stream", "vehicle-catalog:events")
	v.SetDefault("events.nats.url", "nats://localhost:4222")
	v.SetDefault("events.nats.stream", "VEHICLE_CATALOG")
	v.SetDefault("events.nats.subject_prefix", "catalog")

	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.type", "minio")
	v.SetDefault("archive.endpoint", "localhost:9000")
	v.SetDefault("archive.use_ssl", false)
	v.SetDefault("archive.bucket", "vehicle-catalog")
	v.SetDefault("archive.prefix", "snapshots")
}

// Validate rejects settings the services cannot run with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("database: unknown driver %q", c.Database.Driver)
	}
	switch c.Source.Driver {
	case "vpic":
		if c.Source.BaseURL == "" {
			return fmt.Errorf("source: base_url is required")
		}
	case "staging":
		if c.Source.StagingPath == "" {
			return fmt.Errorf("source: staging_path is required")
		}
	default:
		return fmt.Errorf("source: unknown driver %q", c.Source.Driver)
	}
	if c.Ingest.MaxAttempts <= 0 {
		return fmt.Errorf("ingest: max_attempts must be positive")
	}
	if c.Ingest.BatchSize <= 0 {
		return fmt.Errorf("ingest: batch_size must be positive")
	}
	if c.Ingest.PublishRetries < 0 {
		return fmt.Errorf("ingest: publish_retries must not be negative")
	}
	if c.Catalog.DefaultPageSize <= 0 || c.Catalog.MaxPageSize <= 0 {
		return fmt.Errorf("catalog: page sizes must be positive")
	}
	if c.Catalog.DefaultPageSize > c.Catalog.MaxPageSize {
		return fmt.Errorf("catalog: default_page_size exceeds max_page_size")
	}
	switch c.Events.Driver {
	case "log", "valkey", "nats":
	default:
		return fmt.Errorf("events: unknown driver %q", c.Events.Driver)
	}
	if c.Archive.Enabled {
		switch c.Archive.Type {
		case "s3", "r2", "minio", "s3compatible":
		default:
			return fmt.Errorf("archive: unknown type %q", c.Archive.Type)
		}
		if c.Archive.Bucket == "" {
			return fmt.Errorf("archive: bucket is required")
		}
	}
	return nil
}
