package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Port        string `mapstructure:"port"`
		MetricsPort string `mapstructure:"metrics_port"`
		Environment string `mapstructure:"environment"`
		TempDir     string `mapstructure:"temp_dir"`
	} `mapstructure:"server"`
	Log struct {
		Level      string `mapstructure:"level"`
		FilePath   string `mapstructure:"file_path"`
		MaxSizeMB  int    `mapstructure:"max_size_mb"`
		MaxBackups int    `mapstructure:"max_backups"`
		MaxAgeDays int    `mapstructure:"max_age_days"`
	} `mapstructure:"log"`
	Storage struct {
		Provider      string        `mapstructure:"provider"`
		LocalStorage  string        `mapstructure:"local_storage"`
		KeyID         string        `mapstructure:"key_id"`
		AppKey        string        `mapstructure:"app_key"`
		Endpoint      string        `mapstructure:"endpoint"`
		Region        string        `mapstructure:"region"`
		Bucket        string        `mapstructure:"bucket"`
		URLMode       string        `mapstructure:"url_mode"`
		PublicBaseURL string        `mapstructure:"public_base_url"`
		PresignTTL    time.Duration `mapstructure:"presign_ttl"`
	} `mapstructure:"storage"`
	Database struct {
		Host     string `mapstructure:"host"`
		Port     string `mapstructure:"port"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		Name     string `mapstructure:"name"`
		SSLMode  string `mapstructure:"sslmode"`
	} `mapstructure:"database"`
	Mongo struct {
		URI        string `mapstructure:"uri"`
		Database   string `mapstructure:"database"`
		Collection string `mapstructure:"collection"`
	} `mapstructure:"mongo"`
	Profiles struct {
		// mongo or sql
		Backend string `mapstructure:"backend"`
	} `mapstructure:"profiles"`
	Auth struct {
		JWTSecret string        `mapstructure:"jwt_secret"`
		TokenTTL  time.Duration `mapstructure:"token_ttl"`
		RateLimit float64       `mapstructure:"rate_limit"`
		RateBurst int           `mapstructure:"rate_burst"`

		// Seeded in development when both are set.
		DemoEmail    string `mapstructure:"demo_email"`
		DemoPassword string `mapstructure:"demo_password"`
	} `mapstructure:"auth"`
	Library struct {
		FetchConcurrency int           `mapstructure:"fetch_concurrency"`
		ListTimeout      time.Duration `mapstructure:"list_timeout"`
		CacheTTL         time.Duration `mapstructure:"cache_ttl"`
	} `mapstructure:"library"`
	Upload struct {
		MaxFileSizeMB int64 `mapstructure:"max_file_size_mb"`
	} `mapstructure:"upload"`
	Sweep struct {
		Interval time.Duration `mapstructure:"interval"`
		DryRun   bool          `mapstructure:"dry_run"`
	} `mapstructure:"sweep"`
}

var keys = []string{
	"server.port",
	"server.metrics_port",
	"server.environment",
	"server.temp_dir",

	"log.level",
	"log.file_path",
	"log.max_size_mb",
	"log.max_backups",
	"log.max_age_days",

	"storage.provider",
	"storage.local_storage",
	"storage.key_id",
	"storage.app_key",
	"storage.endpoint",
	"storage.region",
	"storage.bucket",
	"storage.url_mode",
	"storage.public_base_url",
	"storage.presign_ttl",

	"database.host",
	"database.port",
	"database.user",
	"database.password",
	"database.name",
	"database.sslmode",

	"mongo.uri",
	"mongo.database",
	"mongo.collection",

	"profiles.backend",

	"auth.jwt_secret",
	"auth.token_ttl",
	"auth.rate_limit",
	"auth.rate_burst",
	"auth.demo_email",
	"auth.demo_password",

	"library.fetch_concurrency",
	"library.list_timeout",
	"library.cache_ttl",

	"upload.max_file_size_mb",

	"sweep.interval",
	"sweep.dry_run",
}

// Load reads config.yaml (if any), a .env file (if any) and LOOPLIB_* environment
// variables. It exits the process on invalid configuration.
func Load() *Config {
	if err := godotenv.Load(); err == nil {
		log.Println("Info: loaded .env file")
	}

	cfg, err := Read(viper.New())
	if err != nil {
		log.Fatalf("Unable to load config: %v", err)
	}
	return cfg
}

// Read resolves the configuration through v. Exposed for tests.
func Read(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix("LOOPLIB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, k := range keys {
		v.BindEnv(k)
	}

	v.SetDefault("server.port", "8081")
	v.SetDefault("server.metrics_port", ":9091")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.temp_dir", "/tmp/")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 30)

	v.SetDefault("storage.provider", "s3")
	v.SetDefault("storage.local_storage", "./data")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.bucket", "looplib-audio-bucket")
	v.SetDefault("storage.url_mode", "public")
	v.SetDefault("storage.presign_ttl", "15m")

	v.SetDefault("database.port", "5432")
	v.SetDefault("database.sslmode", "disable")

	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "looplib")
	v.SetDefault("mongo.collection", "users")

	v.SetDefault("profiles.backend", "mongo")

	v.SetDefault("auth.token_ttl", "24h")
	v.SetDefault("auth.rate_limit", 0.2) // one attempt every 5s on average
	v.SetDefault("auth.rate_burst", 5)

	v.SetDefault("library.fetch_concurrency", 8)
	v.SetDefault("library.list_timeout", "30s")
	v.SetDefault("library.cache_ttl", "1m")

	v.SetDefault("upload.max_file_size_mb", 50)

	v.SetDefault("sweep.interval", "1h")
	v.SetDefault("sweep.dry_run", true)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("../")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			log.Printf("Warning: Config error: %s", err)
		} else {
			log.Println("Info: config.yaml not found, using Environment Variables only.")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the values that have no safe default.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is missing (LOOPLIB_AUTH_JWT_SECRET)")
	}

	switch c.Storage.Provider {
	case "local":
	case "s3":
		if c.Storage.KeyID == "" {
			return errors.New("storage.key_id is missing (LOOPLIB_STORAGE_KEY_ID)")
		}
	default:
		return fmt.Errorf("unknown storage.provider %q", c.Storage.Provider)
	}

	switch c.Storage.URLMode {
	case "public", "presigned", "proxy":
	default:
		return fmt.Errorf("unknown storage.url_mode %q", c.Storage.URLMode)
	}

	switch c.Profiles.Backend {
	case "mongo", "sql":
	default:
		return fmt.Errorf("unknown profiles.backend %q", c.Profiles.Backend)
	}

	if c.Library.FetchConcurrency < 1 {
		c.Library.FetchConcurrency = 1
	}
	return nil
}
