package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestReadDefaults(t *testing.T) {
	t.Setenv("LOOPLIB_AUTH_JWT_SECRET", "test-secret")
	t.Setenv("LOOPLIB_STORAGE_PROVIDER", "local")

	cfg, err := Read(viper.New())
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	if cfg.Storage.Bucket != "looplib-audio-bucket" {
		t.Errorf("bucket = %q", cfg.Storage.Bucket)
	}
	if cfg.Storage.PresignTTL != 15*time.Minute {
		t.Errorf("presign ttl = %v", cfg.Storage.PresignTTL)
	}
	if cfg.Library.FetchConcurrency != 8 {
		t.Errorf("fetch concurrency = %d", cfg.Library.FetchConcurrency)
	}
	if cfg.Library.CacheTTL != time.Minute {
		t.Errorf("cache ttl = %v", cfg.Library.CacheTTL)
	}
	if cfg.Profiles.Backend != "mongo" {
		t.Errorf("profiles backend = %q", cfg.Profiles.Backend)
	}
}

func TestReadEnvOverrides(t *testing.T) {
	t.Setenv("LOOPLIB_AUTH_JWT_SECRET", "test-secret")
	t.Setenv("LOOPLIB_STORAGE_PROVIDER", "local")
	t.Setenv("LOOPLIB_STORAGE_URL_MODE", "proxy")
	t.Setenv("LOOPLIB_LIBRARY_LIST_TIMEOUT", "5s")
	t.Setenv("LOOPLIB_PROFILES_BACKEND", "sql")

	cfg, err := Read(viper.New())
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if cfg.Storage.URLMode != "proxy" {
		t.Errorf("url mode = %q", cfg.Storage.URLMode)
	}
	if cfg.Library.ListTimeout != 5*time.Second {
		t.Errorf("list timeout = %v", cfg.Library.ListTimeout)
	}
	if cfg.Profiles.Backend != "sql" {
		t.Errorf("profiles backend = %q", cfg.Profiles.Backend)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"ok", func(c *Config) {}, false},
		{"missing secret", func(c *Config) { c.Auth.JWTSecret = "" }, true},
		{"s3 without key", func(c *Config) { c.Storage.Provider = "s3" }, true},
		{"unknown provider", func(c *Config) { c.Storage.Provider = "gcs" }, true},
		{"unknown url mode", func(c *Config) { c.Storage.URLMode = "cdn" }, true},
		{"unknown profiles backend", func(c *Config) { c.Profiles.Backend = "redis" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c Config
			c.Auth.JWTSecret = "s"
			c.Storage.Provider = "local"
			c.Storage.URLMode = "public"
			c.Profiles.Backend = "sql"
			tt.mutate(&c)

			err := c.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
