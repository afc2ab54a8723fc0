package database

import (
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"looplib/internal/config"
	"looplib/internal/models"
)

type Client struct {
	DB *gorm.DB
}

// DSN builds the postgres connection string from the database section.
func DSN(cfg *config.Config) string {
	sslmode := cfg.Database.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		cfg.Database.Host,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Name,
		cfg.Database.Port,
		sslmode,
	)
}

func New(cfg *config.Config) (*Client, error) {
	c, err := Open(postgres.Open(DSN(cfg)))
	if err != nil {
		return nil, err
	}

	// Connection Pool Settings
	sqlDB, err := c.DB.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	slog.Info("database connected", "host", cfg.Database.Host, "name", cfg.Database.Name)
	return c, nil
}

// Open connects with any gorm dialector. Tests pass sqlite here.
func Open(dialector gorm.Dialector) (*Client, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return &Client{DB: db}, nil
}

// AutoMigrate creates/updates tables based on struct definitions.
// Profiles only get a table when they are stored in SQL.
func (c *Client) AutoMigrate(withProfiles bool) error {
	tables := []interface{}{&models.Account{}}
	if withProfiles {
		tables = append(tables, &models.Profile{})
	}
	if err := c.DB.AutoMigrate(tables...); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	slog.Info("migrations complete", "tables", len(tables))
	return nil
}

func (c *Client) Close() error {
	sqlDB, err := c.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
