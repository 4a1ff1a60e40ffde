package database

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"myautowhiz-backend/internal/config"
)

// DB is the global database instance
var DB *gorm.DB

// NewLogger routes gorm's slow-query and error output through logrus.
func NewLogger(level logger.LogLevel) logger.Interface {
	return logger.New(logrus.StandardLogger(), logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
	})
}

// InitDatabase initializes the database connection
func InitDatabase(cfg *config.Config) error {
	db, err := gorm.Open(postgres.Open(cfg.PostgresDSN()), &gorm.Config{
		Logger:         NewLogger(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(int(config.GetInt64("DB_MAX_OPEN_CONNS", 25)))
	sqlDB.SetMaxIdleConns(int(config.GetInt64("DB_MAX_IDLE_CONNS", 5)))
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	DB = db
	logrus.WithFields(logrus.Fields{
		"host": cfg.DBHost,
		"name": cfg.DBName,
	}).Info("database connected")
	return nil
}

// RunMigrations runs all database migrations
func RunMigrations(db *gorm.DB, models ...interface{}) error {
	if db == nil {
		logrus.Warn("skipping migrations: no database connection")
		return nil
	}

	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	logrus.WithField("models", len(models)).Info("database migrations completed")
	return nil
}

// Ping checks that the database answers within the context deadline.
func Ping(ctx context.Context, db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database not initialized")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
