package database

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"receipt-sentinel/internal/config"
	"receipt-sentinel/internal/model"
)

// migrated lists every persisted entity. AutoMigrate keeps the schema in
// step across upgrades; there is no separate migration tooling.
var migrated = []interface{}{
	&model.ManualRule{},
	&model.Preference{},
	&model.ProcessedEmail{},
	&model.ProcessingRun{},
	&model.LearningCandidate{},
}

// Open connects to MySQL, applies pool limits and migrates the schema.
// Query logging rides the process logger so slow queries show up in the
// same stream as everything else.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gormLogger := logger.New(logrus.StandardLogger(), logger.Config{
		SlowThreshold:             time.Second,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})

	db, err := gorm.Open(mysql.Open(cfg.GetDSN()), &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying SQL DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(migrated...); err != nil {
		return nil, fmt.Errorf("failed to auto migrate: %w", err)
	}

	logrus.Info("Database initialized")
	return db, nil
}
