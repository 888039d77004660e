package db

import (
	"fmt"

	"payrouter/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect opens the database and migrates the schema.
func Connect(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database DSN is required")
	}

	conn, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		SkipDefaultTransaction:                   true,
		PrepareStmt:                              true,
		Logger:                                   logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	if err := conn.AutoMigrate(
		&models.Creator{},
		&models.PayoutChannel{},
		&models.ProviderAccountRow{},
		&models.ProxyRule{},
		&models.PayoutProvider{},
		&models.CurrencyRate{},
		&models.Country{},
		&models.VerificationStateRow{},
		&models.Payment{},
		&models.Transfer{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	logrus.Info("Database connected and migrated")
	return conn, nil
}
