package database

import (
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/unipet/billing-engine/internal/config"
	"github.com/unipet/billing-engine/internal/models"
)

var DB *gorm.DB

func Connect(cfg *config.Config) error {
	var err error
	DB, err = gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
		// Unique violations surface as gorm.ErrDuplicatedKey
		TranslateError: true,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetMaxIdleConns(25)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	slog.Info("database connected")
	return nil
}

// Migrate runs AutoMigrate for every billing table.
func Migrate() error {
	if err := DB.AutoMigrate(
		&models.Client{},
		&models.Plan{},
		&models.Pet{},
		&models.Contract{},
		&models.PaymentReceipt{},
		&models.SystemLog{},
	); err != nil {
		return err
	}

	// Coverage recorded before received_payment_id existed was funded by payment_id
	res := DB.Model(&models.Contract{}).
		Where("received_date IS NOT NULL AND (received_payment_id IS NULL OR received_payment_id = '')").
		Update("received_payment_id", gorm.Expr("payment_id"))
	if res.Error != nil {
		return fmt.Errorf("backfill received_payment_id: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		slog.Info("backfilled received_payment_id", "contracts", res.RowsAffected)
	}
	return nil
}

func Ping() error {
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

func Close() error {
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
