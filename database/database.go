package database

import (
	"fmt"
	"time"

	config "github.com/edlight123/eventhaiti-payouts/configs"
	"github.com/edlight123/eventhaiti-payouts/models"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func Connect(cfg config.DatabaseConfig, log zerolog.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.URL), &gorm.Config{
		PrepareStmt:                              false,
		SkipDefaultTransaction:                   true,
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Warn),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	log.Info().Msg("database connected")
	return db, nil
}

func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.EventEarnings{},
		&models.Ticket{},
		&models.PayoutRequest{},
		&models.Withdrawal{},
		&models.PayoutDestination{},
		&models.VerificationDocument{},
		&models.OrganizerProfile{},
		&models.PlatformPayoutConfig{},
		&models.AuditLog{},
	)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// SeedPlatformConfig inserts the platform payout config row if it is missing. An
// existing row is left untouched.
func SeedPlatformConfig(db *gorm.DB, settlement config.SettlementConfig, prefunding config.PrefundingConfig) error {
	var count int64
	if err := db.Model(&models.PlatformPayoutConfig{}).Where("id = ?", models.PlatformPayoutConfigID).Count(&count).Error; err != nil {
		return fmt.Errorf("check platform payout config: %w", err)
	}
	if count > 0 {
		return nil
	}

	row := models.PlatformPayoutConfig{
		ID:                 models.PlatformPayoutConfigID,
		SettlementHoldDays: settlement.HoldDays,
		MinimumPayoutCents: settlement.MinimumPayoutCents,
		PrefundingEnabled:  prefunding.Enabled,
	}
	if err := db.Create(&row).Error; err != nil {
		return fmt.Errorf("seed platform payout config: %w", err)
	}
	return nil
}
