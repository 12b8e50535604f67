package repositories

import (
	"fmt"

	"github.com/rohits-web03/chainforge/internal/models"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ConnectDatabase opens the Postgres database named by dsn.
func ConnectDatabase(dsn string, log *zap.Logger) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("DB_URL is not set")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	log.Info("Successfully connected to database")
	return db, nil
}

// Migrate creates or updates the tables for every model.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Contract{},
	); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	// Folder names are unique at the top level, which keeps the shared root
	// folder single under concurrent first use.
	if err := db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_contracts_root_folder_name
		ON contracts (name) WHERE type = 'folder' AND parent_id IS NULL`).Error; err != nil {
		return fmt.Errorf("create root folder index: %w", err)
	}
	return nil
}
