package database

import (
	"fmt"

	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/musicpricehub/backend/internal/catalog"
	"github.com/musicpricehub/backend/internal/chat"
	"github.com/musicpricehub/backend/internal/scrape"
)

// OpenSQLite establishes a SQLite connection and performs schema migrations.
func OpenSQLite(path string, logger *zap.Logger) (*gorm.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	models := []interface{}{
		&catalog.Product{},
		&catalog.Store{},
		&catalog.StoreProduct{},
		&catalog.CurrentOffer{},
		&catalog.PriceHistoryEntry{},
		&scrape.Task{},
		&scrape.Result{},
		&chat.Conversation{},
		&chat.Message{},
		&migrationRecord{},
	}
	if err := db.AutoMigrate(models...); err != nil {
		return nil, err
	}

	if err := applyMigrations(db, logger); err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Info("database initialized", zap.String("path", path))
	}

	return db, nil
}
