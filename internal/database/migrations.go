package database

import (
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationBackfillOfferStoreIDs = "2026-05-18_backfill_offer_store_ids"

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationBackfillOfferStoreIDs, apply: backfillOfferStoreIDs},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// backfillOfferStoreIDs repairs offers written before the cached store and
// product id columns were populated, copying them from the owning
// store-product row.
func backfillOfferStoreIDs(db *gorm.DB) error {
	update := `UPDATE current_offers SET
		store_id = (SELECT store_id FROM store_products WHERE store_products.id = current_offers.store_product_id),
		product_id = (SELECT product_id FROM store_products WHERE store_products.id = current_offers.store_product_id)
	WHERE (store_id = '' OR product_id = '')
	AND EXISTS (SELECT 1 FROM store_products WHERE store_products.id = current_offers.store_product_id);`
	return db.Exec(update).Error
}
