package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	noOpLogger           = zap.NewNop()

	// ErrMissingProductName indicates the extracted fields carried no product
	// name. The synchronizer aborts before any write; this is a pipeline
	// failure, not a database error.
	ErrMissingProductName = errors.New("catalog: extracted fields missing product name")
	// ErrMissingStore indicates the store row handed to the synchronizer has no id.
	ErrMissingStore = errors.New("catalog: store id is required")
)

// ServiceError wraps a catalog failure with a dotted operation code.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

// Code returns the dotted operation code for the failure.
func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew     = "catalog.service.new"
	opSyncFromScrape = "catalog.sync"
	opListOffers     = "catalog.list_offers"
	opPriceHistory   = "catalog.price_history"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// ServiceConfig describes the dependencies of the catalog service.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
}

// Service owns writes to the Product, StoreProduct, CurrentOffer and
// PriceHistoryEntry tables on behalf of the scrape pipeline.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider IDProvider
	logger     *zap.Logger
}

// NewService validates the configuration and constructs a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{
		db:         cfg.Database,
		clock:      clock,
		idProvider: cfg.IDProvider,
		logger:     logger,
	}, nil
}

// SyncFromScrape folds one extracted field set into the catalog. Within a
// single transaction it resolves or creates the Product (case-insensitive
// name match) and the StoreProduct for (store, source URL), updates the
// StoreProduct's single CurrentOffer in place or inserts it, and always
// appends one PriceHistoryEntry. Either every step commits or none do.
func (s *Service) SyncFromScrape(ctx context.Context, store Store, fields ScrapedFields) (Product, error) {
	if store.ID == "" {
		return Product{}, newServiceError(opSyncFromScrape, "missing_store", ErrMissingStore)
	}
	if fields.Name == nil || *fields.Name == "" {
		return Product{}, newServiceError(opSyncFromScrape, "missing_name", ErrMissingProductName)
	}

	name := *fields.Name
	now := s.clock().UTC()
	price := (*int64)(nil)
	if fields.PriceText != nil {
		price = NormalizePrice(*fields.PriceText)
	}

	var product Product
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("LOWER(name) = LOWER(?)", name).Take(&product).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			productID, idErr := s.idProvider.NewID()
			if idErr != nil {
				return newServiceError(opSyncFromScrape, "id_generation_failed", idErr)
			}
			product = Product{
				ID:    productID,
				Name:  name,
				Brand: fields.DefaultBrand,
				Model: "AutoDetect",
			}
			if err := tx.Create(&product).Error; err != nil {
				return newServiceError(opSyncFromScrape, "product_insert_failed", err)
			}
		} else if err != nil {
			return newServiceError(opSyncFromScrape, "product_select_failed", err)
		}

		var storeProduct StoreProduct
		err = tx.Where("store_id = ? AND product_url = ?", store.ID, fields.SourceURL).
			Take(&storeProduct).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			storeProductID, idErr := s.idProvider.NewID()
			if idErr != nil {
				return newServiceError(opSyncFromScrape, "id_generation_failed", idErr)
			}
			storeProduct = StoreProduct{
				ID:         storeProductID,
				StoreID:    store.ID,
				ProductID:  product.ID,
				ProductURL: fields.SourceURL,
				StoreSKU:   "AUTO",
				Active:     true,
			}
			if err := tx.Create(&storeProduct).Error; err != nil {
				return newServiceError(opSyncFromScrape, "store_product_insert_failed", err)
			}
		} else if err != nil {
			return newServiceError(opSyncFromScrape, "store_product_select_failed", err)
		}

		var offer CurrentOffer
		err = tx.Where("store_product_id = ?", storeProduct.ID).Take(&offer).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			offerID, idErr := s.idProvider.NewID()
			if idErr != nil {
				return newServiceError(opSyncFromScrape, "id_generation_failed", idErr)
			}
			offer = CurrentOffer{
				ID:              offerID,
				StoreProductID:  storeProduct.ID,
				ProductID:       product.ID,
				StoreID:         store.ID,
				PriceMinorUnits: price,
				Currency:        DefaultCurrency,
				Availability:    AvailabilityInStock,
				ListedAt:        now,
				ScrapedAt:       now,
			}
			if err := tx.Create(&offer).Error; err != nil {
				return newServiceError(opSyncFromScrape, "offer_insert_failed", err)
			}
		} else if err != nil {
			return newServiceError(opSyncFromScrape, "offer_select_failed", err)
		} else {
			updates := map[string]interface{}{
				"price_minor_units": price,
				"availability":      AvailabilityInStock,
				"listed_at":         now,
				"scraped_at":        now,
			}
			if err := tx.Model(&CurrentOffer{}).Where("id = ?", offer.ID).Updates(updates).Error; err != nil {
				return newServiceError(opSyncFromScrape, "offer_update_failed", err)
			}
		}

		historyID, idErr := s.idProvider.NewID()
		if idErr != nil {
			return newServiceError(opSyncFromScrape, "id_generation_failed", idErr)
		}
		entry := PriceHistoryEntry{
			ID:              historyID,
			StoreProductID:  storeProduct.ID,
			PriceMinorUnits: price,
			Currency:        DefaultCurrency,
			Availability:    AvailabilityInStock,
			ValidFrom:       now,
			Source:          SourceScraper,
			ScrapedAt:       now,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return newServiceError(opSyncFromScrape, "history_insert_failed", err)
		}

		return nil
	})

	if txErr != nil {
		s.logError(opSyncFromScrape, txErr,
			zap.String("store_id", store.ID),
			zap.String("source_url", fields.SourceURL))
		return Product{}, txErr
	}

	s.logger.Info("catalog synchronized",
		zap.String("store_id", store.ID),
		zap.String("product_id", product.ID),
		zap.String("source_url", fields.SourceURL))
	return product, nil
}

// ListOffers returns every current offer for the given product.
func (s *Service) ListOffers(ctx context.Context, productID string) ([]CurrentOffer, error) {
	var offers []CurrentOffer
	if err := s.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("scraped_at DESC").
		Find(&offers).Error; err != nil {
		return nil, newServiceError(opListOffers, "query_failed", err)
	}
	return offers, nil
}

// PriceHistory returns the observations for one store-product, oldest first.
func (s *Service) PriceHistory(ctx context.Context, storeProductID string) ([]PriceHistoryEntry, error) {
	var entries []PriceHistoryEntry
	if err := s.db.WithContext(ctx).
		Where("store_product_id = ?", storeProductID).
		Order("valid_from ASC").
		Find(&entries).Error; err != nil {
		return nil, newServiceError(opPriceHistory, "query_failed", err)
	}
	return entries, nil
}

func (s *Service) logError(operation string, err error, fields ...zap.Field) {
	attrs := append([]zap.Field{zap.String("operation", operation), zap.Error(err)}, fields...)
	s.logger.Error("catalog service error", attrs...)
}
