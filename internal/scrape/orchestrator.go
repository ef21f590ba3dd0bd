package scrape

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/musicpricehub/backend/internal/catalog"
)

var (
	errMissingDatabase = errors.New("database handle is required")
	errMissingFetcher  = errors.New("page fetcher is required")
	errMissingExtract  = errors.New("extractor is required")
	errMissingCatalog  = errors.New("catalog service is required")
	errMissingLedger   = errors.New("ledger is required")
)

// CatalogSynchronizer folds extracted fields into the product catalog.
type CatalogSynchronizer interface {
	SyncFromScrape(ctx context.Context, store catalog.Store, fields catalog.ScrapedFields) (catalog.Product, error)
}

// OrchestratorConfig describes the dependencies of one store's scrape pipeline.
type OrchestratorConfig struct {
	Database  *gorm.DB
	Fetcher   PageFetcher
	Extractor Extractor
	Catalog   CatalogSynchronizer
	Ledger    *Ledger
	Logger    *zap.Logger
}

// Orchestrator drives the fetch -> extract -> synchronize pipeline over every
// active store-product of a store, strictly sequentially. A failure on one
// URL is recorded in the ledger and never aborts the rest of the batch.
type Orchestrator struct {
	db        *gorm.DB
	fetcher   PageFetcher
	extractor Extractor
	catalog   CatalogSynchronizer
	ledger    *Ledger
	logger    *zap.Logger
}

// RunSummary reports the outcome of one orchestrator pass.
type RunSummary struct {
	StoreID   string        `json:"store_id"`
	Attempted int           `json:"attempted"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Elapsed   time.Duration `json:"elapsed_ns"`
}

// NewOrchestrator validates the configuration and constructs an Orchestrator.
func NewOrchestrator(cfg OrchestratorConfig) (*Orchestrator, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	if cfg.Fetcher == nil {
		return nil, errMissingFetcher
	}
	if cfg.Extractor == nil {
		return nil, errMissingExtract
	}
	if cfg.Catalog == nil {
		return nil, errMissingCatalog
	}
	if cfg.Ledger == nil {
		return nil, errMissingLedger
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		db:        cfg.Database,
		fetcher:   cfg.Fetcher,
		extractor: cfg.Extractor,
		catalog:   cfg.Catalog,
		ledger:    cfg.Ledger,
		logger:    logger,
	}, nil
}

// Run scrapes every active store-product URL of the store once. Only the
// inability to enumerate the batch itself is returned as an error; per-URL
// failures are contained and counted in the summary.
func (o *Orchestrator) Run(ctx context.Context, store catalog.Store) (RunSummary, error) {
	started := time.Now()
	summary := RunSummary{StoreID: store.ID}

	var storeProducts []catalog.StoreProduct
	if err := o.db.WithContext(ctx).
		Where("store_id = ? AND active = ?", store.ID, true).
		Order("product_url ASC").
		Find(&storeProducts).Error; err != nil {
		return summary, err
	}
	if len(storeProducts) == 0 {
		o.logger.Info("no active store products to scrape", zap.String("store_id", store.ID))
		return summary, nil
	}

	for _, storeProduct := range storeProducts {
		summary.Attempted++
		if err := o.scrapeOne(ctx, store, storeProduct.ProductURL); err != nil {
			summary.Failed++
			o.logger.Warn("scrape attempt failed",
				zap.String("store_id", store.ID),
				zap.String("product_url", storeProduct.ProductURL),
				zap.Error(err))
			continue
		}
		summary.Succeeded++
	}

	summary.Elapsed = time.Since(started)
	o.logger.Info("scrape run finished",
		zap.String("store_id", store.ID),
		zap.Int("attempted", summary.Attempted),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed))
	return summary, nil
}

func (o *Orchestrator) scrapeOne(ctx context.Context, store catalog.Store, productURL string) error {
	task, err := o.ledger.Begin(ctx, store.ID, productURL)
	if err != nil {
		// A ledger insert failing means the database itself is unreachable.
		return err
	}

	html, err := o.fetcher.Fetch(ctx, productURL)
	if err != nil {
		_ = o.ledger.Fail(ctx, task, productURL, err)
		return err
	}

	fields, err := o.extractor.Extract(html, productURL)
	if err != nil {
		_ = o.ledger.Fail(ctx, task, productURL, err)
		return err
	}

	if _, err := o.catalog.SyncFromScrape(ctx, store, fields); err != nil {
		_ = o.ledger.Fail(ctx, task, productURL, err)
		return err
	}

	return o.ledger.Succeed(ctx, task, fields)
}
