package scrape

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/musicpricehub/backend/internal/catalog"
)

var (
	errLedgerMissingDatabase   = errors.New("database handle is required")
	errLedgerMissingIDProvider = errors.New("id provider is required")
)

// IDProvider issues identifiers for ledger rows.
type IDProvider interface {
	NewID() (string, error)
}

// LedgerConfig describes the dependencies of the scrape task ledger.
type LedgerConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
}

// Ledger records the lifecycle of scrape attempts and their raw payloads.
// Tasks move pending -> ok
// or pending -> error; one Result row is written per product attempt on both
// the success and the failure path, so the ledger is a complete audit trail.
type Ledger struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider IDProvider
	logger     *zap.Logger
}

// NewLedger validates the configuration and constructs a Ledger.
func NewLedger(cfg LedgerConfig) (*Ledger, error) {
	if cfg.Database == nil {
		return nil, errLedgerMissingDatabase
	}
	if cfg.IDProvider == nil {
		return nil, errLedgerMissingIDProvider
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{db: cfg.Database, clock: clock, idProvider: cfg.IDProvider, logger: logger}, nil
}

// Begin inserts a pending Task bracketing the attempt for one product URL.
func (l *Ledger) Begin(ctx context.Context, storeID, productURL string) (Task, error) {
	id, err := l.idProvider.NewID()
	if err != nil {
		return Task{}, err
	}
	task := Task{
		ID:        id,
		StoreID:   storeID,
		StartedAt: l.clock().UTC(),
		Status:    TaskStatusPending,
		Detail:    fmt.Sprintf("scraping product %s", productURL),
	}
	if err := l.db.WithContext(ctx).Create(&task).Error; err != nil {
		return Task{}, err
	}
	return task, nil
}

// Succeed writes the extracted payload as an ok Result and closes the task.
func (l *Ledger) Succeed(ctx context.Context, task Task, fields catalog.ScrapedFields) error {
	now := l.clock().UTC()
	payload, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		resultID, err := l.idProvider.NewID()
		if err != nil {
			return err
		}
		result := Result{
			ID:         resultID,
			TaskID:     task.ID,
			ProductURL: fields.SourceURL,
			Payload:    string(payload),
			ObtainedAt: now,
			Status:     ResultStatusOK,
		}
		if err := tx.Create(&result).Error; err != nil {
			return err
		}
		return tx.Model(&Task{}).Where("id = ?", task.ID).Updates(map[string]interface{}{
			"status":      TaskStatusOK,
			"finished_at": now,
		}).Error
	})
}

// Fail records the cause as an error Result and closes the task with the
// cause in its detail text.
func (l *Ledger) Fail(ctx context.Context, task Task, productURL string, cause error) error {
	now := l.clock().UTC()
	payload, err := json.Marshal(catalog.ScrapedFields{SourceURL: productURL})
	if err != nil {
		return err
	}
	txErr := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		resultID, err := l.idProvider.NewID()
		if err != nil {
			return err
		}
		result := Result{
			ID:         resultID,
			TaskID:     task.ID,
			ProductURL: productURL,
			Payload:    string(payload),
			ObtainedAt: now,
			Status:     ResultStatusError,
		}
		if err := tx.Create(&result).Error; err != nil {
			return err
		}
		return tx.Model(&Task{}).Where("id = ?", task.ID).Updates(map[string]interface{}{
			"status":      TaskStatusError,
			"finished_at": now,
			"detail":      fmt.Sprintf("error: %v", cause),
		}).Error
	})
	if txErr != nil {
		l.logger.Error("failed to record scrape failure",
			zap.String("task_id", task.ID),
			zap.String("product_url", productURL),
			zap.Error(txErr))
	}
	return txErr
}

// RecentTasks returns the newest ledger rows for the audit surface.
func (l *Ledger) RecentTasks(ctx context.Context, limit int) ([]Task, error) {
	if limit <= 0 {
		limit = 50
	}
	var tasks []Task
	if err := l.db.WithContext(ctx).
		Order("started_at DESC").
		Limit(limit).
		Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// ResultsForTask returns the per-product rows recorded under one task.
func (l *Ledger) ResultsForTask(ctx context.Context, taskID string) ([]Result, error) {
	var results []Result
	if err := l.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Order("obtained_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
