package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/portal/internal/domain/masterdata"
	"github.com/erp/portal/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormSyncLedgerRepository implements masterdata.SyncLedgerRepository using GORM
type GormSyncLedgerRepository struct {
	db *gorm.DB
}

// NewGormSyncLedgerRepository creates a new GormSyncLedgerRepository
func NewGormSyncLedgerRepository(db *gorm.DB) *GormSyncLedgerRepository {
	return &GormSyncLedgerRepository{db: db}
}

var _ masterdata.SyncLedgerRepository = (*GormSyncLedgerRepository)(nil)

// Get returns the entry for cacheKey, or nil when the key has never been synced
func (r *GormSyncLedgerRepository) Get(ctx context.Context, cacheKey string) (*masterdata.SyncLedgerEntry, error) {
	var m models.SyncLedgerModel
	err := r.db.WithContext(ctx).Where("cache_key = ?", cacheKey).Take(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get sync ledger %s: %w", cacheKey, err)
	}
	return m.ToDomain(), nil
}

// Record creates or overwrites the entry for entry.CacheKey
func (r *GormSyncLedgerRepository) Record(ctx context.Context, entry masterdata.SyncLedgerEntry) error {
	entry.LastError = masterdata.TruncateError(entry.LastError)
	m := models.SyncLedgerModelFromDomain(entry)
	m.UpdatedAt = entry.LastSyncedAt

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "cache_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"last_synced_at", "item_count", "sync_successful", "last_error", "updated_at"}),
		}).
		Create(&m).Error
	if err != nil {
		return fmt.Errorf("record sync ledger %s: %w", entry.CacheKey, err)
	}
	return nil
}

// List returns all entries ordered by cache key
func (r *GormSyncLedgerRepository) List(ctx context.Context) ([]masterdata.SyncLedgerEntry, error) {
	var rows []models.SyncLedgerModel
	if err := r.db.WithContext(ctx).Order("cache_key").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list sync ledger: %w", err)
	}
	entries := make([]masterdata.SyncLedgerEntry, len(rows))
	for i := range rows {
		entries[i] = *rows[i].ToDomain()
	}
	return entries, nil
}
