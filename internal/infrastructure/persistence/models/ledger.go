package models

import (
	"time"

	"github.com/erp/portal/internal/domain/masterdata"
)

// SyncLedgerModel is the persistence model for the sync ledger, one row per cache key
type SyncLedgerModel struct {
	CacheKey       string    `gorm:"type:varchar(100);primaryKey"`
	LastSyncedAt   time.Time `gorm:"not null"`
	ItemCount      int       `gorm:"not null"`
	SyncSuccessful bool      `gorm:"not null"`
	LastError      string    `gorm:"type:text"`
	UpdatedAt      time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SyncLedgerModel) TableName() string {
	return "sync_ledger"
}

// SyncLedgerModelFromDomain creates a row from a ledger entry
func SyncLedgerModelFromDomain(e masterdata.SyncLedgerEntry) SyncLedgerModel {
	return SyncLedgerModel{
		CacheKey:       e.CacheKey,
		LastSyncedAt:   e.LastSyncedAt,
		ItemCount:      e.ItemCount,
		SyncSuccessful: e.SyncSuccessful,
		LastError:      e.LastError,
	}
}

// ToDomain converts the row to a ledger entry
func (m *SyncLedgerModel) ToDomain() *masterdata.SyncLedgerEntry {
	return &masterdata.SyncLedgerEntry{
		CacheKey:       m.CacheKey,
		LastSyncedAt:   m.LastSyncedAt,
		ItemCount:      m.ItemCount,
		SyncSuccessful: m.SyncSuccessful,
		LastError:      m.LastError,
	}
}

// AllModels lists every model, for AutoMigrate in tests and local development
func AllModels() []any {
	return []any{
		&ProductModel{},
		&BusinessPartnerModel{},
		&WarehouseModel{},
		&GLAccountModel{},
		&CostCentreModel{},
		&PriceModel{},
		&WarehouseStockModel{},
		&InventoryTransferModel{},
		&IncomingPaymentModel{},
		&SyncLedgerModel{},
	}
}
