package models

import (
	"time"

	"github.com/erp/portal/internal/domain/masterdata"
)

// SyncColumns are present on every cached row
type SyncColumns struct {
	LastSyncedAt time.Time `gorm:"not null"`
}

// SoftDeleteColumns are present on rows written by incremental upsert. A row not
// seen by the latest complete crawl keeps its data but has IsActive=false.
type SoftDeleteColumns struct {
	SyncColumns
	SyncRunID string `gorm:"type:varchar(36);not null;index"`
	IsActive  bool   `gorm:"not null;index"`
}

func syncColumns(stamp masterdata.SyncStamp) SyncColumns {
	return SyncColumns{LastSyncedAt: stamp.At}
}

func softDeleteColumns(stamp masterdata.SyncStamp) SoftDeleteColumns {
	return SoftDeleteColumns{
		SyncColumns: syncColumns(stamp),
		SyncRunID:   stamp.RunID,
		IsActive:    true,
	}
}
