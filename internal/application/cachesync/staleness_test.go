package cachesync

import (
	"testing"
	"time"

	"github.com/erp/portal/internal/domain/masterdata"
	"github.com/stretchr/testify/assert"
)

func TestNeedsSync(t *testing.T) {
	now := testEpoch
	ok := &masterdata.SyncLedgerEntry{CacheKey: "Products", LastSyncedAt: now.Add(-30 * time.Minute), ItemCount: 10, SyncSuccessful: true}
	old := &masterdata.SyncLedgerEntry{CacheKey: "Products", LastSyncedAt: now.Add(-61 * time.Minute), ItemCount: 10, SyncSuccessful: true}
	failed := &masterdata.SyncLedgerEntry{CacheKey: "Products", LastSyncedAt: now, SyncSuccessful: false, LastError: "timeout"}

	tests := []struct {
		name  string
		entry *masterdata.SyncLedgerEntry
		count int64
		force bool
		want  bool
	}{
		{"never synced", nil, 10, false, true},
		{"empty store", ok, 0, false, true},
		{"last sync failed", failed, 10, false, true},
		{"older than interval", old, 10, false, true},
		{"within interval", ok, 10, false, false},
		{"forced", ok, 10, true, true},
		{"exactly at interval", &masterdata.SyncLedgerEntry{LastSyncedAt: now.Add(-time.Hour), SyncSuccessful: true}, 1, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NeedsSync(tt.entry, tt.count, tt.force, now, time.Hour)
			assert.Equal(t, tt.want, got)
			// same inputs, same answer
			assert.Equal(t, got, NeedsSync(tt.entry, tt.count, tt.force, now, time.Hour))
		})
	}
}
