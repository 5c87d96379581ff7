package cachesync

import (
	"time"

	"github.com/erp/portal/internal/domain/masterdata"
)

// NeedsSync decides whether the store has to be crawled again. It does no I/O:
// the caller supplies the ledger entry (nil if never synced) and the number of
// active rows in the store.
func NeedsSync(entry *masterdata.SyncLedgerEntry, storeCount int64, forceRefresh bool, now time.Time, interval time.Duration) bool {
	switch {
	case forceRefresh:
		return true
	case entry == nil:
		return true
	case storeCount == 0:
		return true
	case !entry.SyncSuccessful:
		return true
	}
	return now.Sub(entry.LastSyncedAt) > interval
}
