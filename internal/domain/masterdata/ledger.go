package masterdata

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// MaxLastErrorLength bounds the stored error message, in runes
const MaxLastErrorLength = 500

// SyncStamp identifies one crawl run. Every row the run writes carries it, so
// rows the run did not touch can be found afterwards.
type SyncStamp struct {
	At    time.Time
	RunID string
}

// NewSyncStamp starts a new run at the given time
func NewSyncStamp(at time.Time) SyncStamp {
	return SyncStamp{At: at, RunID: uuid.NewString()}
}

// SyncLedgerEntry records the outcome of the latest crawl for one cache key.
// There is exactly one entry per key; it is created on the first attempt and
// overwritten by every completed attempt.
type SyncLedgerEntry struct {
	CacheKey       string    `json:"cacheKey"`
	LastSyncedAt   time.Time `json:"lastSyncedAt"`
	ItemCount      int       `json:"itemCount"`
	SyncSuccessful bool      `json:"syncSuccessful"`
	LastError      string    `json:"lastError,omitempty"`
}

// NewSuccessfulSync builds the ledger entry for a completed crawl
func NewSuccessfulSync(cacheKey string, at time.Time, itemCount int) SyncLedgerEntry {
	return SyncLedgerEntry{
		CacheKey:       cacheKey,
		LastSyncedAt:   at,
		ItemCount:      itemCount,
		SyncSuccessful: true,
	}
}

// NewFailedSync builds the ledger entry for a crawl that aborted with err
func NewFailedSync(cacheKey string, at time.Time, itemCount int, err error) SyncLedgerEntry {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return SyncLedgerEntry{
		CacheKey:       cacheKey,
		LastSyncedAt:   at,
		ItemCount:      itemCount,
		SyncSuccessful: false,
		LastError:      TruncateError(msg),
	}
}

// TruncateError cuts msg to MaxLastErrorLength runes
func TruncateError(msg string) string {
	if utf8.RuneCountInString(msg) <= MaxLastErrorLength {
		return msg
	}
	runes := []rune(msg)
	return string(runes[:MaxLastErrorLength-3]) + "..."
}

// SyncLedgerRepository persists sync ledger entries
type SyncLedgerRepository interface {
	// Get returns the entry for cacheKey, or nil if the key was never synced
	Get(ctx context.Context, cacheKey string) (*SyncLedgerEntry, error)
	// Record creates or overwrites the entry for entry.CacheKey
	Record(ctx context.Context, entry SyncLedgerEntry) error
	// List returns all entries ordered by cache key
	List(ctx context.Context) ([]SyncLedgerEntry, error)
}
