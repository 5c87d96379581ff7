package cachesync

import (
	"time"

	"github.com/erp/portal/internal/domain/masterdata"
	"github.com/erp/portal/internal/domain/shared"
)

// CrawlStatus is the outcome of a crawl attempt
type CrawlStatus string

const (
	CrawlCompleted CrawlStatus = "completed"
	CrawlFailed    CrawlStatus = "failed"
	// CrawlSkipped means another crawl held the key; nothing was fetched
	CrawlSkipped CrawlStatus = "skipped"
)

// CrawlResult describes one crawl attempt
type CrawlResult struct {
	Entity     masterdata.Entity
	Scope      string
	CacheKey   string
	Status     CrawlStatus
	Items      int
	Skipped    int
	Pages      int
	Tombstoned int64
	StartedAt  time.Time
	Duration   time.Duration
	Err        error
}

// Succeeded reports whether the crawl completed
func (r CrawlResult) Succeeded() bool {
	return r.Status == CrawlCompleted
}

// ErrorMessage returns the failure text, or "" when the crawl did not fail
func (r CrawlResult) ErrorMessage() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// EventTypeSyncCompleted is the event type of SyncCompleted
const EventTypeSyncCompleted = "masterdata.sync_completed"

// SyncCompleted is emitted after every crawl that ran, successful or not.
// AggregateKey is the cache key.
type SyncCompleted struct {
	shared.BaseDomainEvent
	Entity masterdata.Entity
	Scope  string
	Result CrawlResult
}

func newSyncCompleted(res CrawlResult, at time.Time) SyncCompleted {
	return SyncCompleted{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSyncCompleted, res.CacheKey, at),
		Entity:          res.Entity,
		Scope:           res.Scope,
		Result:          res,
	}
}

// SyncStatus is the sync state of one cache key
type SyncStatus struct {
	Entity   masterdata.Entity
	Scope    string
	CacheKey string
	// Entry is nil when the key was never synced
	Entry *masterdata.SyncLedgerEntry
	// InFlight is true while a crawl holds the key
	InFlight bool
	// Stale is true when the next read would trigger a crawl
	Stale            bool
	StoreCount       int64
	SnapshotLoadedAt *time.Time
	SnapshotSize     int
}
