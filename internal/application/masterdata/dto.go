package masterdata

import (
	"time"

	"github.com/erp/portal/internal/application/cachesync"
	"github.com/erp/portal/internal/domain/masterdata"
)

// ListResponse is the full active set of one cache key
type ListResponse struct {
	Entity string `json:"entity"`
	Scope  string `json:"scope,omitempty"`
	Count  int    `json:"count"`
	Items  any    `json:"items"`
}

// SearchResponse is one page of stored items
type SearchResponse struct {
	Items    any   `json:"items"`
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
}

// SearchQuery binds the search endpoint's query string
type SearchQuery struct {
	Q               string `form:"q" binding:"max=100"`
	Page            int    `form:"page" binding:"omitempty,min=1"`
	PageSize        int    `form:"page_size" binding:"omitempty,min=1,max=500"`
	IncludeInactive bool   `form:"include_inactive"`
}

// InvalidateRequest is the body of the cache invalidation endpoint
type InvalidateRequest struct {
	Entity string `json:"entity" binding:"omitempty,max=50"`
	Scope  string `json:"scope" binding:"omitempty,max=100"`
}

// InvalidateResponse reports how many local snapshots were dropped
type InvalidateResponse struct {
	Entity  string `json:"entity,omitempty"`
	Scope   string `json:"scope,omitempty"`
	Evicted int    `json:"evicted"`
}

// CrawlResultResponse represents a crawl in API responses
type CrawlResultResponse struct {
	Entity     string    `json:"entity"`
	Scope      string    `json:"scope,omitempty"`
	CacheKey   string    `json:"cache_key"`
	Status     string    `json:"status"`
	Items      int       `json:"items"`
	Skipped    int       `json:"skipped_items"`
	Pages      int       `json:"pages"`
	Tombstoned int64     `json:"tombstoned"`
	StartedAt  time.Time `json:"started_at"`
	DurationMs int64     `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
}

// ToCrawlResultResponse converts a crawl result
func ToCrawlResultResponse(r cachesync.CrawlResult) *CrawlResultResponse {
	return &CrawlResultResponse{
		Entity:     r.Entity.String(),
		Scope:      r.Scope,
		CacheKey:   r.CacheKey,
		Status:     string(r.Status),
		Items:      r.Items,
		Skipped:    r.Skipped,
		Pages:      r.Pages,
		Tombstoned: r.Tombstoned,
		StartedAt:  r.StartedAt,
		DurationMs: r.Duration.Milliseconds(),
		Error:      r.ErrorMessage(),
	}
}

// LedgerEntryResponse represents a sync ledger row
type LedgerEntryResponse struct {
	CacheKey       string    `json:"cache_key"`
	LastSyncedAt   time.Time `json:"last_synced_at"`
	ItemCount      int       `json:"item_count"`
	SyncSuccessful bool      `json:"sync_successful"`
	LastError      string    `json:"last_error,omitempty"`
}

// ToLedgerEntryResponse converts a ledger entry
func ToLedgerEntryResponse(e masterdata.SyncLedgerEntry) LedgerEntryResponse {
	return LedgerEntryResponse{
		CacheKey:       e.CacheKey,
		LastSyncedAt:   e.LastSyncedAt,
		ItemCount:      e.ItemCount,
		SyncSuccessful: e.SyncSuccessful,
		LastError:      e.LastError,
	}
}

// SyncStatusResponse represents the sync state of a cache key
type SyncStatusResponse struct {
	Entity           string               `json:"entity"`
	Scope            string               `json:"scope,omitempty"`
	CacheKey         string               `json:"cache_key"`
	LastSync         *LedgerEntryResponse `json:"last_sync"`
	InFlight         bool                 `json:"in_flight"`
	Stale            bool                 `json:"stale"`
	StoreCount       int64                `json:"store_count"`
	SnapshotLoadedAt *time.Time           `json:"snapshot_loaded_at,omitempty"`
	SnapshotSize     int                  `json:"snapshot_size"`
}

// ToSyncStatusResponse converts a sync status
func ToSyncStatusResponse(s *cachesync.SyncStatus) *SyncStatusResponse {
	resp := &SyncStatusResponse{
		Entity:           s.Entity.String(),
		Scope:            s.Scope,
		CacheKey:         s.CacheKey,
		InFlight:         s.InFlight,
		Stale:            s.Stale,
		StoreCount:       s.StoreCount,
		SnapshotLoadedAt: s.SnapshotLoadedAt,
		SnapshotSize:     s.SnapshotSize,
	}
	if s.Entry != nil {
		entry := ToLedgerEntryResponse(*s.Entry)
		resp.LastSync = &entry
	}
	return resp
}

// SyncEventResponse is the payload of one server-sent completion event
type SyncEventResponse struct {
	EventID    string               `json:"event_id"`
	OccurredAt time.Time            `json:"occurred_at"`
	Result     *CrawlResultResponse `json:"result"`
}

// ToSyncEventResponse converts a completion event
func ToSyncEventResponse(evt cachesync.SyncCompleted) SyncEventResponse {
	return SyncEventResponse{
		EventID:    evt.ID.String(),
		OccurredAt: evt.Timestamp,
		Result:     ToCrawlResultResponse(evt.Result),
	}
}
