package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MeterName is the instrumentation scope of the sync engine metrics
const MeterName = "erp-portal/cachesync"

// Metric attribute keys
var (
	AttrEntity = attribute.Key("entity")
	AttrStatus = attribute.Key("status")
	AttrHit    = attribute.Key("hit")
)

// CrawlDurationBuckets are bucket boundaries for crawl duration (seconds).
// Crawls of large entities take minutes.
var CrawlDurationBuckets = []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600, 1800}

// SyncMetrics records crawl and snapshot metrics
type SyncMetrics struct {
	crawls        metric.Int64Counter
	crawlDuration metric.Float64Histogram
	crawledItems  metric.Int64Counter
	crawledPages  metric.Int64Counter
	skippedItems  metric.Int64Counter
	snapshotReads metric.Int64Counter
}

// NewSyncMetrics creates the instruments on meter
func NewSyncMetrics(meter metric.Meter) (*SyncMetrics, error) {
	var (
		m   SyncMetrics
		err error
	)

	if m.crawls, err = meter.Int64Counter("masterdata_crawls_total",
		metric.WithDescription("Finished crawls by entity and status"),
		metric.WithUnit("{crawl}")); err != nil {
		return nil, fmt.Errorf("failed to create counter masterdata_crawls_total: %w", err)
	}
	if m.crawlDuration, err = meter.Float64Histogram("masterdata_crawl_duration_seconds",
		metric.WithDescription("Crawl duration"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(CrawlDurationBuckets...)); err != nil {
		return nil, fmt.Errorf("failed to create histogram masterdata_crawl_duration_seconds: %w", err)
	}
	if m.crawledItems, err = meter.Int64Counter("masterdata_crawled_items_total",
		metric.WithDescription("Items written by crawls"),
		metric.WithUnit("{item}")); err != nil {
		return nil, fmt.Errorf("failed to create counter masterdata_crawled_items_total: %w", err)
	}
	if m.crawledPages, err = meter.Int64Counter("masterdata_crawled_pages_total",
		metric.WithDescription("Upstream pages fetched"),
		metric.WithUnit("{page}")); err != nil {
		return nil, fmt.Errorf("failed to create counter masterdata_crawled_pages_total: %w", err)
	}
	if m.skippedItems, err = meter.Int64Counter("masterdata_skipped_items_total",
		metric.WithDescription("Upstream items dropped as malformed"),
		metric.WithUnit("{item}")); err != nil {
		return nil, fmt.Errorf("failed to create counter masterdata_skipped_items_total: %w", err)
	}
	if m.snapshotReads, err = meter.Int64Counter("masterdata_snapshot_reads_total",
		metric.WithDescription("Reads served from, or missing, the in-memory snapshot"),
		metric.WithUnit("{read}")); err != nil {
		return nil, fmt.Errorf("failed to create counter masterdata_snapshot_reads_total: %w", err)
	}

	return &m, nil
}

// RecordCrawl records one finished crawl
func (m *SyncMetrics) RecordCrawl(ctx context.Context, entity, status string, items, pages int, duration time.Duration) {
	byEntity := metric.WithAttributes(AttrEntity.String(entity))

	m.crawls.Add(ctx, 1, metric.WithAttributes(AttrEntity.String(entity), AttrStatus.String(status)))
	m.crawlDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(AttrEntity.String(entity), AttrStatus.String(status)))
	if items > 0 {
		m.crawledItems.Add(ctx, int64(items), byEntity)
	}
	if pages > 0 {
		m.crawledPages.Add(ctx, int64(pages), byEntity)
	}
}

// RecordSkippedItems counts malformed upstream items
func (m *SyncMetrics) RecordSkippedItems(ctx context.Context, entity string, n int) {
	if n <= 0 {
		return
	}
	m.skippedItems.Add(ctx, int64(n), metric.WithAttributes(AttrEntity.String(entity)))
}

// RecordSnapshotRead counts a snapshot hit or miss
func (m *SyncMetrics) RecordSnapshotRead(ctx context.Context, entity string, hit bool) {
	m.snapshotReads.Add(ctx, 1, metric.WithAttributes(AttrEntity.String(entity), AttrHit.Bool(hit)))
}
