package cachesync

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/portal/internal/domain/masterdata"
	"github.com/erp/portal/internal/infrastructure/logger"
	"github.com/erp/portal/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

const ledgerWriteTimeout = 10 * time.Second

// crawlRun is the state of one crawl. It moves between goroutines with the
// crawl lock, never concurrently.
type crawlRun[T any] struct {
	scope     string
	key       string
	stamp     masterdata.SyncStamp
	startedAt time.Time
	page      int
	pages     int
	fetched   int
	skipped   int
	// buffer holds every item of a full-replace crawl until the swap
	buffer []T
}

func (m *Manager[T]) newRun(scope, key string) *crawlRun[T] {
	now := m.opts.clock.Now()
	return &crawlRun[T]{
		scope:     scope,
		key:       key,
		stamp:     masterdata.NewSyncStamp(now),
		startedAt: now,
		page:      1,
	}
}

// crawl fetches the remaining pages of run and finishes it
func (m *Manager[T]) crawl(ctx context.Context, run *crawlRun[T]) CrawlResult {
	ctx, span := telemetry.StartSpan(ctx, "cachesync.crawl",
		telemetry.WithAttribute(telemetry.SpanAttrEntity, m.cfg.Entity.String()),
		telemetry.WithAttribute(telemetry.SpanAttrScope, run.scope),
		telemetry.WithAttribute(telemetry.SpanAttrCacheKey, run.key),
		telemetry.WithAttribute(telemetry.SpanAttrStrategy, string(m.cfg.Strategy)),
	)
	defer span.End()

	var err error
	for more := true; more; {
		if more, err = m.fetchNext(ctx, run); err != nil {
			break
		}
	}

	res := m.finish(ctx, run, err)
	telemetry.SetAttributes(span,
		telemetry.SpanAttrItems, res.Items,
		telemetry.SpanAttrSkipped, res.Skipped,
		telemetry.SpanAttrTombstoned, res.Tombstoned,
	)
	if res.Err != nil {
		telemetry.RecordError(span, res.Err)
	} else {
		telemetry.SetOK(span)
	}
	return res
}

// fetchNext fetches run.page and writes or buffers it. more is false after the
// last page.
func (m *Manager[T]) fetchNext(ctx context.Context, run *crawlRun[T]) (more bool, err error) {
	if run.pages >= m.cfg.MaxPages {
		return false, fmt.Errorf("%w: %s after %d pages", ErrTooManyPages, run.key, run.pages)
	}

	page, err := m.fetcher.FetchPage(ctx, run.scope, run.page, m.cfg.PageSize)
	if err != nil {
		return false, fmt.Errorf("fetch %s page %d: %w", run.key, run.page, err)
	}

	switch m.cfg.Strategy {
	case StrategyIncremental:
		if len(page.Items) > 0 {
			if err := m.store.Upsert(ctx, run.scope, page.Items, run.stamp); err != nil {
				return false, fmt.Errorf("store %s page %d: %w", run.key, run.page, err)
			}
		}
	case StrategyFullReplace:
		run.buffer = append(run.buffer, page.Items...)
	}

	run.pages++
	run.fetched += len(page.Items)
	run.skipped += page.Skipped

	logger.Enrich(ctx, m.logger).Debug("Fetched page",
		zap.Int("page", run.page),
		zap.Int("items", len(page.Items)),
		zap.Int("skipped", page.Skipped),
		zap.Bool("has_more", page.HasMore),
	)
	telemetry.AddEvent(telemetry.SpanFromContext(ctx), "page_fetched",
		telemetry.SpanAttrPage, run.page,
		telemetry.SpanAttrItems, len(page.Items),
	)

	run.page++
	return page.HasMore, nil
}

// finish applies the end-of-crawl write for the strategy and records the
// outcome in the ledger. It is the only place a crawl writes the ledger.
func (m *Manager[T]) finish(ctx context.Context, run *crawlRun[T], crawlErr error) CrawlResult {
	res := CrawlResult{
		Entity:    m.cfg.Entity,
		Scope:     run.scope,
		CacheKey:  run.key,
		Items:     run.fetched,
		Skipped:   run.skipped,
		Pages:     run.pages,
		StartedAt: run.startedAt,
	}

	if crawlErr == nil {
		switch m.cfg.Strategy {
		case StrategyIncremental:
			n, err := m.store.Tombstone(ctx, run.scope, run.stamp.RunID)
			if err != nil {
				crawlErr = fmt.Errorf("tombstone %s: %w", run.key, err)
			}
			res.Tombstoned = n
		case StrategyFullReplace:
			if err := m.store.ReplaceScope(ctx, run.scope, run.buffer, run.stamp); err != nil {
				crawlErr = fmt.Errorf("replace %s: %w", run.key, err)
			}
		}
	}
	run.buffer = nil

	now := m.opts.clock.Now()
	res.Duration = now.Sub(run.startedAt)

	var entry masterdata.SyncLedgerEntry
	if crawlErr != nil {
		res.Status = CrawlFailed
		res.Err = crawlErr
		entry = masterdata.NewFailedSync(run.key, now, run.fetched, crawlErr)
	} else {
		res.Status = CrawlCompleted
		entry = masterdata.NewSuccessfulSync(run.key, now, run.fetched)
	}

	// the crawl deadline may already have passed; the outcome is still recorded
	ledgerCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ledgerWriteTimeout)
	defer cancel()
	if err := m.ledger.Record(ledgerCtx, entry); err != nil {
		logger.Enrich(ctx, m.logger).Error("Failed to record sync ledger entry",
			zap.String("cache_key", run.key),
			zap.Error(err))
	}

	log := logger.Enrich(ctx, m.logger).With(
		zap.String("run_id", run.stamp.RunID),
		zap.Int("items", res.Items),
		zap.Int("skipped", res.Skipped),
		zap.Int("pages", res.Pages),
		zap.Duration("duration", res.Duration),
	)
	if res.Err != nil {
		log.Error("Crawl failed", zap.Error(res.Err))
	} else {
		log.Info("Crawl completed", zap.Int64("tombstoned", res.Tombstoned))
	}

	m.opts.metrics.RecordCrawl(ctx, m.cfg.Entity.String(), string(res.Status), res.Items, res.Pages, res.Duration)
	if res.Skipped > 0 {
		m.opts.metrics.RecordSkippedItems(ctx, m.cfg.Entity.String(), res.Skipped)
	}
	return res
}
