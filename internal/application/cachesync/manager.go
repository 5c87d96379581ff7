// Package cachesync keeps ERP master data in a two-tier cache: an in-memory
// snapshot per cache key in front of the persistent entity store, refreshed
// from the upstream ERP by paginated crawls.
package cachesync

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/erp/portal/internal/domain/masterdata"
	"github.com/erp/portal/internal/domain/shared"
	"github.com/erp/portal/internal/infrastructure/cache"
	"github.com/erp/portal/internal/infrastructure/logger"
	"github.com/erp/portal/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// Manager serves one entity type. All managers of a process share one
// KeyLockRegistry; a Manager is safe for concurrent use.
type Manager[T any] struct {
	cfg     EntityConfig
	store   Store[T]
	fetcher Fetcher[T]
	ledger  masterdata.SyncLedgerRepository
	locks   *cache.KeyLockRegistry
	opts    options
	logger  *zap.Logger

	mu        sync.RWMutex
	snapshots map[string]snapshot[T]

	subMu       sync.Mutex
	subscribers map[int]chan SyncCompleted
	nextSubID   int
}

type snapshot[T any] struct {
	scope    string
	items    []T
	loadedAt time.Time
}

// NewManager builds a manager for cfg.Entity
func NewManager[T any](
	cfg EntityConfig,
	store Store[T],
	fetcher Fetcher[T],
	ledger masterdata.SyncLedgerRepository,
	locks *cache.KeyLockRegistry,
	opts ...Option,
) (*Manager[T], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if store == nil || fetcher == nil || ledger == nil || locks == nil {
		return nil, fmt.Errorf("%w: %s: store, fetcher, ledger and lock registry are required", ErrInvalidConfig, cfg.Entity)
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	return &Manager[T]{
		cfg:         cfg,
		store:       store,
		fetcher:     fetcher,
		ledger:      ledger,
		locks:       locks,
		opts:        o,
		logger:      o.logger.With(zap.String("entity", cfg.Entity.String())),
		snapshots:   make(map[string]snapshot[T]),
		subscribers: make(map[int]chan SyncCompleted),
	}, nil
}

// Entity returns the managed entity type
func (m *Manager[T]) Entity() masterdata.Entity {
	return m.cfg.Entity
}

// Config returns the entity settings in effect
func (m *Manager[T]) Config() EntityConfig {
	return m.cfg
}

// CacheKey returns the ledger and lock key for scope
func (m *Manager[T]) CacheKey(scope string) string {
	return masterdata.CacheKey(m.cfg.Entity, strings.TrimSpace(scope))
}

func loadLockKey(cacheKey string) string  { return "load:" + cacheKey }
func crawlLockKey(cacheKey string) string { return "crawl:" + cacheKey }

// Get returns all active items of an unscoped entity. See GetScoped.
func (m *Manager[T]) Get(ctx context.Context, forceRefresh bool) ([]T, error) {
	return m.GetScoped(ctx, "", forceRefresh)
}

// GetScoped returns all active items in scope. A fresh snapshot is served
// without I/O. Otherwise the snapshot is reloaded from the store and, when the
// ledger says the data is stale, a crawl is started: in the background when
// the store has data, inline when it is empty or forceRefresh is set.
//
// Crawl failures are never returned; only store read errors are. The returned
// slice is shared with the snapshot and must not be modified.
func (m *Manager[T]) GetScoped(ctx context.Context, scope string, forceRefresh bool) ([]T, error) {
	scope = strings.TrimSpace(scope)
	if err := masterdata.ValidateScope(m.cfg.Entity, scope); err != nil {
		return nil, err
	}
	key := m.CacheKey(scope)

	if !forceRefresh {
		if items, ok := m.freshSnapshot(key); ok {
			m.opts.metrics.RecordSnapshotRead(ctx, m.cfg.Entity.String(), true)
			return items, nil
		}
	}
	m.opts.metrics.RecordSnapshotRead(ctx, m.cfg.Entity.String(), false)

	ctx = logger.WithCacheKey(ctx, key)
	ctx, span := telemetry.StartSpan(ctx, "cachesync.get",
		telemetry.WithAttribute(telemetry.SpanAttrEntity, m.cfg.Entity.String()),
		telemetry.WithAttribute(telemetry.SpanAttrCacheKey, key),
		telemetry.WithAttribute(telemetry.SpanAttrForced, forceRefresh),
	)
	defer span.End()

	load, err := m.locks.Acquire(ctx, loadLockKey(key))
	if err != nil {
		return nil, fmt.Errorf("wait for %s snapshot load: %w", key, err)
	}
	// released early before an inline crawl
	defer load.Release()

	if !forceRefresh {
		if items, ok := m.freshSnapshot(key); ok {
			return items, nil
		}
	}

	items, err := m.loadFromStore(ctx, scope, key)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	needed, err := m.needsSync(ctx, scope, key, forceRefresh)
	if err != nil {
		logger.Enrich(ctx, m.logger).Warn("Could not determine staleness, serving stored data", zap.Error(err))
		m.install(scope, key, items)
		return items, nil
	}
	if !needed {
		m.install(scope, key, items)
		return items, nil
	}

	if len(items) > 0 && !forceRefresh {
		m.install(scope, key, items)
		m.refreshInBackground(ctx, scope, key)
		return items, nil
	}

	// readers that find data in the store must not queue behind the crawl
	load.Release()
	items, err = m.crawlInline(ctx, scope, key, forceRefresh)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return items, nil
}

// freshSnapshot is the single freshness check used before and after taking
// the load lock
func (m *Manager[T]) freshSnapshot(key string) ([]T, bool) {
	m.mu.RLock()
	snap, ok := m.snapshots[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if m.opts.clock.Now().Sub(snap.loadedAt) >= m.cfg.SnapshotTTL {
		return nil, false
	}
	return snap.items, true
}

func (m *Manager[T]) loadFromStore(ctx context.Context, scope, key string) ([]T, error) {
	items, err := m.store.LoadActive(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("load %s from store: %w", key, err)
	}
	return items, nil
}

func (m *Manager[T]) install(scope, key string, items []T) {
	m.mu.Lock()
	m.snapshots[key] = snapshot[T]{scope: scope, items: items, loadedAt: m.opts.clock.Now()}
	m.mu.Unlock()
}

func (m *Manager[T]) evict(key string) {
	m.mu.Lock()
	delete(m.snapshots, key)
	m.mu.Unlock()
}

// reload reads the store and installs the result as the snapshot for key. On
// failure the snapshot is dropped so the next read goes back to the store.
func (m *Manager[T]) reload(ctx context.Context, scope, key string) ([]T, error) {
	items, err := m.loadFromStore(ctx, scope, key)
	if err != nil {
		m.evict(key)
		return nil, err
	}
	m.install(scope, key, items)
	return items, nil
}

func (m *Manager[T]) needsSync(ctx context.Context, scope, key string, forceRefresh bool) (bool, error) {
	if forceRefresh {
		return true, nil
	}
	entry, err := m.ledger.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("read sync ledger for %s: %w", key, err)
	}
	count, err := m.store.Count(ctx, scope)
	if err != nil {
		return false, fmt.Errorf("count %s: %w", key, err)
	}
	return NeedsSync(entry, count, false, m.opts.clock.Now(), m.cfg.SyncInterval), nil
}

// crawlInline runs a crawl on the caller's goroutine and returns what the store
// holds afterwards. The crawl lock alone makes it single-flight; the load lock
// is taken again only to install the result.
func (m *Manager[T]) crawlInline(ctx context.Context, scope, key string, forceRefresh bool) ([]T, error) {
	arrived := m.opts.clock.Now()

	crawl, ok := m.locks.TryAcquire(crawlLockKey(key))
	if !ok {
		var err error
		if crawl, err = m.locks.Acquire(ctx, crawlLockKey(key)); err != nil {
			return nil, fmt.Errorf("wait for %s crawl: %w", key, err)
		}
		if !forceRefresh {
			if settled, failed := m.settledSince(ctx, scope, key, arrived); settled {
				crawl.Release()
				return m.installFromStore(ctx, scope, key, failed)
			}
		}
	}

	// the crawl outlives the request; only its own deadline stops it
	crawlCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cfg.CrawlTimeout)
	defer cancel()

	var (
		res       CrawlResult
		handedOff bool
	)
	if !forceRefresh && m.cfg.ColdStart == ColdStartFirstPage {
		res, handedOff = m.crawlFirstPage(crawlCtx, scope, key, crawl)
	} else {
		res = m.crawl(crawlCtx, m.newRun(scope, key))
	}
	if handedOff {
		return m.installFromStore(ctx, scope, key, false)
	}

	crawl.Release()
	items, err := m.installFromStore(ctx, scope, key, !res.Succeeded())
	m.complete(ctx, res)
	return items, err
}

// settledSince reports whether the crawl a reader queued behind has already
// answered for it: an outcome was recorded after the reader arrived, or the
// key is no longer stale. failed is set when that outcome was a failure, in
// which case the reader serves the store as is instead of crawling again.
func (m *Manager[T]) settledSince(ctx context.Context, scope, key string, arrived time.Time) (settled, failed bool) {
	entry, err := m.ledger.Get(ctx, key)
	if err != nil {
		return false, false
	}
	if entry != nil && !entry.LastSyncedAt.Before(arrived) {
		return true, !entry.SyncSuccessful
	}
	needed, err := m.needsSync(ctx, scope, key, false)
	return err == nil && !needed, false
}

// installFromStore reloads the snapshot under the load lock
func (m *Manager[T]) installFromStore(ctx context.Context, scope, key string, crawlFailed bool) ([]T, error) {
	load, err := m.locks.Acquire(ctx, loadLockKey(key))
	if err != nil {
		return nil, fmt.Errorf("wait for %s snapshot load: %w", key, err)
	}
	defer load.Release()

	items, err := m.reload(ctx, scope, key)
	if err == nil && len(items) == 0 && crawlFailed {
		// an empty result of a failed crawl must not be served as fresh
		m.evict(key)
	}
	return items, err
}

// crawlFirstPage fetches page 1 inline and, when there is more, hands the rest
// of the run and the crawl lock to the refresh pool. handedOff reports whether
// the pool now owns the lock.
func (m *Manager[T]) crawlFirstPage(ctx context.Context, scope, key string, crawl *cache.KeyLock) (res CrawlResult, handedOff bool) {
	run := m.newRun(scope, key)

	ctx, span := telemetry.StartSpan(ctx, "cachesync.crawl_first_page",
		telemetry.WithAttribute(telemetry.SpanAttrCacheKey, key),
	)
	defer span.End()

	more, err := m.fetchNext(ctx, run)
	if err != nil || !more {
		return m.finish(ctx, run, err), false
	}

	err = m.opts.pool.Submit(key, func(poolCtx context.Context) {
		m.runBackground(poolCtx, scope, key, crawl, run)
	})
	if err != nil {
		logger.Enrich(ctx, m.logger).Warn("Refresh pool rejected crawl continuation, finishing inline", zap.Error(err))
		return m.crawl(ctx, run), false
	}

	logger.Enrich(ctx, m.logger).Info("Served first page, crawl continues in background",
		zap.Int("items", run.fetched))
	return CrawlResult{}, true
}

// refreshInBackground starts a crawl on the pool unless one is already in flight
func (m *Manager[T]) refreshInBackground(ctx context.Context, scope, key string) bool {
	crawl, ok := m.locks.TryAcquire(crawlLockKey(key))
	if !ok {
		logger.Enrich(ctx, m.logger).Debug("Crawl already in flight, serving stored data")
		return false
	}

	err := m.opts.pool.Submit(key, func(poolCtx context.Context) {
		m.runBackground(poolCtx, scope, key, crawl, nil)
	})
	if err != nil {
		crawl.Release()
		logger.Enrich(ctx, m.logger).Warn("Refresh pool rejected background crawl", zap.Error(err))
		return false
	}
	return true
}

// runBackground finishes (or runs) a crawl on a pool worker. It owns crawl.
func (m *Manager[T]) runBackground(poolCtx context.Context, scope, key string, crawl *cache.KeyLock, run *crawlRun[T]) {
	defer crawl.Release()
	if poolCtx.Err() != nil {
		// the pool stopped before the job ran
		return
	}

	ctx := logger.WithCacheKey(poolCtx, key)
	crawlCtx, cancel := context.WithTimeout(ctx, m.cfg.CrawlTimeout)
	defer cancel()

	if run == nil {
		run = m.newRun(scope, key)
	}
	res := m.crawl(crawlCtx, run)

	// readers queued on the crawl lock go on to read the store themselves
	crawl.Release()
	m.reloadAfterCrawl(context.WithoutCancel(ctx), scope, key)
	m.complete(ctx, res)
}

func (m *Manager[T]) reloadAfterCrawl(ctx context.Context, scope, key string) {
	load, err := m.locks.Acquire(ctx, loadLockKey(key))
	if err != nil {
		m.evict(key)
		return
	}
	defer load.Release()

	if _, err := m.reload(ctx, scope, key); err != nil {
		logger.Enrich(ctx, m.logger).Warn("Snapshot reload after crawl failed", zap.Error(err))
	}
}

// Sync crawls scope now and waits for the result. If a crawl for the key is
// already in flight nothing is fetched and the result is CrawlSkipped.
func (m *Manager[T]) Sync(ctx context.Context, scope string) CrawlResult {
	scope = strings.TrimSpace(scope)
	key := m.CacheKey(scope)
	if err := masterdata.ValidateScope(m.cfg.Entity, scope); err != nil {
		return CrawlResult{Entity: m.cfg.Entity, Scope: scope, CacheKey: key, Status: CrawlFailed, Err: err}
	}

	crawl, ok := m.locks.TryAcquire(crawlLockKey(key))
	if !ok {
		logger.Enrich(ctx, m.logger).Info("Sync skipped, crawl already in progress", zap.String("cache_key", key))
		return CrawlResult{
			Entity:    m.cfg.Entity,
			Scope:     scope,
			CacheKey:  key,
			Status:    CrawlSkipped,
			StartedAt: m.opts.clock.Now(),
		}
	}

	ctx = logger.WithCacheKey(context.WithoutCancel(ctx), key)
	crawlCtx, cancel := context.WithTimeout(ctx, m.cfg.CrawlTimeout)
	defer cancel()

	res := m.crawl(crawlCtx, m.newRun(scope, key))
	crawl.Release()
	m.reloadAfterCrawl(ctx, scope, key)
	m.complete(ctx, res)
	return res
}

// Refresh starts a background crawl of scope if the ledger says it is stale.
// It reports whether a crawl was queued.
func (m *Manager[T]) Refresh(ctx context.Context, scope string) (bool, error) {
	scope = strings.TrimSpace(scope)
	if err := masterdata.ValidateScope(m.cfg.Entity, scope); err != nil {
		return false, err
	}
	key := m.CacheKey(scope)

	needed, err := m.needsSync(ctx, scope, key, false)
	if err != nil || !needed {
		return false, err
	}
	return m.refreshInBackground(logger.WithCacheKey(ctx, key), scope, key), nil
}

// GetSyncStatus returns the ledger entry and cache state of scope
func (m *Manager[T]) GetSyncStatus(ctx context.Context, scope string) (*SyncStatus, error) {
	scope = strings.TrimSpace(scope)
	if err := masterdata.ValidateScope(m.cfg.Entity, scope); err != nil {
		return nil, err
	}
	key := m.CacheKey(scope)

	entry, err := m.ledger.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("read sync ledger for %s: %w", key, err)
	}
	count, err := m.store.Count(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("count %s: %w", key, err)
	}

	status := &SyncStatus{
		Entity:     m.cfg.Entity,
		Scope:      scope,
		CacheKey:   key,
		Entry:      entry,
		InFlight:   m.locks.InFlight(crawlLockKey(key)),
		Stale:      NeedsSync(entry, count, false, m.opts.clock.Now(), m.cfg.SyncInterval),
		StoreCount: count,
	}

	m.mu.RLock()
	if snap, ok := m.snapshots[key]; ok {
		loadedAt := snap.loadedAt
		status.SnapshotLoadedAt = &loadedAt
		status.SnapshotSize = len(snap.items)
	}
	m.mu.RUnlock()

	return status, nil
}

// Find searches the store. The scope is brought up to date first through the
// normal read path.
func (m *Manager[T]) Find(ctx context.Context, scope string, filter shared.Filter) (shared.Paginated[T], error) {
	scope = strings.TrimSpace(scope)
	if _, err := m.GetScoped(ctx, scope, false); err != nil {
		return shared.Paginated[T]{}, err
	}
	return m.store.Find(ctx, scope, filter)
}

// Invalidate drops the snapshot of scope, or every snapshot when scope is
// empty, and returns how many were dropped. The store is untouched.
func (m *Manager[T]) Invalidate(scope string) int {
	scope = strings.TrimSpace(scope)

	m.mu.Lock()
	defer m.mu.Unlock()

	if scope == "" {
		n := len(m.snapshots)
		m.snapshots = make(map[string]snapshot[T])
		return n
	}
	key := m.CacheKey(scope)
	if _, ok := m.snapshots[key]; !ok {
		return 0
	}
	delete(m.snapshots, key)
	return 1
}

// Scopes returns the scopes that currently have a snapshot, sorted
func (m *Manager[T]) Scopes() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	scopes := make([]string, 0, len(m.snapshots))
	for _, snap := range m.snapshots {
		scopes = append(scopes, snap.scope)
	}
	sort.Strings(scopes)
	return scopes
}

// Subscribe returns a channel receiving every SyncCompleted of this manager
// and a function that unsubscribes and closes it. Events are dropped for a
// subscriber whose buffer is full.
func (m *Manager[T]) Subscribe(buffer int) (<-chan SyncCompleted, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan SyncCompleted, buffer)

	m.subMu.Lock()
	id := m.nextSubID
	m.nextSubID++
	m.subscribers[id] = ch
	m.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.subMu.Lock()
			delete(m.subscribers, id)
			m.subMu.Unlock()
			close(ch)
		})
	}
}

// complete notifies subscribers and the event bus of a finished crawl
func (m *Manager[T]) complete(ctx context.Context, res CrawlResult) {
	evt := newSyncCompleted(res, m.opts.clock.Now())

	m.subMu.Lock()
	for id, ch := range m.subscribers {
		select {
		case ch <- evt:
		default:
			m.logger.Warn("Dropping sync event for slow subscriber",
				zap.Int("subscriber", id),
				zap.String("cache_key", res.CacheKey))
		}
	}
	m.subMu.Unlock()

	if m.opts.events != nil {
		if err := m.opts.events.Publish(context.WithoutCancel(ctx), &evt); err != nil {
			logger.Enrich(ctx, m.logger).Warn("Failed to publish sync event", zap.Error(err))
		}
	}
}
