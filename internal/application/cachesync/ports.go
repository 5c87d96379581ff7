package cachesync

import (
	"context"
	"time"

	"github.com/erp/portal/internal/domain/masterdata"
	"github.com/erp/portal/internal/domain/shared"
	"github.com/erp/portal/internal/infrastructure/upstream"
	"go.uber.org/zap"
)

// Store is the persistent tier for one entity type
type Store[T any] interface {
	LoadActive(ctx context.Context, scope string) ([]T, error)
	Count(ctx context.Context, scope string) (int64, error)
	Upsert(ctx context.Context, scope string, items []T, stamp masterdata.SyncStamp) error
	Tombstone(ctx context.Context, scope string, runID string) (int64, error)
	ReplaceScope(ctx context.Context, scope string, items []T, stamp masterdata.SyncStamp) error
	Find(ctx context.Context, scope string, filter shared.Filter) (shared.Paginated[T], error)
}

// Fetcher reads one page of T from the ERP
type Fetcher[T any] interface {
	FetchPage(ctx context.Context, scope string, page, pageSize int) (*upstream.Page[T], error)
}

// Submitter runs background jobs on a bounded pool. Submit must not block;
// a full or stopped pool returns an error and the job is dropped.
type Submitter interface {
	Submit(name string, job func(ctx context.Context)) error
}

// MetricsRecorder receives crawl and snapshot measurements
type MetricsRecorder interface {
	RecordCrawl(ctx context.Context, entity, status string, items, pages int, duration time.Duration)
	RecordSkippedItems(ctx context.Context, entity string, n int)
	RecordSnapshotRead(ctx context.Context, entity string, hit bool)
}

// Clock is the time source; tests substitute a fixed one
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the wall clock
func SystemClock() Clock { return systemClock{} }

// goSubmitter runs every job on its own goroutine. It is the fallback when no
// pool is configured.
type goSubmitter struct{}

func (goSubmitter) Submit(_ string, job func(ctx context.Context)) error {
	go job(context.Background())
	return nil
}

type noopMetrics struct{}

func (noopMetrics) RecordCrawl(context.Context, string, string, int, int, time.Duration) {}
func (noopMetrics) RecordSkippedItems(context.Context, string, int)                     {}
func (noopMetrics) RecordSnapshotRead(context.Context, string, bool)                    {}

// Option configures a Manager
type Option func(*options)

type options struct {
	clock   Clock
	logger  *zap.Logger
	pool    Submitter
	events  shared.EventPublisher
	metrics MetricsRecorder
}

func defaultOptions() options {
	return options{
		clock:   SystemClock(),
		logger:  zap.NewNop(),
		pool:    goSubmitter{},
		metrics: noopMetrics{},
	}
}

// WithClock sets the time source
func WithClock(c Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithRefreshPool sets the pool background crawls run on
func WithRefreshPool(p Submitter) Option {
	return func(o *options) {
		if p != nil {
			o.pool = p
		}
	}
}

// WithEventPublisher publishes a SyncCompleted event after every crawl
func WithEventPublisher(p shared.EventPublisher) Option {
	return func(o *options) {
		o.events = p
	}
}

// WithMetrics sets the metrics recorder
func WithMetrics(m MetricsRecorder) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}
