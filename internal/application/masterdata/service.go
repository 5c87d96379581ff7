// Package masterdata is the application service in front of the per-entity
// cache managers. It resolves entities by name, maps cache errors to domain
// errors and fans invalidations out to peer instances.
package masterdata

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/erp/portal/internal/application/cachesync"
	"github.com/erp/portal/internal/domain/masterdata"
	"github.com/erp/portal/internal/domain/shared"
	"go.uber.org/zap"
)

// Invalidator broadcasts snapshot invalidations to other instances
type Invalidator interface {
	Publish(ctx context.Context, entity, scope string) error
}

// Service handles master data reads, syncs and invalidation
type Service struct {
	caches map[masterdata.Entity]EntityCache
	order  []masterdata.Entity
	ledger masterdata.SyncLedgerRepository

	invalidator Invalidator
	logger      *zap.Logger
}

// ServiceOption configures a Service
type ServiceOption func(*Service)

// WithInvalidator broadcasts Invalidate calls through inv
func WithInvalidator(inv Invalidator) ServiceOption {
	return func(s *Service) {
		s.invalidator = inv
	}
}

// WithServiceLogger sets the logger
func WithServiceLogger(l *zap.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService creates a service over caches. Each entity may appear once.
func NewService(ledger masterdata.SyncLedgerRepository, caches []EntityCache, opts ...ServiceOption) (*Service, error) {
	s := &Service{
		caches: make(map[masterdata.Entity]EntityCache, len(caches)),
		ledger: ledger,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, c := range caches {
		e := c.Entity()
		if _, dup := s.caches[e]; dup {
			return nil, fmt.Errorf("duplicate cache for %s", e)
		}
		s.caches[e] = c
	}
	for _, e := range masterdata.AllEntities() {
		if _, ok := s.caches[e]; ok {
			s.order = append(s.order, e)
		}
	}
	return s, nil
}

// Entities lists the served entities in canonical order
func (s *Service) Entities() []masterdata.Entity {
	return append([]masterdata.Entity(nil), s.order...)
}

// Caches returns every cache in canonical order
func (s *Service) Caches() []EntityCache {
	out := make([]EntityCache, 0, len(s.order))
	for _, e := range s.order {
		out = append(out, s.caches[e])
	}
	return out
}

// Cache resolves an entity name
func (s *Service) Cache(name string) (EntityCache, error) {
	e, err := masterdata.ParseEntity(name)
	if err != nil {
		return nil, shared.NewDomainError("NOT_FOUND", err.Error())
	}
	c, ok := s.caches[e]
	if !ok {
		return nil, shared.NewDomainError("NOT_FOUND", fmt.Sprintf("%s is not cached", e))
	}
	return c, nil
}

// List returns the active items of an entity
func (s *Service) List(ctx context.Context, entity, scope string, refresh bool) (*ListResponse, error) {
	c, err := s.Cache(entity)
	if err != nil {
		return nil, err
	}
	items, count, err := c.List(ctx, scope, refresh)
	if err != nil {
		return nil, s.mapError(err)
	}
	return &ListResponse{
		Entity: c.Entity().String(),
		Scope:  scope,
		Count:  count,
		Items:  items,
	}, nil
}

// Search pages over stored items of an entity
func (s *Service) Search(ctx context.Context, entity, scope string, filter shared.Filter) (*SearchResponse, error) {
	c, err := s.Cache(entity)
	if err != nil {
		return nil, err
	}
	page, err := c.Search(ctx, scope, filter)
	if err != nil {
		return nil, s.mapError(err)
	}
	return page, nil
}

// Sync crawls one cache key now. A skipped or failed crawl is reported in
// the result, not as an error.
func (s *Service) Sync(ctx context.Context, entity, scope string) (*CrawlResultResponse, error) {
	c, err := s.Cache(entity)
	if err != nil {
		return nil, err
	}
	if err := masterdata.ValidateScope(c.Entity(), scope); err != nil {
		return nil, s.mapError(err)
	}
	res := c.Sync(ctx, scope)
	return ToCrawlResultResponse(res), nil
}

// Status returns the sync state of one cache key
func (s *Service) Status(ctx context.Context, entity, scope string) (*SyncStatusResponse, error) {
	c, err := s.Cache(entity)
	if err != nil {
		return nil, err
	}
	status, err := c.Status(ctx, scope)
	if err != nil {
		return nil, s.mapError(err)
	}
	return ToSyncStatusResponse(status), nil
}

// Ledger returns every recorded sync, ordered by cache key
func (s *Service) Ledger(ctx context.Context) ([]LedgerEntryResponse, error) {
	entries, err := s.ledger.List(ctx)
	if err != nil {
		return nil, s.mapError(err)
	}
	out := make([]LedgerEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, ToLedgerEntryResponse(e))
	}
	return out, nil
}

// Invalidate drops snapshots locally and tells peer instances to do the
// same. An empty entity means every entity; an empty scope every scope.
// A broadcast failure is logged; the local eviction still counts.
func (s *Service) Invalidate(ctx context.Context, entity, scope string) (int, error) {
	if entity == "" && scope != "" {
		return 0, shared.NewDomainError("INVALID_INPUT", "scope requires an entity")
	}
	if entity != "" {
		if _, err := s.Cache(entity); err != nil {
			return 0, err
		}
	}

	n := s.InvalidateLocal(entity, scope)

	if s.invalidator != nil {
		if err := s.invalidator.Publish(ctx, entity, scope); err != nil {
			s.logger.Warn("Failed to broadcast invalidation",
				zap.String("entity", entity),
				zap.String("scope", scope),
				zap.Error(err))
		}
	}
	return n, nil
}

// InvalidateLocal drops snapshots on this instance only. Unknown entities
// are ignored; peers may run a newer entity set.
func (s *Service) InvalidateLocal(entity, scope string) int {
	if entity == "" {
		n := 0
		for _, e := range s.order {
			n += s.caches[e].Invalidate("")
		}
		return n
	}
	e, err := masterdata.ParseEntity(entity)
	if err != nil {
		return 0
	}
	c, ok := s.caches[e]
	if !ok {
		return 0
	}
	return c.Invalidate(scope)
}

// Subscribe merges the completion events of every cache into one channel.
// The returned function unsubscribes and closes the channel. Events are
// dropped while the channel is full.
func (s *Service) Subscribe(buffer int) (<-chan cachesync.SyncCompleted, func()) {
	if buffer < 1 {
		buffer = 1
	}
	out := make(chan cachesync.SyncCompleted, buffer)
	done := make(chan struct{})

	var wg sync.WaitGroup
	unsubs := make([]func(), 0, len(s.order))
	for _, e := range s.order {
		ch, unsub := s.caches[e].Subscribe(buffer)
		unsubs = append(unsubs, unsub)

		wg.Add(1)
		go func() {
			defer wg.Done()
			for evt := range ch {
				select {
				case out <- evt:
				case <-done:
					return
				default:
				}
			}
		}()
	}

	var once sync.Once
	return out, func() {
		once.Do(func() {
			close(done)
			for _, unsub := range unsubs {
				unsub()
			}
			wg.Wait()
			close(out)
		})
	}
}

// mapError turns cache errors into domain errors for the HTTP layer
func (s *Service) mapError(err error) error {
	var de *shared.DomainError
	switch {
	case errors.As(err, &de):
		return err
	case errors.Is(err, masterdata.ErrInvalidScope), errors.Is(err, masterdata.ErrUnknownEntity):
		return shared.NewDomainError("INVALID_INPUT", err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		s.logger.Error("Master data store failure", zap.Error(err))
		return shared.ErrStoreFailure
	}
}
