package masterdata

import (
	"context"

	"github.com/erp/portal/internal/application/cachesync"
	"github.com/erp/portal/internal/domain/shared"
	"go.uber.org/zap"
)

// PeerInvalidationHandler tells peer instances to drop their snapshot of a
// cache key after this instance crawled it into the shared store, so their
// next read reloads instead of serving the pre-crawl snapshot until its TTL.
type PeerInvalidationHandler struct {
	invalidator Invalidator
	logger      *zap.Logger
}

// NewPeerInvalidationHandler creates the handler
func NewPeerInvalidationHandler(inv Invalidator, logger *zap.Logger) *PeerInvalidationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PeerInvalidationHandler{invalidator: inv, logger: logger}
}

// EventTypes implements shared.EventHandler
func (h *PeerInvalidationHandler) EventTypes() []string {
	return []string{cachesync.EventTypeSyncCompleted}
}

// Handle implements shared.EventHandler. Failed crawls change nothing in
// the store and are not broadcast.
func (h *PeerInvalidationHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	evt, ok := event.(*cachesync.SyncCompleted)
	if !ok || !evt.Result.Succeeded() {
		return nil
	}
	if err := h.invalidator.Publish(ctx, evt.Entity.String(), evt.Scope); err != nil {
		h.logger.Warn("Failed to notify peers of completed sync",
			zap.String("cache_key", evt.AggregateKey()),
			zap.Error(err))
		return err
	}
	return nil
}

var _ shared.EventHandler = (*PeerInvalidationHandler)(nil)
