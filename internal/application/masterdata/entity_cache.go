package masterdata

import (
	"context"

	"github.com/erp/portal/internal/application/cachesync"
	"github.com/erp/portal/internal/domain/masterdata"
	"github.com/erp/portal/internal/domain/shared"
)

// EntityCache is the type-erased view of a cachesync.Manager. Items are
// returned as the manager's slice type ([]masterdata.Product and so on).
type EntityCache interface {
	Entity() masterdata.Entity
	Config() cachesync.EntityConfig

	// List returns the active items of scope and their count
	List(ctx context.Context, scope string, refresh bool) (any, int, error)
	// Search pages over the stored items of scope
	Search(ctx context.Context, scope string, filter shared.Filter) (*SearchResponse, error)
	Sync(ctx context.Context, scope string) cachesync.CrawlResult
	Refresh(ctx context.Context, scope string) (bool, error)
	Status(ctx context.Context, scope string) (*cachesync.SyncStatus, error)
	Invalidate(scope string) int
	Scopes() []string
	Subscribe(buffer int) (<-chan cachesync.SyncCompleted, func())

	// Name and WarmupScopes make every cache a warm-up target
	Name() string
	WarmupScopes() []string
}

type managerCache[T any] struct {
	*cachesync.Manager[T]
}

// NewEntityCache wraps a manager
func NewEntityCache[T any](m *cachesync.Manager[T]) EntityCache {
	return managerCache[T]{Manager: m}
}

func (c managerCache[T]) List(ctx context.Context, scope string, refresh bool) (any, int, error) {
	items, err := c.GetScoped(ctx, scope, refresh)
	if err != nil {
		return nil, 0, err
	}
	if items == nil {
		items = []T{}
	}
	return items, len(items), nil
}

func (c managerCache[T]) Search(ctx context.Context, scope string, filter shared.Filter) (*SearchResponse, error) {
	page, err := c.Find(ctx, scope, filter)
	if err != nil {
		return nil, err
	}
	if page.Items == nil {
		page.Items = []T{}
	}
	return &SearchResponse{
		Items:    page.Items,
		Total:    page.Total,
		Page:     page.Page,
		PageSize: page.PageSize,
	}, nil
}

func (c managerCache[T]) Status(ctx context.Context, scope string) (*cachesync.SyncStatus, error) {
	return c.GetSyncStatus(ctx, scope)
}

func (c managerCache[T]) Name() string {
	return c.Entity().String()
}

// WarmupScopes is the empty scope for unscoped entities and the loaded
// scopes otherwise; scoped entities only warm what readers asked for.
func (c managerCache[T]) WarmupScopes() []string {
	if !c.Entity().Scoped() {
		return []string{""}
	}
	return c.Scopes()
}
