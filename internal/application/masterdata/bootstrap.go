package masterdata

import (
	"fmt"

	"github.com/erp/portal/internal/application/cachesync"
	"github.com/erp/portal/internal/domain/masterdata"
	"github.com/erp/portal/internal/infrastructure/cache"
	"github.com/erp/portal/internal/infrastructure/config"
	"github.com/erp/portal/internal/infrastructure/persistence"
	"github.com/erp/portal/internal/infrastructure/upstream"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CacheDeps are the shared dependencies of every entity cache
type CacheDeps struct {
	DB       *gorm.DB
	Upstream *upstream.Client
	Ledger   masterdata.SyncLedgerRepository
	Locks    *cache.KeyLockRegistry
	Cache    config.CacheConfig
	Logger   *zap.Logger

	// Manager options shared by all caches (pool, events, metrics, clock)
	Options []cachesync.Option
}

// BuildCaches creates one manager per entity over the GORM store and the
// upstream resources.
func BuildCaches(deps CacheDeps) ([]EntityCache, error) {
	if deps.DB == nil || deps.Upstream == nil || deps.Ledger == nil || deps.Locks == nil {
		return nil, fmt.Errorf("%w: db, upstream client, ledger and lock registry are required", cachesync.ErrInvalidConfig)
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	c := deps.Upstream
	builders := []func(CacheDeps) (EntityCache, error){
		entityCache(masterdata.EntityProducts, upstream.Products(c), persistence.ProductMapping()),
		entityCache(masterdata.EntityBusinessPartners, upstream.BusinessPartners(c), persistence.BusinessPartnerMapping()),
		entityCache(masterdata.EntityWarehouses, upstream.Warehouses(c), persistence.WarehouseMapping()),
		entityCache(masterdata.EntityGLAccounts, upstream.GLAccounts(c), persistence.GLAccountMapping()),
		entityCache(masterdata.EntityCostCentres, upstream.CostCentres(c), persistence.CostCentreMapping()),
		entityCache(masterdata.EntityPrices, upstream.Prices(c), persistence.PriceMapping()),
		entityCache(masterdata.EntityWarehouseStock, upstream.WarehouseStock(c), persistence.WarehouseStockMapping()),
		entityCache(masterdata.EntityInventoryTransfers, upstream.InventoryTransfers(c), persistence.InventoryTransferMapping()),
		entityCache(masterdata.EntityIncomingPayments, upstream.IncomingPayments(c), persistence.IncomingPaymentMapping()),
	}

	caches := make([]EntityCache, 0, len(builders))
	for _, build := range builders {
		ec, err := build(deps)
		if err != nil {
			return nil, err
		}
		caches = append(caches, ec)
	}
	return caches, nil
}

func entityCache[T any, M any](
	entity masterdata.Entity,
	fetcher cachesync.Fetcher[T],
	mapping persistence.EntityMapping[T, M],
) func(CacheDeps) (EntityCache, error) {
	return func(deps CacheDeps) (EntityCache, error) {
		cfg := cachesync.EntityConfigFromCache(entity, deps.Cache)
		store := persistence.NewGormEntityStore(deps.DB, mapping,
			persistence.WithStoreLogger(deps.Logger.Named("store")))

		opts := append([]cachesync.Option{cachesync.WithLogger(deps.Logger)}, deps.Options...)
		m, err := cachesync.NewManager[T](cfg, store, fetcher, deps.Ledger, deps.Locks, opts...)
		if err != nil {
			return nil, fmt.Errorf("build %s cache: %w", entity, err)
		}
		return NewEntityCache(m), nil
	}
}
