package cachesync

import (
	"fmt"
	"time"

	"github.com/erp/portal/internal/domain/masterdata"
	"github.com/erp/portal/internal/infrastructure/config"
)

// Strategy selects how a crawl writes into the entity store
type Strategy string

const (
	// StrategyIncremental upserts page by page and tombstones unseen rows at the end
	StrategyIncremental Strategy = "incremental"
	// StrategyFullReplace buffers the crawl and swaps the scope in one transaction
	StrategyFullReplace Strategy = "full_replace"
)

// ColdStart selects how a read against an empty store waits for data
type ColdStart string

const (
	// ColdStartBlock waits for the whole crawl
	ColdStartBlock ColdStart = "block"
	// ColdStartFirstPage waits for page 1 and continues in the background
	ColdStartFirstPage ColdStart = "first_page"
)

const (
	DefaultPageSize     = 100
	DefaultMaxPages     = 10000
	DefaultCrawlTimeout = 30 * time.Minute

	volatileSyncInterval = time.Hour
	volatileSnapshotTTL  = 30 * time.Minute
	staticSyncInterval   = 24 * time.Hour
	staticSnapshotTTL    = 24 * time.Hour
)

// EntityConfig is everything that varies between cached entity types
type EntityConfig struct {
	Entity       masterdata.Entity
	Strategy     Strategy
	ColdStart    ColdStart
	SyncInterval time.Duration
	SnapshotTTL  time.Duration
	PageSize     int
	MaxPages     int
	CrawlTimeout time.Duration
}

// static entities are reference data that changes rarely and syncs daily
var static = map[masterdata.Entity]bool{
	masterdata.EntityWarehouses:  true,
	masterdata.EntityGLAccounts:  true,
	masterdata.EntityCostCentres: true,
}

// DefaultEntityConfig returns the built-in settings for e
func DefaultEntityConfig(e masterdata.Entity) EntityConfig {
	cfg := EntityConfig{
		Entity:       e,
		Strategy:     StrategyFullReplace,
		ColdStart:    ColdStartBlock,
		SyncInterval: volatileSyncInterval,
		SnapshotTTL:  volatileSnapshotTTL,
		PageSize:     DefaultPageSize,
		MaxPages:     DefaultMaxPages,
		CrawlTimeout: DefaultCrawlTimeout,
	}

	switch e {
	case masterdata.EntityProducts, masterdata.EntityBusinessPartners:
		cfg.Strategy = StrategyIncremental
		cfg.ColdStart = ColdStartFirstPage
	case masterdata.EntityWarehouses, masterdata.EntityGLAccounts:
		cfg.Strategy = StrategyIncremental
	}

	if static[e] {
		cfg.SyncInterval = staticSyncInterval
		cfg.SnapshotTTL = staticSnapshotTTL
	}
	return cfg
}

// EntityConfigFromCache builds the settings for e from the cache configuration.
// Per-entity overrides win over the static/volatile defaults.
func EntityConfigFromCache(e masterdata.Entity, cc config.CacheConfig) EntityConfig {
	cfg := DefaultEntityConfig(e)

	if cc.PageSize > 0 {
		cfg.PageSize = cc.PageSize
	}
	if cc.MaxPages > 0 {
		cfg.MaxPages = cc.MaxPages
	}
	if cc.CrawlTimeout > 0 {
		cfg.CrawlTimeout = cc.CrawlTimeout
	}

	if static[e] {
		if cc.StaticSyncInterval > 0 {
			cfg.SyncInterval = cc.StaticSyncInterval
		}
		if cc.StaticSnapshotTTL > 0 {
			cfg.SnapshotTTL = cc.StaticSnapshotTTL
		}
	} else {
		if cc.SyncInterval > 0 {
			cfg.SyncInterval = cc.SyncInterval
		}
		if cc.SnapshotTTL > 0 {
			cfg.SnapshotTTL = cc.SnapshotTTL
		}
	}

	if o, ok := cc.EntityOverride(e.String()); ok {
		if o.SyncInterval > 0 {
			cfg.SyncInterval = o.SyncInterval
		}
		if o.SnapshotTTL > 0 {
			cfg.SnapshotTTL = o.SnapshotTTL
		}
	}
	return cfg
}

// Validate checks the settings before a Manager is built on them
func (c EntityConfig) Validate() error {
	if _, err := masterdata.ParseEntity(c.Entity.String()); err != nil {
		return err
	}
	switch c.Strategy {
	case StrategyIncremental, StrategyFullReplace:
	default:
		return fmt.Errorf("%w: unknown strategy %q", ErrInvalidConfig, c.Strategy)
	}
	switch c.ColdStart {
	case ColdStartBlock:
	case ColdStartFirstPage:
		// page 1 cannot be committed on its own without breaking the replace transaction
		if c.Strategy != StrategyIncremental {
			return fmt.Errorf("%w: %s: first-page cold start needs the incremental strategy", ErrInvalidConfig, c.Entity)
		}
	default:
		return fmt.Errorf("%w: unknown cold start mode %q", ErrInvalidConfig, c.ColdStart)
	}
	if c.SyncInterval <= 0 || c.SnapshotTTL <= 0 || c.CrawlTimeout <= 0 {
		return fmt.Errorf("%w: %s: intervals must be positive", ErrInvalidConfig, c.Entity)
	}
	if c.PageSize < 1 || c.PageSize > 1000 {
		return fmt.Errorf("%w: %s: page size %d out of range", ErrInvalidConfig, c.Entity, c.PageSize)
	}
	if c.MaxPages < 1 {
		return fmt.Errorf("%w: %s: max pages must be positive", ErrInvalidConfig, c.Entity)
	}
	return nil
}
