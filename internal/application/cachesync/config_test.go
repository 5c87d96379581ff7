package cachesync

import (
	"testing"
	"time"

	"github.com/erp/portal/internal/domain/masterdata"
	"github.com/erp/portal/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultEntityConfig(t *testing.T) {
	tests := []struct {
		entity    masterdata.Entity
		strategy  Strategy
		coldStart ColdStart
		interval  time.Duration
		ttl       time.Duration
	}{
		{masterdata.EntityProducts, StrategyIncremental, ColdStartFirstPage, time.Hour, 30 * time.Minute},
		{masterdata.EntityBusinessPartners, StrategyIncremental, ColdStartFirstPage, time.Hour, 30 * time.Minute},
		{masterdata.EntityWarehouses, StrategyIncremental, ColdStartBlock, 24 * time.Hour, 24 * time.Hour},
		{masterdata.EntityGLAccounts, StrategyIncremental, ColdStartBlock, 24 * time.Hour, 24 * time.Hour},
		{masterdata.EntityCostCentres, StrategyFullReplace, ColdStartBlock, 24 * time.Hour, 24 * time.Hour},
		{masterdata.EntityPrices, StrategyFullReplace, ColdStartBlock, time.Hour, 30 * time.Minute},
		{masterdata.EntityWarehouseStock, StrategyFullReplace, ColdStartBlock, time.Hour, 30 * time.Minute},
		{masterdata.EntityInventoryTransfers, StrategyFullReplace, ColdStartBlock, time.Hour, 30 * time.Minute},
		{masterdata.EntityIncomingPayments, StrategyFullReplace, ColdStartBlock, time.Hour, 30 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.entity.String(), func(t *testing.T) {
			cfg := DefaultEntityConfig(tt.entity)
			assert.Equal(t, tt.strategy, cfg.Strategy)
			assert.Equal(t, tt.coldStart, cfg.ColdStart)
			assert.Equal(t, tt.interval, cfg.SyncInterval)
			assert.Equal(t, tt.ttl, cfg.SnapshotTTL)
			assert.Equal(t, DefaultPageSize, cfg.PageSize)
			require.NoError(t, cfg.Validate())
		})
	}
}

func TestEntityConfigFromCache(t *testing.T) {
	cc := config.CacheConfig{
		PageSize:           250,
		MaxPages:           50,
		SnapshotTTL:        10 * time.Minute,
		StaticSnapshotTTL:  12 * time.Hour,
		SyncInterval:       20 * time.Minute,
		StaticSyncInterval: 48 * time.Hour,
		CrawlTimeout:       5 * time.Minute,
		Entities: map[string]config.EntityCacheConfig{
			"prices": {SyncInterval: 2 * time.Hour},
		},
	}

	volatile := EntityConfigFromCache(masterdata.EntityProducts, cc)
	assert.Equal(t, 250, volatile.PageSize)
	assert.Equal(t, 50, volatile.MaxPages)
	assert.Equal(t, 5*time.Minute, volatile.CrawlTimeout)
	assert.Equal(t, 20*time.Minute, volatile.SyncInterval)
	assert.Equal(t, 10*time.Minute, volatile.SnapshotTTL)

	centres := EntityConfigFromCache(masterdata.EntityCostCentres, cc)
	assert.Equal(t, 48*time.Hour, centres.SyncInterval)
	assert.Equal(t, 12*time.Hour, centres.SnapshotTTL)

	prices := EntityConfigFromCache(masterdata.EntityPrices, cc)
	assert.Equal(t, 2*time.Hour, prices.SyncInterval)
	assert.Equal(t, 10*time.Minute, prices.SnapshotTTL, "unset override keeps the section default")

	defaults := EntityConfigFromCache(masterdata.EntityWarehouses, config.CacheConfig{})
	assert.Equal(t, DefaultEntityConfig(masterdata.EntityWarehouses), defaults)
}

func TestEntityConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*EntityConfig)
	}{
		{"unknown entity", func(c *EntityConfig) { c.Entity = "orders" }},
		{"unknown strategy", func(c *EntityConfig) { c.Strategy = "merge" }},
		{"unknown cold start", func(c *EntityConfig) { c.ColdStart = "lazy" }},
		{"first page with full replace", func(c *EntityConfig) {
			c.Strategy = StrategyFullReplace
			c.ColdStart = ColdStartFirstPage
		}},
		{"zero interval", func(c *EntityConfig) { c.SyncInterval = 0 }},
		{"zero ttl", func(c *EntityConfig) { c.SnapshotTTL = 0 }},
		{"page size too large", func(c *EntityConfig) { c.PageSize = 1001 }},
		{"no pages", func(c *EntityConfig) { c.MaxPages = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultEntityConfig(masterdata.EntityProducts)
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
