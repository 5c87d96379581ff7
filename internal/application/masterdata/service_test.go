package masterdata

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/erp/portal/internal/application/cachesync"
	"github.com/erp/portal/internal/domain/masterdata"
	"github.com/erp/portal/internal/domain/shared"
	"github.com/erp/portal/internal/infrastructure/cache"
	"github.com/erp/portal/internal/infrastructure/persistence"
	"github.com/erp/portal/internal/infrastructure/persistence/models"
	"github.com/erp/portal/internal/infrastructure/upstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// MockInvalidator is a mock implementation of Invalidator
type MockInvalidator struct {
	mock.Mock
}

func (m *MockInvalidator) Publish(ctx context.Context, entity, scope string) error {
	args := m.Called(ctx, entity, scope)
	return args.Error(0)
}

// fakeERP serves two warehouses and the "base" price list; every other
// resource is empty.
type fakeERP struct {
	requests atomic.Int32
	failing  atomic.Bool
}

func (f *fakeERP) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.requests.Add(1)
	if f.failing.Load() {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
		return
	}

	var items []map[string]any
	switch {
	case strings.HasSuffix(r.URL.Path, "/warehouses"):
		items = []map[string]any{
			{"warehouseCode": "W01", "warehouseName": "Main", "isActive": true},
			{"warehouseCode": "W02", "warehouseName": "Overflow", "isActive": true},
		}
	case strings.HasSuffix(r.URL.Path, "/prices/base/paged"):
		items = []map[string]any{
			{"priceList": "base", "itemCode": "A100", "price": "12.50", "currency": "EUR"},
		}
	}
	if items == nil {
		items = []map[string]any{}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"items":    items,
		"hasMore":  false,
		"page":     1,
		"pageSize": 100,
	})
}

type serviceFixture struct {
	svc    *Service
	erp    *fakeERP
	ledger *persistence.GormSyncLedgerRepository
	inv    *MockInvalidator
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: gormlogger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(models.AllModels()...))

	erp := &fakeERP{}
	srv := httptest.NewServer(erp)
	t.Cleanup(srv.Close)

	client, err := upstream.NewClient(upstream.Options{BaseURL: srv.URL + "/api"})
	require.NoError(t, err)

	ledger := persistence.NewGormSyncLedgerRepository(db)
	caches, err := BuildCaches(CacheDeps{
		DB:       db,
		Upstream: client,
		Ledger:   ledger,
		Locks:    cache.NewKeyLockRegistry(),
	})
	require.NoError(t, err)

	inv := new(MockInvalidator)
	svc, err := NewService(ledger, caches, WithInvalidator(inv), WithServiceLogger(zap.NewNop()))
	require.NoError(t, err)

	return &serviceFixture{svc: svc, erp: erp, ledger: ledger, inv: inv}
}

func assertDomainCode(t *testing.T, err error, code string) {
	t.Helper()
	var de *shared.DomainError
	require.True(t, errors.As(err, &de), "expected DomainError, got %v", err)
	assert.Equal(t, code, de.Code)
}

func TestBuildCaches_RequiresDependencies(t *testing.T) {
	_, err := BuildCaches(CacheDeps{})
	assert.ErrorIs(t, err, cachesync.ErrInvalidConfig)
}

func TestNewService_EntitiesInCanonicalOrder(t *testing.T) {
	f := newServiceFixture(t)

	assert.Equal(t, masterdata.AllEntities(), f.svc.Entities())
	assert.Len(t, f.svc.Caches(), len(masterdata.AllEntities()))
}

func TestNewService_RejectsDuplicateEntity(t *testing.T) {
	f := newServiceFixture(t)
	caches := f.svc.Caches()

	_, err := NewService(f.ledger, append(caches, caches[0]))
	assert.Error(t, err)
}

func TestService_Cache(t *testing.T) {
	f := newServiceFixture(t)

	c, err := f.svc.Cache("warehouses")
	require.NoError(t, err)
	assert.Equal(t, masterdata.EntityWarehouses, c.Entity())

	_, err = f.svc.Cache("widgets")
	assertDomainCode(t, err, "NOT_FOUND")
}

func TestService_ListCrawlsOnColdStart(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	resp, err := f.svc.List(ctx, "warehouses", "", false)
	require.NoError(t, err)
	assert.Equal(t, "warehouses", resp.Entity)
	assert.Equal(t, 2, resp.Count)

	items, ok := resp.Items.([]masterdata.Warehouse)
	require.True(t, ok)
	assert.Equal(t, "W01", items[0].WarehouseCode)

	// second read is served from the snapshot
	before := f.erp.requests.Load()
	_, err = f.svc.List(ctx, "warehouses", "", false)
	require.NoError(t, err)
	assert.Equal(t, before, f.erp.requests.Load())
}

func TestService_ListScoped(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	resp, err := f.svc.List(ctx, "prices", "base", false)
	require.NoError(t, err)
	assert.Equal(t, "base", resp.Scope)
	assert.Equal(t, 1, resp.Count)

	_, err = f.svc.List(ctx, "prices", "", false)
	assertDomainCode(t, err, "INVALID_INPUT")

	_, err = f.svc.List(ctx, "warehouses", "base", false)
	assertDomainCode(t, err, "INVALID_INPUT")
}

func TestService_ListEmptyEntityReturnsEmptySlice(t *testing.T) {
	f := newServiceFixture(t)

	resp, err := f.svc.List(context.Background(), "cost-centres", "", false)
	require.NoError(t, err)
	assert.Zero(t, resp.Count)
	assert.NotNil(t, resp.Items)
}

func TestService_Search(t *testing.T) {
	f := newServiceFixture(t)

	out, err := f.svc.Search(context.Background(), "warehouses", "", shared.Filter{Search: "Over"})
	require.NoError(t, err)

	assert.EqualValues(t, 1, out.Total)
	items, ok := out.Items.([]masterdata.Warehouse)
	require.True(t, ok)
	require.Len(t, items, 1)
	assert.Equal(t, "W02", items[0].WarehouseCode)
}

func TestService_SyncAndStatus(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	res, err := f.svc.Sync(ctx, "warehouses", "")
	require.NoError(t, err)
	assert.Equal(t, "completed", res.Status)
	assert.Equal(t, 2, res.Items)
	assert.Equal(t, "Warehouses", res.CacheKey)

	status, err := f.svc.Status(ctx, "warehouses", "")
	require.NoError(t, err)
	require.NotNil(t, status.LastSync)
	assert.True(t, status.LastSync.SyncSuccessful)
	assert.Equal(t, 2, status.LastSync.ItemCount)
	assert.EqualValues(t, 2, status.StoreCount)
	assert.False(t, status.Stale)
}

func TestService_SyncFailureIsReportedNotReturned(t *testing.T) {
	f := newServiceFixture(t)
	f.erp.failing.Store(true)

	res, err := f.svc.Sync(context.Background(), "warehouses", "")
	require.NoError(t, err)
	assert.Equal(t, "failed", res.Status)
	assert.NotEmpty(t, res.Error)

	entries, err := f.svc.Ledger(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.False(t, entries[0].SyncSuccessful)
	assert.NotEmpty(t, entries[0].LastError)
}

func TestService_SyncRejectsInvalidScope(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.svc.Sync(context.Background(), "warehouse-stock", "")
	assertDomainCode(t, err, "INVALID_INPUT")
	assert.Zero(t, f.erp.requests.Load())
}

func TestService_Ledger(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	_, err := f.svc.Sync(ctx, "warehouses", "")
	require.NoError(t, err)
	_, err = f.svc.Sync(ctx, "prices", "base")
	require.NoError(t, err)

	entries, err := f.svc.Ledger(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Prices_base", entries[0].CacheKey)
	assert.Equal(t, "Warehouses", entries[1].CacheKey)
}

func TestService_Invalidate(t *testing.T) {
	ctx := context.Background()

	t.Run("scope without entity", func(t *testing.T) {
		f := newServiceFixture(t)
		_, err := f.svc.Invalidate(ctx, "", "base")
		assertDomainCode(t, err, "INVALID_INPUT")
		f.inv.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unknown entity", func(t *testing.T) {
		f := newServiceFixture(t)
		_, err := f.svc.Invalidate(ctx, "widgets", "")
		assertDomainCode(t, err, "NOT_FOUND")
	})

	t.Run("evicts and broadcasts", func(t *testing.T) {
		f := newServiceFixture(t)
		_, err := f.svc.List(ctx, "warehouses", "", false)
		require.NoError(t, err)
		_, err = f.svc.List(ctx, "prices", "base", false)
		require.NoError(t, err)

		f.inv.On("Publish", ctx, "warehouses", "").Return(nil).Once()
		n, err := f.svc.Invalidate(ctx, "warehouses", "")
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		f.inv.On("Publish", ctx, "", "").Return(nil).Once()
		n, err = f.svc.Invalidate(ctx, "", "")
		require.NoError(t, err)
		assert.Equal(t, 1, n, "only the price snapshot was still loaded")
		f.inv.AssertExpectations(t)
	})

	t.Run("broadcast failure still evicts", func(t *testing.T) {
		f := newServiceFixture(t)
		_, err := f.svc.List(ctx, "warehouses", "", false)
		require.NoError(t, err)

		f.inv.On("Publish", ctx, "warehouses", "").Return(errors.New("redis down"))
		n, err := f.svc.Invalidate(ctx, "warehouses", "")
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})
}

func TestService_InvalidateLocalIgnoresUnknownEntity(t *testing.T) {
	f := newServiceFixture(t)
	assert.Zero(t, f.svc.InvalidateLocal("widgets", ""))
}

func TestService_Subscribe(t *testing.T) {
	f := newServiceFixture(t)
	events, unsubscribe := f.svc.Subscribe(4)

	_, err := f.svc.Sync(context.Background(), "warehouses", "")
	require.NoError(t, err)

	select {
	case evt := <-events:
		assert.Equal(t, masterdata.EntityWarehouses, evt.Entity)
		assert.True(t, evt.Result.Succeeded())
	case <-time.After(2 * time.Second):
		t.Fatal("no sync event received")
	}

	unsubscribe()
	unsubscribe()
	_, open := <-events
	assert.False(t, open)
}

func TestEntityCache_WarmupScopes(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	warehouses, err := f.svc.Cache("warehouses")
	require.NoError(t, err)
	assert.Equal(t, []string{""}, warehouses.WarmupScopes())

	prices, err := f.svc.Cache("prices")
	require.NoError(t, err)
	assert.Empty(t, prices.WarmupScopes())

	_, err = f.svc.List(ctx, "prices", "base", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"base"}, prices.WarmupScopes())
	assert.Equal(t, "prices", prices.Name())
}
