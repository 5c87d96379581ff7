package cachesync

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/erp/portal/internal/domain/masterdata"
	"github.com/erp/portal/internal/domain/shared"
	"github.com/erp/portal/internal/infrastructure/cache"
	"github.com/erp/portal/internal/infrastructure/persistence"
	"github.com/erp/portal/internal/infrastructure/persistence/models"
	"github.com/erp/portal/internal/infrastructure/upstream"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var testEpoch = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: testEpoch}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// fakeFetcher serves fixed pages per scope
type fakeFetcher[T any] struct {
	mu      sync.Mutex
	pages   map[string][][]T
	failAt  int
	failErr error
	endless bool

	calls   atomic.Int32
	gate    chan struct{}
	started chan struct{}
}

func newFakeFetcher[T any]() *fakeFetcher[T] {
	return &fakeFetcher[T]{pages: make(map[string][][]T)}
}

func (f *fakeFetcher[T]) setPages(scope string, pages ...[]T) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages[scope] = pages
	f.failAt = 0
}

func (f *fakeFetcher[T]) failOnPage(page int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failAt = page
	f.failErr = err
}

// hold makes every fetch wait until release is called
func (f *fakeFetcher[T]) hold() {
	f.gate = make(chan struct{})
	f.started = make(chan struct{}, 64)
}

func (f *fakeFetcher[T]) release() {
	close(f.gate)
}

func (f *fakeFetcher[T]) FetchPage(ctx context.Context, scope string, page, pageSize int) (*upstream.Page[T], error) {
	f.calls.Add(1)
	if f.started != nil {
		select {
		case f.started <- struct{}{}:
		default:
		}
	}
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failAt == page {
		return nil, f.failErr
	}
	pages := f.pages[scope]
	if f.endless {
		return &upstream.Page[T]{Items: pages[0], HasMore: true, Page: page, PageSize: pageSize}, nil
	}
	if page > len(pages) {
		return &upstream.Page[T]{Page: page, PageSize: pageSize}, nil
	}
	return &upstream.Page[T]{
		Items:    pages[page-1],
		HasMore:  page < len(pages),
		Page:     page,
		PageSize: pageSize,
	}, nil
}

// testPool runs jobs on goroutines and lets the test wait for them
type testPool struct {
	wg        sync.WaitGroup
	reject    atomic.Bool
	submitted atomic.Int32
}

func (p *testPool) Submit(_ string, job func(ctx context.Context)) error {
	if p.reject.Load() {
		return errors.New("job queue is full")
	}
	p.submitted.Add(1)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		job(context.Background())
	}()
	return nil
}

func (p *testPool) wait(t *testing.T) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("background crawl did not finish")
	}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (p *recordingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *recordingPublisher) all() []shared.DomainEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]shared.DomainEvent(nil), p.events...)
}

type failingLedger struct {
	masterdata.SyncLedgerRepository
	getErr error
}

func (l failingLedger) Get(context.Context, string) (*masterdata.SyncLedgerEntry, error) {
	return nil, l.getErr
}

type harness[T any] struct {
	mgr     *Manager[T]
	store   Store[T]
	fetcher *fakeFetcher[T]
	ledger  *persistence.GormSyncLedgerRepository
	clock   *fakeClock
	pool    *testPool
	locks   *cache.KeyLockRegistry
	events  *recordingPublisher
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: gormlogger.Discard})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.AllModels()...))
	return db
}

func newHarness[T any, M any](t *testing.T, cfg EntityConfig, mapping persistence.EntityMapping[T, M], opts ...Option) *harness[T] {
	t.Helper()

	db := setupTestDB(t)
	h := &harness[T]{
		store:   persistence.NewGormEntityStore(db, mapping),
		fetcher: newFakeFetcher[T](),
		ledger:  persistence.NewGormSyncLedgerRepository(db),
		clock:   newFakeClock(),
		pool:    &testPool{},
		locks:   cache.NewKeyLockRegistry(),
		events:  &recordingPublisher{},
	}

	base := []Option{
		WithClock(h.clock),
		WithRefreshPool(h.pool),
		WithEventPublisher(h.events),
	}
	mgr, err := NewManager(cfg, h.store, h.fetcher, h.ledger, h.locks, append(base, opts...)...)
	require.NoError(t, err)
	h.mgr = mgr
	return h
}

func productsConfig() EntityConfig {
	cfg := DefaultEntityConfig(masterdata.EntityProducts)
	cfg.PageSize = 2
	return cfg
}

func warehousesConfig() EntityConfig {
	cfg := DefaultEntityConfig(masterdata.EntityWarehouses)
	cfg.PageSize = 2
	return cfg
}

func costCentresConfig() EntityConfig {
	cfg := DefaultEntityConfig(masterdata.EntityCostCentres)
	cfg.PageSize = 2
	return cfg
}

func newProductHarness(t *testing.T, opts ...Option) *harness[masterdata.Product] {
	return newHarness(t, productsConfig(), persistence.ProductMapping(), opts...)
}

func newWarehouseHarness(t *testing.T, opts ...Option) *harness[masterdata.Warehouse] {
	return newHarness(t, warehousesConfig(), persistence.WarehouseMapping(), opts...)
}

func newCostCentreHarness(t *testing.T, opts ...Option) *harness[masterdata.CostCentre] {
	return newHarness(t, costCentresConfig(), persistence.CostCentreMapping(), opts...)
}

var faker = gofakeit.New(7)

func products(codes ...string) []masterdata.Product {
	items := make([]masterdata.Product, len(codes))
	for i, code := range codes {
		items[i] = masterdata.Product{
			ItemCode:  code,
			ItemName:  faker.ProductName(),
			ItemGroup: faker.ProductCategory(),
			SalesItem: true,
		}
	}
	return items
}

func warehouses(codes ...string) []masterdata.Warehouse {
	items := make([]masterdata.Warehouse, len(codes))
	for i, code := range codes {
		items[i] = masterdata.Warehouse{
			WarehouseCode: code,
			WarehouseName: faker.Company(),
			City:          faker.City(),
		}
	}
	return items
}

func costCentres(codes ...string) []masterdata.CostCentre {
	items := make([]masterdata.CostCentre, len(codes))
	for i, code := range codes {
		items[i] = masterdata.CostCentre{
			CentreCode: code,
			CentreName: faker.JobDescriptor(),
			Dimension:  1,
			Active:     true,
		}
	}
	return items
}

func stock(warehouse string, itemCodes ...string) []masterdata.WarehouseStock {
	items := make([]masterdata.WarehouseStock, len(itemCodes))
	for i, code := range itemCodes {
		items[i] = masterdata.WarehouseStock{
			WarehouseCode: warehouse,
			ItemCode:      code,
			ItemName:      faker.ProductName(),
			InStock:       decimal.NewFromInt(int64(faker.IntRange(0, 500))),
		}
	}
	return items
}

func productCodes(items []masterdata.Product) []string {
	codes := make([]string, len(items))
	for i, p := range items {
		codes[i] = p.ItemCode
	}
	return codes
}

func warehouseCodes(items []masterdata.Warehouse) []string {
	codes := make([]string, len(items))
	for i, w := range items {
		codes[i] = w.WarehouseCode
	}
	return codes
}

func centreCodes(items []masterdata.CostCentre) []string {
	codes := make([]string, len(items))
	for i, c := range items {
		codes[i] = c.CentreCode
	}
	return codes
}

func awaitEvent(t *testing.T, ch <-chan SyncCompleted) SyncCompleted {
	t.Helper()
	select {
	case evt := <-ch:
		return evt
	case <-time.After(5 * time.Second):
		t.Fatal("no sync event received")
		return SyncCompleted{}
	}
}
