//go:build integration

package persistence

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/erp/portal/internal/domain/masterdata"
	"github.com/erp/portal/internal/infrastructure/migration"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	gormpostgres "gorm.io/driver/postgres"
)

// newPostgresDatabase starts a disposable PostgreSQL container and applies the migrations
func newPostgresDatabase(t *testing.T) *Database {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("portal_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Warning: Failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := NewDatabaseFromDialector(gormpostgres.Open(dsn), nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	sqlDB, err := db.DB.DB()
	require.NoError(t, err)
	m, err := migration.New(sqlDB, migrationsPath(t), zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, m.Up())

	return db
}

func migrationsPath(t *testing.T) string {
	_, filename, _, ok := runtime.Caller(0)
	require.True(t, ok)

	dir := filepath.Dir(filename)
	for i := 0; i < 5; i++ {
		p := filepath.Join(dir, "migrations")
		if _, err := os.Stat(p); err == nil {
			return p
		}
		dir = filepath.Dir(dir)
	}
	t.Fatal("migrations directory not found")
	return ""
}

func TestPostgresEntityStore(t *testing.T) {
	db := newPostgresDatabase(t)
	ctx := context.Background()

	t.Run("incremental upsert and tombstone", func(t *testing.T) {
		store := NewGormEntityStore(db.DB, WarehouseMapping())
		first := masterdata.NewSyncStamp(time.Now().UTC())
		require.NoError(t, store.Upsert(ctx, "", []masterdata.Warehouse{
			{WarehouseCode: "WH01", WarehouseName: "Main"},
			{WarehouseCode: "WH02", WarehouseName: "Overflow"},
		}, first))

		second := masterdata.NewSyncStamp(first.At.Add(time.Minute))
		require.NoError(t, store.Upsert(ctx, "", []masterdata.Warehouse{
			{WarehouseCode: "WH02", WarehouseName: "Overflow"},
		}, second))
		n, err := store.Tombstone(ctx, "", second.RunID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		active, err := store.LoadActive(ctx, "")
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, "WH02", active[0].WarehouseCode)
	})

	t.Run("full replace of jsonb documents", func(t *testing.T) {
		store := NewGormEntityStore(db.DB, IncomingPaymentMapping())
		stamp := masterdata.NewSyncStamp(time.Now().UTC())
		payment := masterdata.IncomingPayment{
			DocEntry: 10,
			DocNum:   5010,
			DocDate:  stamp.At,
			CardCode: "C001",
			CashSum:  decimal.RequireFromString("12.50"),
			Invoices: []masterdata.PaymentInvoice{
				{LineNum: 0, DocEntry: 77, SumApplied: decimal.RequireFromString("12.50")},
			},
		}
		require.NoError(t, store.ReplaceScope(ctx, "", []masterdata.IncomingPayment{payment}, stamp))

		items, err := store.LoadActive(ctx, "")
		require.NoError(t, err)
		require.Len(t, items, 1)
		require.Len(t, items[0].Invoices, 1)
		assert.Equal(t, 77, items[0].Invoices[0].DocEntry)
	})

	t.Run("ledger upsert", func(t *testing.T) {
		repo := NewGormSyncLedgerRepository(db.DB)
		require.NoError(t, repo.Record(ctx, masterdata.NewSuccessfulSync("Warehouses", time.Now(), 1)))
		require.NoError(t, repo.Record(ctx, masterdata.NewSuccessfulSync("Warehouses", time.Now(), 2)))

		entry, err := repo.Get(ctx, "Warehouses")
		require.NoError(t, err)
		require.NotNil(t, entry)
		assert.Equal(t, 2, entry.ItemCount)
	})
}
