package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/erp/portal/internal/infrastructure/config"
	"github.com/erp/portal/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type tracedRow struct {
	ID   uint   `gorm:"primaryKey"`
	Code string `gorm:"size:50;uniqueIndex"`
}

func setupTracedDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Discard,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&tracedRow{}))
	return db
}

func TestDBTracingConfigFrom(t *testing.T) {
	cfg := telemetry.DBTracingConfigFrom(config.TelemetryConfig{
		Enabled:        true,
		DBTraceEnabled: true,
	}, "postgresql")

	assert.True(t, cfg.Enabled)
	assert.Equal(t, 200*time.Millisecond, cfg.SlowQueryThresh)
	assert.Equal(t, "postgresql", cfg.DBSystem)

	off := telemetry.DBTracingConfigFrom(config.TelemetryConfig{DBTraceEnabled: true}, "postgresql")
	assert.False(t, off.Enabled, "db tracing needs telemetry enabled")
}

func TestRegisterDBTracing_Disabled(t *testing.T) {
	db := setupTracedDB(t)
	require.NoError(t, telemetry.RegisterDBTracing(db, telemetry.DBTracingConfig{}, zap.NewNop()))
	assert.Nil(t, db.Callback().Query().Get("otel_timing:after_query"))
}

func TestRegisterDBTracing_Enabled(t *testing.T) {
	db := setupTracedDB(t)
	cfg := telemetry.DBTracingConfig{Enabled: true, SlowQueryThresh: time.Second, DBSystem: "sqlite"}

	require.NoError(t, telemetry.RegisterDBTracing(db, cfg, nil))
	assert.NotNil(t, db.Callback().Query().Get("otel_timing:after_query"))
	assert.NotNil(t, db.Callback().Create().Get("otel_timing:before_create"))
}

func TestSlowQueryCallbacks(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	db := setupTracedDB(t)
	// zero threshold marks every statement slow
	require.NoError(t, telemetry.RegisterSlowQueryCallbacks(db, 0))

	ctx, span := tp.Tracer("test").Start(context.Background(), "crawl")
	require.NoError(t, db.WithContext(ctx).Create(&tracedRow{Code: "A"}).Error)
	err := db.WithContext(ctx).Create(&tracedRow{Code: "A"}).Error
	require.Error(t, err)
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	got := spans[0]

	attrs := make(map[attribute.Key]attribute.Value)
	for _, kv := range got.Attributes() {
		attrs[kv.Key] = kv.Value
	}
	assert.True(t, attrs["db.slow_query"].AsBool())
	assert.Equal(t, "traced_rows", attrs["db.sql.table"].AsString())
	assert.Equal(t, codes.Error, got.Status().Code, "unique violation marks the span")

	var slowEvents int
	for _, ev := range got.Events() {
		if ev.Name == "slow_query_warning" {
			slowEvents++
		}
	}
	assert.GreaterOrEqual(t, slowEvents, 2)
}

func TestSlowQueryCallbacks_IgnoresRecordNotFound(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	db := setupTracedDB(t)
	require.NoError(t, telemetry.RegisterSlowQueryCallbacks(db, time.Hour))

	ctx, span := tp.Tracer("test").Start(context.Background(), "lookup")
	var row tracedRow
	err := db.WithContext(ctx).Where("code = ?", "missing").First(&row).Error
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
	span.End()

	got := recorder.Ended()[0]
	assert.NotEqual(t, codes.Error, got.Status().Code)
	for _, kv := range got.Attributes() {
		assert.NotEqual(t, attribute.Key("db.slow_query"), kv.Key)
	}
}

func TestRegisterDBPoolMetrics(t *testing.T) {
	reader, provider := setupMeter(t)
	db := setupTracedDB(t)
	sqlDB, err := db.DB()
	require.NoError(t, err)

	reg, err := telemetry.RegisterDBPoolMetrics(provider.Meter("test"), sqlDB)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Unregister() })

	rm := collect(t, reader)
	m, ok := findMetric(rm, "db_pool_connections_max")
	require.True(t, ok)
	gauge, ok := m.Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, gauge.DataPoints, 1)
	assert.Equal(t, int64(1), gauge.DataPoints[0].Value)

	_, ok = findMetric(rm, "db_pool_connections")
	assert.True(t, ok)
}
