package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/erp/portal/internal/domain/masterdata"
	"github.com/erp/portal/internal/domain/shared"
	"github.com/erp/portal/internal/infrastructure/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const defaultBatchSize = 100

// ErrMissingScope is returned when a scoped entity is accessed without a scope
var ErrMissingScope = errors.New("scope required for scoped entity")

// EntityMapping describes how one cached entity maps onto its table
type EntityMapping[T any, M any] struct {
	Entity masterdata.Entity
	// KeyColumns is the natural key, used for ON CONFLICT and ordering
	KeyColumns []string
	// KeyOf returns the natural key of an item within its scope. Writes keep
	// only the last item per key.
	KeyOf func(item T) string
	// ScopeColumn partitions the table per scope (price list, warehouse); empty when unscoped
	ScopeColumn string
	// SearchColumns are matched case-insensitively by Find
	SearchColumns []string
	// SoftDelete marks tables carrying is_active and sync_run_id
	SoftDelete bool
	ToModel    func(item T, scope string, stamp masterdata.SyncStamp) (M, error)
	ToDomain   func(m *M) (T, error)
}

// GormEntityStore persists one cached entity type in its own table
type GormEntityStore[T any, M any] struct {
	db        *gorm.DB
	mapping   EntityMapping[T, M]
	batchSize int
	logger    *zap.Logger
}

// EntityStoreOption configures a GormEntityStore
type EntityStoreOption func(*storeOptions)

type storeOptions struct {
	batchSize int
	logger    *zap.Logger
}

// WithBatchSize sets the insert batch size
func WithBatchSize(n int) EntityStoreOption {
	return func(o *storeOptions) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

// WithStoreLogger sets the logger used to report skipped rows
func WithStoreLogger(l *zap.Logger) EntityStoreOption {
	return func(o *storeOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// NewGormEntityStore creates a store for the given mapping
func NewGormEntityStore[T any, M any](db *gorm.DB, mapping EntityMapping[T, M], opts ...EntityStoreOption) *GormEntityStore[T, M] {
	o := storeOptions{batchSize: defaultBatchSize, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return &GormEntityStore[T, M]{
		db:        db,
		mapping:   mapping,
		batchSize: o.batchSize,
		logger:    o.logger.With(zap.String("entity", mapping.Entity.String())),
	}
}

// SoftDelete reports whether the table keeps tombstoned rows
func (s *GormEntityStore[T, M]) SoftDelete() bool {
	return s.mapping.SoftDelete
}

// LoadActive returns every active row in scope, ordered by natural key
func (s *GormEntityStore[T, M]) LoadActive(ctx context.Context, scope string) ([]T, error) {
	q, err := s.scoped(ctx, scope)
	if err != nil {
		return nil, err
	}
	q = s.active(q)

	var rows []M
	if err := s.ordered(q).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load %s: %w", s.mapping.Entity, err)
	}
	return s.toDomain(ctx, rows), nil
}

// Count returns the number of active rows in scope
func (s *GormEntityStore[T, M]) Count(ctx context.Context, scope string) (int64, error) {
	q, err := s.scoped(ctx, scope)
	if err != nil {
		return 0, err
	}

	var n int64
	if err := s.active(q).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count %s: %w", s.mapping.Entity, err)
	}
	return n, nil
}

// Upsert inserts items or overwrites existing rows with the same natural key.
// Every written row is stamped with the run, which reactivates tombstoned rows.
func (s *GormEntityStore[T, M]) Upsert(ctx context.Context, scope string, items []T, stamp masterdata.SyncStamp) error {
	if err := s.checkScope(scope); err != nil {
		return err
	}
	rows := s.toModels(ctx, scope, s.dedupe(ctx, items), stamp)
	if len(rows) == 0 {
		return nil
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: s.keyColumns(), UpdateAll: true}).
		CreateInBatches(&rows, s.batchSize).Error
	if err != nil {
		return fmt.Errorf("upsert %s: %w", s.mapping.Entity, err)
	}
	return nil
}

// Tombstone deactivates every active row in scope not written by runID and
// returns how many rows it touched. Tables without soft delete are left alone.
func (s *GormEntityStore[T, M]) Tombstone(ctx context.Context, scope string, runID string) (int64, error) {
	if !s.mapping.SoftDelete {
		return 0, nil
	}
	q, err := s.scoped(ctx, scope)
	if err != nil {
		return 0, err
	}

	res := q.Where("sync_run_id <> ? AND is_active = ?", runID, true).
		UpdateColumn("is_active", false)
	if res.Error != nil {
		return 0, fmt.Errorf("tombstone %s: %w", s.mapping.Entity, res.Error)
	}
	return res.RowsAffected, nil
}

// ReplaceScope deletes every row in scope and inserts items in one transaction.
// On error the previous content is left untouched.
func (s *GormEntityStore[T, M]) ReplaceScope(ctx context.Context, scope string, items []T, stamp masterdata.SyncStamp) error {
	if err := s.checkScope(scope); err != nil {
		return err
	}
	rows := s.toModels(ctx, scope, s.dedupe(ctx, items), stamp)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		del := tx.Session(&gorm.Session{AllowGlobalUpdate: true})
		if s.mapping.ScopeColumn != "" {
			del = tx.Where(clause.Eq{Column: clause.Column{Name: s.mapping.ScopeColumn}, Value: scope})
		}
		if err := del.Delete(new(M)).Error; err != nil {
			return fmt.Errorf("delete scope: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(&rows, s.batchSize).Error; err != nil {
			return fmt.Errorf("insert: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("replace %s: %w", s.mapping.Entity, err)
	}
	return nil
}

// Find returns one page of rows in scope matching filter
func (s *GormEntityStore[T, M]) Find(ctx context.Context, scope string, filter shared.Filter) (shared.Paginated[T], error) {
	filter = filter.Normalize(1000)
	q, err := s.scoped(ctx, scope)
	if err != nil {
		return shared.Paginated[T]{}, err
	}
	if !filter.IncludeInactive {
		q = s.active(q)
	}
	if term := strings.TrimSpace(filter.Search); term != "" && len(s.mapping.SearchColumns) > 0 {
		q = q.Where(s.searchExpr(term))
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return shared.Paginated[T]{}, fmt.Errorf("count %s: %w", s.mapping.Entity, err)
	}

	var rows []M
	if err := s.ordered(q).Offset(filter.Offset()).Limit(filter.PageSize).Find(&rows).Error; err != nil {
		return shared.Paginated[T]{}, fmt.Errorf("find %s: %w", s.mapping.Entity, err)
	}
	return shared.NewPaginated(s.toDomain(ctx, rows), total, filter.Page, filter.PageSize), nil
}

func (s *GormEntityStore[T, M]) checkScope(scope string) error {
	if s.mapping.ScopeColumn != "" && scope == "" {
		return fmt.Errorf("%s: %w", s.mapping.Entity, ErrMissingScope)
	}
	return nil
}

func (s *GormEntityStore[T, M]) scoped(ctx context.Context, scope string) (*gorm.DB, error) {
	if err := s.checkScope(scope); err != nil {
		return nil, err
	}
	q := s.db.WithContext(ctx).Model(new(M))
	if s.mapping.ScopeColumn != "" {
		q = q.Where(clause.Eq{Column: clause.Column{Name: s.mapping.ScopeColumn}, Value: scope})
	}
	return q, nil
}

func (s *GormEntityStore[T, M]) active(q *gorm.DB) *gorm.DB {
	if !s.mapping.SoftDelete {
		return q
	}
	return q.Where("is_active = ?", true)
}

func (s *GormEntityStore[T, M]) ordered(q *gorm.DB) *gorm.DB {
	for _, col := range s.mapping.KeyColumns {
		q = q.Order(clause.OrderByColumn{Column: clause.Column{Name: col}})
	}
	return q
}

func (s *GormEntityStore[T, M]) keyColumns() []clause.Column {
	cols := make([]clause.Column, len(s.mapping.KeyColumns))
	for i, name := range s.mapping.KeyColumns {
		cols[i] = clause.Column{Name: name}
	}
	return cols
}

func (s *GormEntityStore[T, M]) searchExpr(term string) clause.Expression {
	pattern := "%" + strings.ToLower(term) + "%"
	exprs := make([]clause.Expression, len(s.mapping.SearchColumns))
	for i, col := range s.mapping.SearchColumns {
		exprs[i] = clause.Expr{
			SQL:  "LOWER(?) LIKE ?",
			Vars: []any{clause.Column{Name: col}, pattern},
		}
	}
	return clause.Or(exprs...)
}

// dedupe collapses items sharing a natural key onto the last one seen. Upstream
// pages are not stable, so a record can show up on two pages of one crawl.
func (s *GormEntityStore[T, M]) dedupe(ctx context.Context, items []T) []T {
	if s.mapping.KeyOf == nil || len(items) < 2 {
		return items
	}
	pos := make(map[string]int, len(items))
	out := make([]T, 0, len(items))
	for _, item := range items {
		key := s.mapping.KeyOf(item)
		if i, ok := pos[key]; ok {
			out[i] = item
			continue
		}
		pos[key] = len(out)
		out = append(out, item)
	}
	if dropped := len(items) - len(out); dropped > 0 {
		logger.Enrich(ctx, s.logger).Debug("Collapsed duplicate items", zap.Int("duplicates", dropped))
	}
	return out
}

func (s *GormEntityStore[T, M]) toModels(ctx context.Context, scope string, items []T, stamp masterdata.SyncStamp) []M {
	rows := make([]M, 0, len(items))
	for i, item := range items {
		m, err := s.mapping.ToModel(item, scope, stamp)
		if err != nil {
			logger.Enrich(ctx, s.logger).Warn("Skipping item that cannot be stored",
				zap.Int("index", i),
				zap.Error(err),
			)
			continue
		}
		rows = append(rows, m)
	}
	return rows
}

func (s *GormEntityStore[T, M]) toDomain(ctx context.Context, rows []M) []T {
	items := make([]T, 0, len(rows))
	for i := range rows {
		item, err := s.mapping.ToDomain(&rows[i])
		if err != nil {
			logger.Enrich(ctx, s.logger).Warn("Skipping unreadable row", zap.Error(err))
			continue
		}
		items = append(items, item)
	}
	return items
}
