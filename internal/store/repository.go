package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/palisade-admin/palisade/internal/query"
	apperrors "github.com/palisade-admin/palisade/pkg/errors"
)

const deletedAtColumn = "deleted_at"

// Repository is the generic per-entity access object. It owns entity lifecycle transitions;
// callers submit intent (a filter set or a field delta) and receive materialized results.
//
// Visibility invariant: every read on a soft-delete-capable entity excludes marked rows unless
// the caller opts in via IncludeDeleted. Bulk mutations deliberately do NOT get that implicit
// predicate; they operate on whatever rows match the supplied filters, which lets purge-style
// jobs target rows that are already marked.
type Repository[T any] struct {
	db     *gorm.DB
	fields *query.FieldSet
}

// NewRepository builds a repository for the entity type, parsing its field registry once.
func NewRepository[T any](db *gorm.DB) (*Repository[T], error) {
	if db == nil {
		return nil, errors.New("store: db is required")
	}

	var model T
	fields, err := query.FieldSetFor(db, &model)
	if err != nil {
		return nil, err
	}

	return &Repository[T]{db: db, fields: fields}, nil
}

// Fields exposes the entity's static field registry.
func (r *Repository[T]) Fields() *query.FieldSet {
	return r.fields
}

// DB returns the underlying handle for callers that need raw access (joins, transactions).
func (r *Repository[T]) DB() *gorm.DB {
	return r.db
}

type readConfig struct {
	includeDeleted bool
	preloads       []string
}

// ReadOption customises read queries.
type ReadOption func(*readConfig)

// IncludeDeleted lifts the default soft-delete visibility filter for one read.
func IncludeDeleted() ReadOption {
	return func(cfg *readConfig) {
		cfg.includeDeleted = true
	}
}

// WithPreload eagerly loads the named association.
func WithPreload(assoc string) ReadOption {
	return func(cfg *readConfig) {
		cfg.preloads = append(cfg.preloads, assoc)
	}
}

func (r *Repository[T]) readScope(ctx context.Context, opts ...ReadOption) *gorm.DB {
	cfg := readConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	tx := r.db.WithContext(ctx).Model(new(T))
	if cfg.includeDeleted {
		tx = tx.Unscoped()
	}
	for _, assoc := range cfg.preloads {
		tx = tx.Preload(assoc)
	}
	return tx
}

// GetByID returns the entity with the given identity, or nil when no visible row exists.
func (r *Repository[T]) GetByID(ctx context.Context, id uint, opts ...ReadOption) (*T, error) {
	return r.FindOne(ctx, query.Filters{"id": id}, opts...)
}

// FindOne returns the first entity matching the filters, or nil when none does.
func (r *Repository[T]) FindOne(ctx context.Context, filters query.Filters, opts ...ReadOption) (*T, error) {
	exprs, err := r.fields.Compile(filters)
	if err != nil {
		return nil, err
	}

	var entity T
	tx := r.readScope(ctx, opts...)
	if len(exprs) > 0 {
		tx = tx.Clauses(exprs...)
	}
	err = tx.First(&entity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: find %s: %w", r.fields.Table(), err)
	}
	return &entity, nil
}

// FindOrCreate looks up by the equality filters and creates the row from filters merged with
// defaults when absent. Operator-suffixed keys cannot double as column assignments, so they
// are rejected up front.
func (r *Repository[T]) FindOrCreate(ctx context.Context, filters query.Filters, defaults map[string]any) (*T, error) {
	if len(filters) == 0 {
		return nil, apperrors.NewBadRequest("find-or-create requires at least one filter")
	}

	conds := make(map[string]any, len(filters))
	for key, value := range filters {
		if query.HasOperator(key) {
			return nil, apperrors.NewBadRequest(fmt.Sprintf("find-or-create filters must be plain fields, got %q", key))
		}
		if !r.fields.Has(key) {
			return nil, apperrors.NewUnknownField(key)
		}
		conds[key] = value
	}

	attrs := make(map[string]any, len(defaults))
	for key, value := range defaults {
		if !r.fields.Has(key) {
			return nil, apperrors.NewUnknownField(key)
		}
		attrs[key] = value
	}

	var entity T
	tx := r.db.WithContext(ctx).Model(new(T)).Where(conds)
	if len(attrs) > 0 {
		tx = tx.Attrs(attrs)
	}
	if err := tx.FirstOrCreate(&entity).Error; err != nil {
		return nil, fmt.Errorf("store: find-or-create %s: %w", r.fields.Table(), err)
	}
	return &entity, nil
}

// List returns all entities matching the filters. Order is not guaranteed.
func (r *Repository[T]) List(ctx context.Context, filters query.Filters, opts ...ReadOption) ([]T, error) {
	exprs, err := r.fields.Compile(filters)
	if err != nil {
		return nil, err
	}

	tx := r.readScope(ctx, opts...)
	if len(exprs) > 0 {
		tx = tx.Clauses(exprs...)
	}

	var entities []T
	if err := tx.Find(&entities).Error; err != nil {
		return nil, fmt.Errorf("store: list %s: %w", r.fields.Table(), err)
	}
	return entities, nil
}

// Count returns the number of visible rows matching the filters.
func (r *Repository[T]) Count(ctx context.Context, filters query.Filters, opts ...ReadOption) (int64, error) {
	exprs, err := r.fields.Compile(filters)
	if err != nil {
		return 0, err
	}

	tx := r.readScope(ctx, opts...)
	if len(exprs) > 0 {
		tx = tx.Clauses(exprs...)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return 0, fmt.Errorf("store: count %s: %w", r.fields.Table(), err)
	}
	return total, nil
}

// Create persists the entity, assigning identity and timestamps.
func (r *Repository[T]) Create(ctx context.Context, entity *T) error {
	if entity == nil {
		return apperrors.NewBadRequest("create requires an entity")
	}
	if err := r.db.WithContext(ctx).Create(entity).Error; err != nil {
		return fmt.Errorf("store: create %s: %w", r.fields.Table(), err)
	}
	return nil
}

// Update applies the field delta to the entity and persists it. Only keys present in the
// delta are overwritten; unknown keys are rejected.
func (r *Repository[T]) Update(ctx context.Context, entity *T, delta map[string]any) error {
	if entity == nil {
		return apperrors.NewBadRequest("update requires an entity")
	}
	if len(delta) == 0 {
		return nil
	}
	for key := range delta {
		if !r.fields.Has(key) {
			return apperrors.NewUnknownField(key)
		}
	}
	if err := r.db.WithContext(ctx).Model(entity).Updates(delta).Error; err != nil {
		return fmt.Errorf("store: update %s: %w", r.fields.Table(), err)
	}
	return nil
}

// DeleteOption customises delete behaviour.
type DeleteOption func(*deleteConfig)

type deleteConfig struct {
	hard bool
}

// HardDelete forces physical removal even for soft-delete-capable entities.
func HardDelete() DeleteOption {
	return func(cfg *deleteConfig) {
		cfg.hard = true
	}
}

// Delete removes the entity: by setting the soft-delete marker when the entity supports one
// (the default), or physically when HardDelete is requested.
func (r *Repository[T]) Delete(ctx context.Context, entity *T, opts ...DeleteOption) error {
	if entity == nil {
		return apperrors.NewBadRequest("delete requires an entity")
	}

	cfg := deleteConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	tx := r.db.WithContext(ctx)
	if cfg.hard || !r.fields.Has(deletedAtColumn) {
		tx = tx.Unscoped()
	}
	if err := tx.Delete(entity).Error; err != nil {
		return fmt.Errorf("store: delete %s: %w", r.fields.Table(), err)
	}
	return nil
}

// BulkCreate inserts the batch and reports the affected row count.
func (r *Repository[T]) BulkCreate(ctx context.Context, entities []T) (int64, error) {
	if len(entities) == 0 {
		return 0, apperrors.NewBadRequest("bulk create requires at least one entity")
	}
	tx := r.db.WithContext(ctx).Create(&entities)
	if tx.Error != nil {
		return 0, fmt.Errorf("store: bulk create %s: %w", r.fields.Table(), tx.Error)
	}
	return tx.RowsAffected, nil
}

// BulkUpdateByIDs applies the delta to every row in the identity list, regardless of
// soft-delete state.
func (r *Repository[T]) BulkUpdateByIDs(ctx context.Context, ids []uint, delta map[string]any) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	for key := range delta {
		if !r.fields.Has(key) {
			return 0, apperrors.NewUnknownField(key)
		}
	}

	tx := r.db.WithContext(ctx).Model(new(T)).Unscoped().
		Where("id IN ?", ids).
		Updates(delta)
	if tx.Error != nil {
		return 0, fmt.Errorf("store: bulk update %s: %w", r.fields.Table(), tx.Error)
	}
	return tx.RowsAffected, nil
}

// BulkUpdateByFilter applies the delta to every row matching the compiled filters, regardless
// of soft-delete state. Callers that want to skip marked rows add the marker filter themselves.
func (r *Repository[T]) BulkUpdateByFilter(ctx context.Context, filters query.Filters, delta map[string]any) (int64, error) {
	exprs, err := r.fields.Compile(filters)
	if err != nil {
		return 0, err
	}
	for key := range delta {
		if !r.fields.Has(key) {
			return 0, apperrors.NewUnknownField(key)
		}
	}

	tx := r.db.WithContext(ctx).Model(new(T)).Unscoped()
	if len(exprs) > 0 {
		tx = tx.Clauses(exprs...)
	} else {
		tx = tx.Where("1 = 1")
	}
	tx = tx.Updates(delta)
	if tx.Error != nil {
		return 0, fmt.Errorf("store: bulk update %s: %w", r.fields.Table(), tx.Error)
	}
	return tx.RowsAffected, nil
}

// BulkDeleteOptions selects the rows a bulk delete targets. IDs and Filters combine with AND;
// at least one must be supplied.
type BulkDeleteOptions struct {
	IDs     []uint
	Filters query.Filters
	Hard    bool
}

// BulkDelete marks (default) or removes (Hard) every matching row and reports the affected
// count. Soft bulk deletes additionally restrict to rows not yet marked, so an earlier
// deletion timestamp is never overwritten.
func (r *Repository[T]) BulkDelete(ctx context.Context, opts BulkDeleteOptions) (int64, error) {
	exprs, err := r.fields.Compile(opts.Filters)
	if err != nil {
		return 0, err
	}
	if len(opts.IDs) > 0 {
		values := make([]any, len(opts.IDs))
		for i, id := range opts.IDs {
			values[i] = id
		}
		exprs = append(exprs, clause.IN{Column: clause.Column{Name: "id"}, Values: values})
	}
	if len(exprs) == 0 {
		return 0, apperrors.NewBadRequest("bulk delete requires ids or filters")
	}

	tx := r.db.WithContext(ctx).Model(new(T)).Unscoped().Clauses(exprs...)

	if !opts.Hard && r.fields.Has(deletedAtColumn) {
		tx = tx.Where(deletedAtColumn + " IS NULL").Update(deletedAtColumn, time.Now().UTC())
	} else {
		tx = tx.Delete(new(T))
	}
	if tx.Error != nil {
		return 0, fmt.Errorf("store: bulk delete %s: %w", r.fields.Table(), tx.Error)
	}
	return tx.RowsAffected, nil
}
