package store

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm/clause"

	"github.com/palisade-admin/palisade/internal/query"
	apperrors "github.com/palisade-admin/palisade/pkg/errors"
)

// DefaultPageSize applies when the caller does not request a page size.
const DefaultPageSize = 20

// PageRequest describes pagination and ordering input. OrderBy names a single field,
// ascending by default, with a leading "-" for descending.
type PageRequest struct {
	Page    int    `form:"page" json:"page"`
	Size    int    `form:"size" json:"size"`
	OrderBy string `form:"order_by" json:"order_by"`
}

// Page holds one page of materialized results plus the total matching count, computed by a
// separate count query over the same compiled predicates.
type Page[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
}

// Paginate returns the requested page of rows matching the filters. Page numbers clamp to a
// minimum of 1; unknown order fields fail rather than being ignored.
func (r *Repository[T]) Paginate(ctx context.Context, req PageRequest, filters query.Filters, opts ...ReadOption) (*Page[T], error) {
	page := req.Page
	if page < 1 {
		page = 1
	}
	size := req.Size
	if size <= 0 {
		size = DefaultPageSize
	}

	order, err := r.orderClause(req.OrderBy)
	if err != nil {
		return nil, err
	}

	exprs, err := r.fields.Compile(filters)
	if err != nil {
		return nil, err
	}

	total, err := r.countWith(ctx, exprs, opts...)
	if err != nil {
		return nil, err
	}

	tx := r.readScope(ctx, opts...)
	if len(exprs) > 0 {
		tx = tx.Clauses(exprs...)
	}

	var items []T
	err = tx.Order(order).
		Offset((page - 1) * size).
		Limit(size).
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("store: paginate %s: %w", r.fields.Table(), err)
	}

	return &Page[T]{Items: items, Total: total}, nil
}

func (r *Repository[T]) countWith(ctx context.Context, exprs []clause.Expression, opts ...ReadOption) (int64, error) {
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

func (r *Repository[T]) orderClause(orderBy string) (clause.OrderByColumn, error) {
	field := strings.TrimSpace(orderBy)
	desc := false
	if strings.HasPrefix(field, "-") {
		desc = true
		field = field[1:]
	}
	if field == "" {
		field, desc = "id", false
	}

	col, ok := r.fields.Column(field)
	if !ok {
		return clause.OrderByColumn{}, apperrors.NewBadRequest(fmt.Sprintf("unknown order field %q", field))
	}
	return clause.OrderByColumn{Column: clause.Column{Name: col}, Desc: desc}, nil
}

// Values projects the caller-specified fields into one map per row.
func (r *Repository[T]) Values(ctx context.Context, fields []string, filters query.Filters, opts ...ReadOption) ([]map[string]any, error) {
	columns, err := r.projection(fields)
	if err != nil {
		return nil, err
	}

	exprs, err := r.fields.Compile(filters)
	if err != nil {
		return nil, err
	}

	tx := r.readScope(ctx, opts...).Select(columns)
	if len(exprs) > 0 {
		tx = tx.Clauses(exprs...)
	}

	var rows []map[string]any
	if err := tx.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("store: values %s: %w", r.fields.Table(), err)
	}
	return rows, nil
}

// Pluck flattens a single projected field to a bare value list.
func (r *Repository[T]) Pluck(ctx context.Context, field string, filters query.Filters, opts ...ReadOption) ([]any, error) {
	columns, err := r.projection([]string{field})
	if err != nil {
		return nil, err
	}

	exprs, err := r.fields.Compile(filters)
	if err != nil {
		return nil, err
	}

	tx := r.readScope(ctx, opts...)
	if len(exprs) > 0 {
		tx = tx.Clauses(exprs...)
	}

	var values []any
	if err := tx.Pluck(columns[0], &values).Error; err != nil {
		return nil, fmt.Errorf("store: pluck %s: %w", r.fields.Table(), err)
	}
	return values, nil
}

func (r *Repository[T]) projection(fields []string) ([]string, error) {
	if len(fields) == 0 {
		return nil, apperrors.NewBadRequest("projection requires at least one field")
	}

	columns := make([]string, 0, len(fields))
	for _, field := range fields {
		col, ok := r.fields.Column(strings.TrimSpace(field))
		if !ok {
			return nil, apperrors.NewBadRequest(fmt.Sprintf("unknown projection field %q", field))
		}
		columns = append(columns, col)
	}
	return columns, nil
}
