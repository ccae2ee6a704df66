package query

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"gorm.io/gorm/clause"

	apperrors "github.com/palisade-admin/palisade/pkg/errors"
)

// Filters maps "field" or "field__operator" keys to values. A missing operator suffix means
// equality. All keys are combined with logical AND.
type Filters map[string]any

// Operator suffixes accepted in filter keys.
const (
	OpEq         = "eq"
	OpNe         = "ne"
	OpContains   = "contains"
	OpIContains  = "icontains"
	OpStartsWith = "startswith"
	OpEndsWith   = "endswith"
	OpGt         = "gt"
	OpGe         = "ge"
	OpLt         = "lt"
	OpLe         = "le"
	OpIn         = "in"
	OpNotIn      = "not_in"
	OpIsNull     = "is_null"
	OpBetween    = "between"
)

var supportedOperators = map[string]struct{}{
	OpEq: {}, OpNe: {}, OpContains: {}, OpIContains: {}, OpStartsWith: {}, OpEndsWith: {},
	OpGt: {}, OpGe: {}, OpLt: {}, OpLe: {}, OpIn: {}, OpNotIn: {}, OpIsNull: {}, OpBetween: {},
}

// Compile translates the filter set into store predicates. An empty set compiles to no
// restriction. Keys are processed in sorted order so generated SQL is deterministic.
func (fs *FieldSet) Compile(filters Filters) ([]clause.Expression, error) {
	if len(filters) == 0 {
		return nil, nil
	}

	keys := make([]string, 0, len(filters))
	for key := range filters {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	exprs := make([]clause.Expression, 0, len(keys))
	for _, key := range keys {
		expr, err := fs.compileOne(key, filters[key])
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, expr)
	}
	return exprs, nil
}

func (fs *FieldSet) compileOne(key string, value any) (clause.Expression, error) {
	field, op := key, OpEq
	if idx := strings.Index(key, "__"); idx >= 0 {
		field, op = key[:idx], key[idx+2:]
	}

	if _, ok := supportedOperators[op]; !ok {
		return nil, apperrors.NewUnsupportedOperator(op)
	}

	colName, ok := fs.Column(field)
	if !ok {
		return nil, apperrors.NewUnknownField(field)
	}
	col := clause.Column{Name: colName}

	switch op {
	case OpEq:
		return clause.Eq{Column: col, Value: value}, nil
	case OpNe:
		return clause.Neq{Column: col, Value: value}, nil
	case OpContains:
		return clause.Like{Column: col, Value: "%" + stringify(value) + "%"}, nil
	case OpIContains:
		return clause.Expr{
			SQL:  "LOWER(?) LIKE ?",
			Vars: []any{col, strings.ToLower("%" + stringify(value) + "%")},
		}, nil
	case OpStartsWith:
		return clause.Like{Column: col, Value: stringify(value) + "%"}, nil
	case OpEndsWith:
		return clause.Like{Column: col, Value: "%" + stringify(value)}, nil
	case OpGt:
		return clause.Gt{Column: col, Value: value}, nil
	case OpGe:
		return clause.Gte{Column: col, Value: value}, nil
	case OpLt:
		return clause.Lt{Column: col, Value: value}, nil
	case OpLe:
		return clause.Lte{Column: col, Value: value}, nil
	case OpIn:
		values, ok := sequenceValues(value)
		if !ok {
			return nil, apperrors.NewBadRequest(fmt.Sprintf("%s__in requires a list value", field))
		}
		return clause.IN{Column: col, Values: values}, nil
	case OpNotIn:
		values, ok := sequenceValues(value)
		if !ok {
			return nil, apperrors.NewBadRequest(fmt.Sprintf("%s__not_in requires a list value", field))
		}
		return clause.Not(clause.IN{Column: col, Values: values}), nil
	case OpIsNull:
		isNull, ok := value.(bool)
		if !ok {
			return nil, apperrors.NewBadRequest(fmt.Sprintf("%s__is_null requires a boolean value", field))
		}
		if isNull {
			return clause.Eq{Column: col, Value: nil}, nil
		}
		return clause.Neq{Column: col, Value: nil}, nil
	case OpBetween:
		bounds, ok := sequenceValues(value)
		if !ok || len(bounds) != 2 {
			return nil, apperrors.NewBadRequest(fmt.Sprintf("%s__between requires exactly two values", field))
		}
		return clause.Expr{SQL: "? BETWEEN ? AND ?", Vars: []any{col, bounds[0], bounds[1]}}, nil
	}

	return nil, apperrors.NewUnsupportedOperator(op)
}

// HasOperator reports whether the filter key carries an operator suffix.
func HasOperator(key string) bool {
	return strings.Contains(key, "__")
}

func stringify(value any) string {
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", value)
}

// sequenceValues flattens a slice or array value into []any. Strings are not sequences.
func sequenceValues(value any) ([]any, bool) {
	if value == nil {
		return nil, false
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
