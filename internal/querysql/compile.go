// Package querysql compiles fetch requests into parameterized SQLite queries
// over the objects table.
package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/sharedstore/internal/ir"
	"github.com/roach88/sharedstore/internal/queryir"
)

// OrderBy is appended to every fetch. Insertion sequence first, id as the
// deterministic tiebreaker.
const OrderBy = "ORDER BY seq ASC, id COLLATE BINARY ASC"

// Compiler compiles fetch requests to parameterized SQL.
//
// All values AND attribute paths are bound as parameters; nothing from a
// request is interpolated into the SQL text.
type Compiler struct {
	// Table is the objects table name.
	Table string
}

// NewCompiler returns a compiler for the default objects table.
func NewCompiler() *Compiler {
	return &Compiler{Table: "objects"}
}

// CompileFetch converts a request into a SELECT returning (seq, id, attributes).
func (c *Compiler) CompileFetch(req queryir.FetchRequest) (string, []any, error) {
	where, params, err := c.compileWhere(req)
	if err != nil {
		return "", nil, err
	}

	sql := fmt.Sprintf("SELECT seq, id, attributes FROM %s WHERE %s %s", c.Table, where, OrderBy)
	if req.Limit > 0 {
		sql += " LIMIT ?"
		params = append(params, req.Limit)
	}
	return sql, params, nil
}

// CompileCount converts a request into a SELECT COUNT(*). Limit is ignored.
func (c *Compiler) CompileCount(req queryir.FetchRequest) (string, []any, error) {
	where, params, err := c.compileWhere(req)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", c.Table, where), params, nil
}

func (c *Compiler) compileWhere(req queryir.FetchRequest) (string, []any, error) {
	if req.Entity == "" {
		return "", nil, fmt.Errorf("fetch request has no entity")
	}

	where := "entity = ?"
	params := []any{req.Entity}
	if req.Filter != nil {
		filterSQL, filterParams, err := c.compilePredicate(req.Filter)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		where += " AND " + filterSQL
		params = append(params, filterParams...)
	}
	return where, params, nil
}

func (c *Compiler) compilePredicate(p queryir.Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case nil:
		return "", nil, fmt.Errorf("nil predicate")
	case queryir.Equals:
		return compileComparison(pred.Field, "=", pred.Value)
	case *queryir.Equals:
		return compileComparison(pred.Field, "=", pred.Value)
	case queryir.NotEquals:
		// IS NOT keeps rows where the attribute is missing (NULL).
		return compileComparison(pred.Field, "IS NOT", pred.Value)
	case *queryir.NotEquals:
		return compileComparison(pred.Field, "IS NOT", pred.Value)
	case queryir.And:
		return c.compileAnd(pred)
	case *queryir.And:
		return c.compileAnd(*pred)
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func (c *Compiler) compileAnd(and queryir.And) (string, []any, error) {
	if len(and.Predicates) == 0 {
		return "1 = 1", nil, nil
	}

	parts := make([]string, 0, len(and.Predicates))
	var params []any
	for _, pred := range and.Predicates {
		sql, predParams, err := c.compilePredicate(pred)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, sql)
		params = append(params, predParams...)
	}
	return "(" + strings.Join(parts, " AND ") + ")", params, nil
}

func compileComparison(field, op string, value ir.Value) (string, []any, error) {
	param, err := valueToParam(value)
	if err != nil {
		return "", nil, fmt.Errorf("field %q: %w", field, err)
	}
	if field == queryir.IDField {
		return fmt.Sprintf("id %s ?", op), []any{param}, nil
	}
	if !ir.IsIdentifier(field) {
		return "", nil, fmt.Errorf("invalid field name %q", field)
	}
	return fmt.Sprintf("json_extract(attributes, ?) %s ?", op), []any{"$." + field, param}, nil
}

// valueToParam converts a scalar value to a driver parameter. json_extract
// yields 1/0 for JSON booleans, which is how the driver binds Go bools.
func valueToParam(v ir.Value) (any, error) {
	switch val := v.(type) {
	case ir.String:
		return string(val), nil
	case ir.Int:
		return int64(val), nil
	case ir.Bool:
		return bool(val), nil
	case nil:
		return nil, fmt.Errorf("nil value cannot be compared")
	default:
		return nil, fmt.Errorf("%s values cannot be used as SQL parameters", v.Kind())
	}
}
