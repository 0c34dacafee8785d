package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"

	"github.com/uptrace/bun"
)

type ordering struct {
	Column string
	Desc   bool
}

// Query is a lazily evaluated, composable query over an entity's table.
// Builder methods return a modified copy; nothing reaches the store until
// All, First or Count is called.
type Query[T Entity] struct {
	db       bun.IDB
	includes []string
	filters  []Filter
	orders   []ordering
	limit    int
	offset   int
}

// NewQuery returns a query handle over db. A nil db yields a handle whose
// executing methods fail with ErrNoStore.
func NewQuery[T Entity](db bun.IDB, include ...string) Query[T] {
	return Query[T]{db: db, includes: cleanIncludes(include)}
}

// Include eager-loads the named relation path.
func (q Query[T]) Include(path string) Query[T] {
	if path == "" {
		return q
	}
	q.includes = append(cloneSlice(q.includes), path)
	return q
}

// Where narrows the query. Multiple calls are combined with AND.
func (q Query[T]) Where(f Filter) Query[T] {
	if f.IsZero() {
		return q
	}
	q.filters = append(cloneSlice(q.filters), f)
	return q
}

// OrderBy appends a sort key. Bare columns refer to the entity's own table.
func (q Query[T]) OrderBy(column string, desc bool) Query[T] {
	q.orders = append(cloneSlice(q.orders), ordering{Column: column, Desc: desc})
	return q
}

// Limit caps the number of rows; n <= 0 removes the cap.
func (q Query[T]) Limit(n int) Query[T] {
	q.limit = n
	return q
}

// Offset skips the first n rows.
func (q Query[T]) Offset(n int) Query[T] {
	q.offset = n
	return q
}

// Includes returns the relation paths the query eager-loads.
func (q Query[T]) Includes() []string {
	return cloneSlice(q.includes)
}

// All executes the query and returns every matching entity.
func (q Query[T]) All(ctx context.Context) ([]T, error) {
	out := make([]T, 0)
	sel, err := q.build(&out, true)
	if err != nil {
		return nil, err
	}
	if err := sel.Scan(ctx); err != nil {
		return nil, fmt.Errorf("repository: query %s: %w", tableName[T](), err)
	}
	return out, nil
}

// First executes the query with a limit of one. It returns nil when nothing matches.
func (q Query[T]) First(ctx context.Context) (*T, error) {
	var out T
	sel, err := q.Limit(1).build(&out, true)
	if err != nil {
		return nil, err
	}
	if err := sel.Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("repository: query %s: %w", tableName[T](), err)
	}
	return &out, nil
}

// Count returns the number of matching rows, ignoring limit and offset.
func (q Query[T]) Count(ctx context.Context) (int, error) {
	sel, err := q.build((*T)(nil), false)
	if err != nil {
		return 0, err
	}
	n, err := sel.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("repository: count %s: %w", tableName[T](), err)
	}
	return n, nil
}

func (q Query[T]) build(model any, paged bool) (*bun.SelectQuery, error) {
	if q.db == nil {
		return nil, ErrNoStore
	}

	sel := q.db.NewSelect().Model(model)
	for _, path := range q.includes {
		sel = sel.Relation(path)
	}
	for _, f := range q.filters {
		if err := f.Validate(); err != nil {
			return nil, err
		}
		expr, args := f.appendSQL()
		sel = sel.Where(expr, args...)
	}
	if !paged {
		return sel, nil
	}

	for _, o := range q.orders {
		if err := validateColumn(o.Column); err != nil {
			return nil, err
		}
		col, args := columnExpr(o.Column)
		if o.Desc {
			col += " DESC"
		}
		sel = sel.OrderExpr(col, args...)
	}
	if len(q.orders) == 0 {
		sel = sel.OrderExpr("?TablePKs")
	}
	if q.limit > 0 {
		sel = sel.Limit(q.limit)
	}
	if q.offset > 0 {
		if q.limit <= 0 {
			// sqlite rejects OFFSET without LIMIT
			sel = sel.Limit(math.MaxInt32)
		}
		sel = sel.Offset(q.offset)
	}
	return sel, nil
}

func cleanIncludes(include []string) []string {
	var out []string
	for _, path := range include {
		if path != "" {
			out = append(out, path)
		}
	}
	return out
}

func cloneSlice[S ~[]E, E any](s S) S {
	if s == nil {
		return nil
	}
	return append(make(S, 0, len(s)+1), s...)
}
