package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"

	"github.com/uptrace/bun"
)

// BunRepository implements Repository[T] on top of a bun.IDB, which may be a
// *bun.DB or a bun.Tx. T must be a bun model struct whose primary key is an
// auto-incremented integer, e.g.
//
//	type Book struct {
//		bun.BaseModel `bun:"table:books,alias:book"`
//		ID            int64 `bun:"id,pk,autoincrement"`
//	}
type BunRepository[T Entity] struct {
	db bun.IDB
}

// NewBunRepository creates a repository for T backed by db.
func NewBunRepository[T Entity](db bun.IDB) *BunRepository[T] {
	return &BunRepository[T]{db: db}
}

// WithTx returns a repository bound to tx. Each call on it runs inside the transaction.
func (r *BunRepository[T]) WithTx(tx bun.Tx) *BunRepository[T] {
	return &BunRepository[T]{db: tx}
}

// Add inserts entity and returns the identity assigned by the store.
func (r *BunRepository[T]) Add(ctx context.Context, entity T) (int64, error) {
	if _, err := r.db.NewInsert().Model(&entity).Returning("?PKs").Exec(ctx); err != nil {
		return 0, fmt.Errorf("repository: add %s: %w", tableName[T](), err)
	}
	return entity.GetID(), nil
}

// AddRange inserts all entities with a single multi-row statement, so the batch
// either lands completely or not at all. Identities are returned in input order.
func (r *BunRepository[T]) AddRange(ctx context.Context, entities []T) ([]int64, error) {
	if len(entities) == 0 {
		return []int64{}, nil
	}

	rows := append([]T(nil), entities...)
	if _, err := r.db.NewInsert().Model(&rows).Returning("?PKs").Exec(ctx); err != nil {
		return nil, fmt.Errorf("repository: add range %s: %w", tableName[T](), err)
	}

	ids := make([]int64, len(rows))
	for i, row := range rows {
		ids[i] = row.GetID()
	}
	return ids, nil
}

// Update writes every column of entity by primary key and returns the rows affected.
// Zero means no row had that identity.
func (r *BunRepository[T]) Update(ctx context.Context, entity T) (int64, error) {
	res, err := r.db.NewUpdate().Model(&entity).WherePK().Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("repository: update %s %d: %w", tableName[T](), entity.GetID(), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("repository: update %s %d: rows affected: %w", tableName[T](), entity.GetID(), err)
	}
	return n, nil
}

// Delete removes the row with id and reports whether one existed.
func (r *BunRepository[T]) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.NewDelete().Model((*T)(nil)).Where("?PKs = ?", id).Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("repository: delete %s %d: %w", tableName[T](), id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("repository: delete %s %d: rows affected: %w", tableName[T](), id, err)
	}
	return n > 0, nil
}

// GetByID returns the entity with id, or nil when it does not exist.
func (r *BunRepository[T]) GetByID(ctx context.Context, id int64, include ...string) (*T, error) {
	var out T
	sel := r.db.NewSelect().Model(&out).Where("?TablePKs = ?", id)
	for _, path := range cleanIncludes(include) {
		sel = sel.Relation(path)
	}
	if err := sel.Limit(1).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("repository: get %s %d: %w", tableName[T](), id, err)
	}
	return &out, nil
}

// GetAll returns every entity ordered by primary key.
func (r *BunRepository[T]) GetAll(ctx context.Context, include ...string) ([]T, error) {
	return r.Query(include...).All(ctx)
}

// Find returns the entities matching filter, evaluated by the store.
func (r *BunRepository[T]) Find(ctx context.Context, filter Filter, include ...string) ([]T, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	return r.Query(include...).Where(filter).All(ctx)
}

// Query returns a lazy handle over the table.
func (r *BunRepository[T]) Query(include ...string) Query[T] {
	return NewQuery[T](r.db, include...)
}

func tableName[T any]() string {
	t := reflect.TypeFor[T]()
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() == "" {
		return t.String()
	}
	return t.Name()
}
