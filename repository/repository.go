// Package repository defines a generic data-access contract over entities with a
// numeric identity, together with a bun-backed implementation.
//
// # Contract
//
// Repository[T] exposes immediate operations (Add, Update, GetAll, Find, ...) and
// a lazy Query handle. Immediate operations hit the store once per call and return
// plain Go errors; absence is never an error at this layer:
//
//   - GetByID returns (nil, nil) when the identity does not exist
//   - Update returns 0 rows affected when the identity does not exist
//   - Delete returns false when the identity does not exist
//
// Deciding whether absence is a NotFound failure is left to the service layer.
//
// # Filters
//
// Find and Query take a Filter value instead of a closure so predicates are pushed
// down to the store as SQL:
//
//	books, err := repo.Find(ctx, repository.And(
//		repository.Contains("title", "go"),
//		repository.Eq("author.last_name", "Pike"),
//	), "Author")
//
// Because a Filter is plain data it also serialises into stable cache keys.
package repository

import (
	"context"
	"errors"
)

// Entity is satisfied by every persisted domain record.
// The identity is assigned by the store on insert and never changes afterwards.
type Entity interface {
	GetID() int64
}

// ErrNoStore is returned when a Query built without a backing store is executed.
var ErrNoStore = errors.New("repository: query has no backing store")

// Repository is the data-access contract for a single entity type.
// include arguments name relations to eager-load ("Author", "Author.Publisher").
type Repository[T Entity] interface {
	Add(ctx context.Context, entity T) (int64, error)
	AddRange(ctx context.Context, entities []T) ([]int64, error)
	Update(ctx context.Context, entity T) (int64, error)
	Delete(ctx context.Context, id int64) (bool, error)
	GetByID(ctx context.Context, id int64, include ...string) (*T, error)
	GetAll(ctx context.Context, include ...string) ([]T, error)
	Find(ctx context.Context, filter Filter, include ...string) ([]T, error)
	Query(include ...string) Query[T]
}
