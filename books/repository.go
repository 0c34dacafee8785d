package books

import (
	"github.com/uptrace/bun"

	"github.com/goliatone/go-readthrough/repository"
)

type (
	BookRepository   = repository.Repository[Book]
	AuthorRepository = repository.Repository[Author]
)

var (
	_ BookRepository   = (*repository.BunRepository[Book])(nil)
	_ AuthorRepository = (*repository.BunRepository[Author])(nil)
)

func NewBookRepository(db bun.IDB) *repository.BunRepository[Book] {
	return repository.NewBunRepository[Book](db)
}

func NewAuthorRepository(db bun.IDB) *repository.BunRepository[Author] {
	return repository.NewBunRepository[Author](db)
}

// Models lists the tables owned by this package in creation order.
func Models() []any {
	return []any{(*Author)(nil), (*Book)(nil)}
}
