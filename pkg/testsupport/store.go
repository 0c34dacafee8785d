package testsupport

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-readthrough/books"
	"github.com/goliatone/go-readthrough/internal/database"
)

// SQLiteDSN returns a DSN for a private in-memory database.
func SQLiteDSN() string {
	return "file:" + uuid.NewString() + "?mode=memory&cache=shared"
}

// NewSQLiteDB opens a fresh in-memory database with the book tables created.
// It is closed when the test ends.
func NewSQLiteDB(t testing.TB) *bun.DB {
	t.Helper()

	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{Driver: database.DriverSQLite, DSN: SQLiteDSN()})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := database.CreateTables(ctx, db, books.Models()...); err != nil {
		t.Fatalf("failed to create tables: %v", err)
	}
	return db
}

// Library is a seed data set.
type Library struct {
	Authors []books.Author `json:"authors"`
	Books   []books.Book   `json:"books"`
}

// DefaultLibrary has two authors with two books each and one anonymous book.
// Book AuthorIDs index into Authors starting at 1.
func DefaultLibrary() Library {
	return Library{
		Authors: []books.Author{
			{FirstName: "Ursula", LastName: "Le Guin", Email: "ursula@example.com"},
			{FirstName: "Rob", LastName: "Pike", Email: "rob@example.com"},
		},
		Books: []books.Book{
			{Title: "The Dispossessed", AuthorID: Ref(int64(1))},
			{Title: "A Wizard of Earthsea", AuthorID: Ref(int64(1))},
			{Title: "The Go Programming Language", AuthorID: Ref(int64(2))},
			{Title: "The Practice of Programming", AuthorID: Ref(int64(2))},
			{Title: "Beowulf"},
		},
	}
}

// Seed inserts lib and returns the stored rows with their assigned ids.
// AuthorIDs in lib.Books are positions in lib.Authors (1-based) and are
// rewritten to the assigned author ids.
func Seed(t testing.TB, db bun.IDB, lib Library) Library {
	t.Helper()
	ctx := context.Background()

	authors := books.NewAuthorRepository(db)
	authorIDs, err := authors.AddRange(ctx, lib.Authors)
	if err != nil {
		t.Fatalf("failed to seed authors: %v", err)
	}
	out := Library{Authors: make([]books.Author, len(lib.Authors))}
	for i, a := range lib.Authors {
		a.ID = authorIDs[i]
		out.Authors[i] = a
	}

	rows := make([]books.Book, len(lib.Books))
	for i, b := range lib.Books {
		if b.AuthorID != nil {
			b.AuthorID = Ref(authorIDs[*b.AuthorID-1])
		}
		rows[i] = b
	}
	bookIDs, err := books.NewBookRepository(db).AddRange(ctx, rows)
	if err != nil {
		t.Fatalf("failed to seed books: %v", err)
	}
	for i := range rows {
		rows[i].ID = bookIDs[i]
	}
	out.Books = rows
	return out
}

// Ref returns a pointer to v.
func Ref[T any](v T) *T {
	return &v
}
