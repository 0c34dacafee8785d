package books

import "github.com/uptrace/bun"

// Author is a persisted book author.
type Author struct {
	bun.BaseModel `bun:"table:authors,alias:author"`

	ID        int64  `bun:"id,pk,autoincrement"`
	FirstName string `bun:"first_name,notnull"`
	LastName  string `bun:"last_name,notnull"`
	Email     string `bun:"email,notnull,unique"`
}

func (a Author) GetID() int64 { return a.ID }

// Book is a persisted book. AuthorID is nil for anonymous works; Author is only
// populated when the "Author" relation is included.
type Book struct {
	bun.BaseModel `bun:"table:books,alias:book"`

	ID       int64   `bun:"id,pk,autoincrement"`
	Title    string  `bun:"title,notnull"`
	AuthorID *int64  `bun:"author_id"`
	Author   *Author `bun:"rel:belongs-to,join:author_id=id"`
}

func (b Book) GetID() int64 { return b.ID }

// Clone returns b with its own AuthorID and Author.
func (b Book) Clone() Book {
	if b.AuthorID != nil {
		id := *b.AuthorID
		b.AuthorID = &id
	}
	if b.Author != nil {
		a := *b.Author
		b.Author = &a
	}
	return b
}
