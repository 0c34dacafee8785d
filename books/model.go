package books

// AuthorModel is the read model exposed to API consumers.
type AuthorModel struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

// BookModel is the read model exposed to API consumers.
type BookModel struct {
	ID     int64        `json:"id"`
	Title  string       `json:"title"`
	Author *AuthorModel `json:"author"`
}

// ToModel maps an author entity. A nil author maps to nil.
func (a *Author) ToModel() *AuthorModel {
	if a == nil {
		return nil
	}
	return &AuthorModel{
		ID:        a.ID,
		FirstName: a.FirstName,
		LastName:  a.LastName,
		Email:     a.Email,
	}
}

// ToModel maps a book entity. Author stays nil unless the relation was loaded.
func (b Book) ToModel() BookModel {
	return BookModel{
		ID:     b.ID,
		Title:  b.Title,
		Author: b.Author.ToModel(),
	}
}

// ToModels maps a slice of books. The result is never nil.
func ToModels(books []Book) []BookModel {
	out := make([]BookModel, 0, len(books))
	for _, b := range books {
		out = append(out, b.ToModel())
	}
	return out
}

// Clone returns a deep copy.
func (m BookModel) Clone() BookModel {
	if m.Author != nil {
		author := *m.Author
		m.Author = &author
	}
	return m
}

func cloneModels(models []BookModel) []BookModel {
	out := make([]BookModel, len(models))
	for i, m := range models {
		out[i] = m.Clone()
	}
	return out
}
