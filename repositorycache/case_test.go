package repositorycache

import "testing"

func TestToSnake(t *testing.T) {
	tests := map[string]string{
		"":                   "",
		"Book":               "book",
		"BookModel":          "book_model",
		"HTTPClient":         "http_client",
		"Book2":              "book_2",
		"*books.Book":        "books_book",
		"Page[books.Author]": "page_books_author",
		"already_snake":      "already_snake",
		"two  spaces-dash":   "two_spaces_dash",
		"bookModelV2":        "book_model_v_2",
	}
	for in, want := range tests {
		if got := toSnake(in); got != want {
			t.Errorf("toSnake(%q) = %q, want %q", in, got, want)
		}
	}
}
