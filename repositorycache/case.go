package repositorycache

import (
	"strings"
	"unicode"
)

// toSnake converts a reflected type name to a snake_case key namespace.
// Anything that is not a letter or digit separates words, so pointer and
// generic type names never put the key separator into the namespace.
func toSnake(s string) string {
	runes := []rune(s)
	var words []string
	var word []rune

	flush := func() {
		if len(word) > 0 {
			words = append(words, strings.ToLower(string(word)))
			word = word[:0]
		}
	}

	for i, r := range runes {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			flush()
			continue
		}
		if len(word) > 0 && wordBoundary(runes, i) {
			flush()
		}
		word = append(word, r)
	}
	flush()

	return strings.Join(words, "_")
}

// wordBoundary reports whether runes[i] starts a new word: "bookModel",
// "HTTPClient" and "book2" each split before the marked rune.
func wordBoundary(runes []rune, i int) bool {
	prev, r := runes[i-1], runes[i]
	switch {
	case unicode.IsDigit(r):
		return !unicode.IsDigit(prev)
	case unicode.IsUpper(r) && (unicode.IsLower(prev) || unicode.IsDigit(prev)):
		return true
	case unicode.IsUpper(r) && unicode.IsUpper(prev):
		return i+1 < len(runes) && unicode.IsLower(runes[i+1])
	}
	return false
}
