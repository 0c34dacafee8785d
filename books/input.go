package books

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/goliatone/go-readthrough/result"
)

const (
	maxTitleLength = 255
	maxSearchLimit = 100
)

// BookInput carries the writable fields of a book.
type BookInput struct {
	Title    string `json:"title"`
	AuthorID *int64 `json:"author_id"`
}

type (
	CreateBookInput = BookInput
	UpdateBookInput = BookInput
)

func (in BookInput) normalize() BookInput {
	in.Title = strings.TrimSpace(in.Title)
	return in
}

// Validate reports every invalid field, ordered by field name.
func (in BookInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Title, validation.Required, validation.RuneLength(1, maxTitleLength)),
		validation.Field(&in.AuthorID, validation.NilOrNotEmpty, validation.Min(int64(1))),
	)
}

// BookSearch narrows a book listing. Empty fields place no constraint.
type BookSearch struct {
	Title          string `json:"title"`
	AuthorLastName string `json:"author_last_name"`
	Limit          int    `json:"limit"`
	Offset         int    `json:"offset"`
}

func (s BookSearch) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Limit, validation.Min(0), validation.Max(maxSearchLimit)),
		validation.Field(&s.Offset, validation.Min(0)),
	)
}

func validateID(field string, id int64) error {
	return validation.Errors{
		field: validation.Validate(id, validation.Required, validation.Min(int64(1))),
	}.Filter()
}

// validationErrors converts an ozzo error into result errors coded "<entity>.<field>.<rule>".
// ok is false when err is nil.
func validationErrors(entity string, err error) (errs []result.Error, ok bool) {
	if err == nil {
		return nil, false
	}
	var fields validation.Errors
	if !errors.As(err, &fields) {
		// misconfigured rules surface as ozzo internal errors
		return []result.Error{result.Unexpected(entity+".validation.failed", err.Error())}, true
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		fieldErr := fields[name]
		rule := "invalid"
		var ve validation.Error
		if errors.As(fieldErr, &ve) {
			rule = strings.TrimPrefix(ve.Code(), "validation_")
		}
		errs = append(errs, result.Validation(
			fmt.Sprintf("%s.%s.%s", entity, name, rule),
			fmt.Sprintf("%s: %s", name, fieldErr.Error()),
		))
	}
	return errs, len(errs) > 0
}
