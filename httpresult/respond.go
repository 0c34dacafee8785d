// Package httpresult writes result.Result values as gin JSON responses.
//
//	Validation    400 {"errors":[{"code":...,"message":...}, ...]}
//	NotFound      404 {"code":...,"message":...}
//	Conflict      409 {"code":...,"message":...}
//	Unauthorized  401 no body
//	Unexpected    500 {"code":"unexpected","message":"internal server error"}
//
// Only the first error is written for NotFound and Conflict. Unexpected
// failures never expose their message.
package httpresult

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/goliatone/go-readthrough/result"
)

// ErrorBody is the payload of NotFound, Conflict and Unexpected responses.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationBody lists every validation error.
type ValidationBody struct {
	Errors []result.Error `json:"errors"`
}

var internalError = ErrorBody{Code: "unexpected", Message: "internal server error"}

// Status maps an error kind to its HTTP status. Unknown kinds map to 500.
func Status(kind result.Kind) int {
	switch kind {
	case result.KindValidation:
		return http.StatusBadRequest
	case result.KindNotFound:
		return http.StatusNotFound
	case result.KindConflict:
		return http.StatusConflict
	case result.KindUnauthorized:
		return http.StatusUnauthorized
	case result.KindUnexpected:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Respond writes the value of a success with 200, or the failure.
func Respond[T any](c *gin.Context, r result.Result[T]) {
	result.Match(r,
		func(v T) struct{} {
			c.JSON(http.StatusOK, v)
			return struct{}{}
		},
		func(errs []result.Error) struct{} {
			Fail(c, errs...)
			return struct{}{}
		},
	)
}

// RespondCreated writes the value of a success with 201.
func RespondCreated[T any](c *gin.Context, r result.Result[T]) {
	if r.IsFailure() {
		Fail(c, r.Errors()...)
		return
	}
	c.JSON(http.StatusCreated, r.Value())
}

// RespondVoid writes 204 for a success.
func RespondVoid(c *gin.Context, r result.Void) {
	result.MatchVoid(r,
		func() struct{} {
			c.Status(http.StatusNoContent)
			return struct{}{}
		},
		func(errs []result.Error) struct{} {
			Fail(c, errs...)
			return struct{}{}
		},
	)
}

// Fail writes a failure response classified by the first error's kind.
// Calling it without errors writes a 500.
func Fail(c *gin.Context, errs ...result.Error) {
	if len(errs) == 0 {
		c.JSON(http.StatusInternalServerError, internalError)
		return
	}

	first := errs[0]
	status := Status(first.Kind)
	switch first.Kind {
	case result.KindValidation:
		c.JSON(status, ValidationBody{Errors: ofKind(result.KindValidation, errs)})
	case result.KindNotFound, result.KindConflict:
		c.JSON(status, ErrorBody{Code: first.Code, Message: first.Message})
	case result.KindUnauthorized:
		c.Status(status)
	default:
		c.JSON(status, internalError)
	}
}

func ofKind(kind result.Kind, errs []result.Error) []result.Error {
	out := make([]result.Error, 0, len(errs))
	for _, e := range errs {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}
