package result

import "fmt"

// Kind classifies an Error for transport-level treatment.
// The set is closed: presentation code switches over every value returned by Kinds.
type Kind int

const (
	KindValidation Kind = iota
	KindNotFound
	KindConflict
	KindUnauthorized
	KindUnexpected
)

var kindNames = [...]string{
	KindValidation:   "validation",
	KindNotFound:     "not_found",
	KindConflict:     "conflict",
	KindUnauthorized: "unauthorized",
	KindUnexpected:   "unexpected",
}

// Kinds returns every member of the closed Kind set in declaration order.
func Kinds() []Kind {
	return []Kind{KindValidation, KindNotFound, KindConflict, KindUnauthorized, KindUnexpected}
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// Error is an immutable failure description carried by a Result.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Kind    Kind   `json:"-"`
}

// Error implements the error interface so a failure can be logged or combined.
func (e Error) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return e.Code + ": " + e.Message
}

func Validation(code, message string) Error {
	return Error{Code: code, Message: message, Kind: KindValidation}
}

func NotFound(code, message string) Error {
	return Error{Code: code, Message: message, Kind: KindNotFound}
}

func Conflict(code, message string) Error {
	return Error{Code: code, Message: message, Kind: KindConflict}
}

func Unauthorized(code, message string) Error {
	return Error{Code: code, Message: message, Kind: KindUnauthorized}
}

func Unexpected(code, message string) Error {
	return Error{Code: code, Message: message, Kind: KindUnexpected}
}
