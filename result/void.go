package result

// Void is the outcome of an operation that produces no value.
type Void struct {
	errs []Error
	ok   bool
}

func Success() Void {
	return Void{ok: true}
}

// Failure builds a failed Void. It panics when errs is empty.
func Failure(errs ...Error) Void {
	if len(errs) == 0 {
		panic("result: Failure called without errors")
	}
	return Void{errs: append([]Error(nil), errs...)}
}

func (v Void) IsSuccess() bool { return v.ok }

func (v Void) IsFailure() bool { return !v.ok }

// Errors returns a copy of the failure's errors. Calling it on a success panics.
func (v Void) Errors() []Error {
	if v.ok {
		panic("result: Errors called on a successful result")
	}
	return failureErrors(v.errs)
}

func (v Void) FirstError() Error {
	return v.Errors()[0]
}

func (v Void) Err() error {
	if v.ok {
		return nil
	}
	return combine(failureErrors(v.errs))
}

// MatchVoid consumes v by calling exactly one of the two functions.
func MatchVoid[R any](v Void, onSuccess func() R, onFailure func([]Error) R) R {
	if v.ok {
		return onSuccess()
	}
	return onFailure(failureErrors(v.errs))
}

// Drop discards the value of r, keeping its errors.
func Drop[T any](r Result[T]) Void {
	if r.ok {
		return Success()
	}
	return Void{errs: failureErrors(r.errs)}
}
