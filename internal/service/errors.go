package service

// HTTPError represents an error with an associated HTTP status code.
// The presenter unwraps it at the boundary; everything below the
// service layer stays transport-agnostic.
type HTTPError struct {
	StatusCode int
	Wrapped    error
}

func (e HTTPError) Error() string {
	return e.Wrapped.Error()
}

func (e HTTPError) Unwrap() error {
	return e.Wrapped
}

// HTTPStatusCode lets the presenter map the error to a status without
// importing this package.
func (e HTTPError) HTTPStatusCode() int {
	return e.StatusCode
}

func httpError(statusCode int, err error) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Wrapped:    err,
	}
}
