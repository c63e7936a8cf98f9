package weberr

import (
	"net/http"

	"github.com/irsalhamdi/course-portal/core/failure"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

type RequestError struct {
	Err error
}

func (r *RequestError) Error() string { return r.Err.Error() }

func (e *RequestError) Unwrap() error { return e.Err }

func NewError(err error, msg string, status int, opts ...Opt) error {
	e := &RequestError{Err: err}
	opts = append(opts, WithResponse(
		&ErrorResponse{Error: msg, Kind: kindLabel(err)},
		status,
	))

	return Wrap(e, opts...)
}

func kindLabel(err error) string {
	if failure.Kind(err) == nil {
		return ""
	}
	return failure.Label(err)
}

func NotFound(err error, opts ...Opt) error {
	return NewError(err, "the resource could not be found", http.StatusNotFound, opts...)
}

func NotAuthorized(err error, opts ...Opt) error {
	return NewError(err, "not authorized to access resource", http.StatusUnauthorized, opts...)
}

func InternalError(err error, opts ...Opt) error {
	return NewError(err, "the server encountered a problem and could not process your request", http.StatusInternalServerError, opts...)
}

func BadRequest(err error, opts ...Opt) error {
	return NewError(err, "bad request", http.StatusBadRequest, opts...)
}

func Conflict(err error, opts ...Opt) error {
	return NewError(err, err.Error(), http.StatusConflict, opts...)
}

func Unprocessable(err error, opts ...Opt) error {
	return NewError(err, err.Error(), http.StatusUnprocessableEntity, opts...)
}

func TooManyRequests(err error, opts ...Opt) error {
	return NewError(err, "rate limit exceeded", http.StatusTooManyRequests, opts...)
}

// FromFailure picks the response for an error returned by a portal
// operation. Errors of no known kind are left untouched and end up as 500s.
func FromFailure(err error, opts ...Opt) error {
	switch failure.Kind(err) {
	case failure.ErrUnauthorized:
		return NotAuthorized(err, opts...)
	case failure.ErrNotFound, failure.ErrInvalidCourse:
		return NewError(err, err.Error(), http.StatusNotFound, opts...)
	case failure.ErrAlreadyEnrolled, failure.ErrAlreadyCompleted:
		return Conflict(err, opts...)
	case failure.ErrInsufficientBalance, failure.ErrIncompleteCourseDuration:
		return Unprocessable(err, opts...)
	case failure.ErrInvalidInput:
		return NewError(err, err.Error(), http.StatusBadRequest, opts...)
	default:
		return Wrap(err, opts...)
	}
}
