// Package failure defines the error kinds returned by portal operations.
// Operations wrap these sentinels with context; callers match them with
// errors.Is.
package failure

import "errors"

var (
	ErrUnauthorized             = errors.New("unauthorized")
	ErrInsufficientBalance      = errors.New("insufficient balance")
	ErrInvalidCourse            = errors.New("invalid course")
	ErrNotFound                 = errors.New("not found")
	ErrAlreadyEnrolled          = errors.New("already enrolled")
	ErrAlreadyCompleted         = errors.New("already completed")
	ErrIncompleteCourseDuration = errors.New("incomplete course duration")
	ErrInvalidInput             = errors.New("invalid input")
)

var kinds = []error{
	ErrUnauthorized,
	ErrInsufficientBalance,
	ErrInvalidCourse,
	ErrNotFound,
	ErrAlreadyEnrolled,
	ErrAlreadyCompleted,
	ErrIncompleteCourseDuration,
	ErrInvalidInput,
}

// Kind returns the sentinel err wraps, or nil when err is not one of the
// defined kinds.
func Kind(err error) error {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// Label is a short stable name for the kind of err, used in metrics.
func Label(err error) string {
	switch Kind(err) {
	case nil:
		if err == nil {
			return "ok"
		}
		return "internal"
	case ErrUnauthorized:
		return "unauthorized"
	case ErrInsufficientBalance:
		return "insufficient_balance"
	case ErrInvalidCourse:
		return "invalid_course"
	case ErrNotFound:
		return "not_found"
	case ErrAlreadyEnrolled:
		return "already_enrolled"
	case ErrAlreadyCompleted:
		return "already_completed"
	case ErrIncompleteCourseDuration:
		return "incomplete_course_duration"
	default:
		return "invalid_input"
	}
}
