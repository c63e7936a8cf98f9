package weberr_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/irsalhamdi/course-portal/api/weberr"
	"github.com/irsalhamdi/course-portal/core/failure"
)

func TestFromFailure(t *testing.T) {
	tt := []struct {
		err    error
		status int
	}{
		{failure.ErrUnauthorized, http.StatusUnauthorized},
		{failure.ErrNotFound, http.StatusNotFound},
		{failure.ErrInvalidCourse, http.StatusNotFound},
		{failure.ErrAlreadyEnrolled, http.StatusConflict},
		{failure.ErrAlreadyCompleted, http.StatusConflict},
		{failure.ErrInsufficientBalance, http.StatusUnprocessableEntity},
		{failure.ErrIncompleteCourseDuration, http.StatusUnprocessableEntity},
		{failure.ErrInvalidInput, http.StatusBadRequest},
	}

	for _, tc := range tt {
		err := weberr.FromFailure(fmt.Errorf("operation: %w", tc.err))

		_, status, ok := weberr.Response(err)
		if !ok || status != tc.status {
			t.Errorf("%v: expected status %d, got %d (ok=%v)", tc.err, tc.status, status, ok)
		}
		if !errors.Is(err, tc.err) {
			t.Errorf("%v: kind lost while wrapping", tc.err)
		}
	}

	plain := errors.New("connection reset")
	if _, _, ok := weberr.Response(weberr.FromFailure(plain)); ok {
		t.Fatal("unknown errors must not carry a response")
	}
}

func TestFields(t *testing.T) {
	err := weberr.Wrap(errors.New("x"), weberr.WithFields(map[string]interface{}{"a": 1, "b": 1}))
	err = weberr.Wrap(fmt.Errorf("outer: %w", err), weberr.WithFields(map[string]interface{}{"b": 2}))

	want := map[string]interface{}{"a": 1, "b": 2}
	if diff := cmp.Diff(want, weberr.Fields(err)); diff != "" {
		t.Fatalf("fields mismatch (-want +got):\n%s", diff)
	}

	if weberr.Fields(errors.New("bare")) != nil {
		t.Fatal("expected no fields")
	}
}
