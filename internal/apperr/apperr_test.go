package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{Invalid("Title cannot be empty"), http.StatusBadRequest},
		{fmt.Errorf("%w: ../etc", ErrTraversal), http.StatusBadRequest},
		{ErrNoValidFields, http.StatusBadRequest},
		{NotFound("episode demo/x"), http.StatusNotFound},
		{Conflict("folder exists"), http.StatusConflict},
		{Parse("metadata.yml", errors.New("bad indent")), http.StatusInternalServerError},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := HTTPStatus(tc.err); got != tc.want {
			t.Fatalf("HTTPStatus(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestTraversalIsValidation(t *testing.T) {
	err := fmt.Errorf("resolve asset: %w", ErrTraversal)
	if !errors.Is(err, ErrTraversal) {
		t.Fatalf("expected traversal marker")
	}
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected traversal to count as validation")
	}
	if errors.Is(ErrValidation, ErrTraversal) {
		t.Fatalf("validation must not match traversal")
	}
}

func TestNoValidFieldsIsDistinct(t *testing.T) {
	if errors.Is(ErrNoValidFields, ErrValidation) {
		t.Fatalf("no-valid-fields must be distinguishable from validation errors")
	}
}

func TestDetailsAndMessage(t *testing.T) {
	err := fmt.Errorf("update: %w", Invalid("a", "b"))
	details := Details(err)
	if len(details) != 2 || details[0] != "a" {
		t.Fatalf("unexpected details %v", details)
	}
	if Message(err) != "Validation failed" {
		t.Fatalf("unexpected message %q", Message(err))
	}
	if Message(Invalid("only")) != "only" {
		t.Fatalf("single message should be surfaced directly")
	}
	if Message(errors.New("secret internals")) != "Internal server error" {
		t.Fatalf("internal errors must not leak")
	}
	if Details(errors.New("plain")) != nil {
		t.Fatalf("plain errors carry no details")
	}
}
