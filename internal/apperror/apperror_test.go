package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKindsAndStatus(t *testing.T) {
	tests := []struct {
		err    error
		kind   error
		status int
	}{
		{NotFound("Guest not found."), ErrNotFound, http.StatusNotFound},
		{AlreadyExists("Reservation already exists."), ErrAlreadyExists, http.StatusConflict},
		{InvalidArgument("Cannot reschedule to the same slot."), ErrInvalidArgument, http.StatusBadRequest},
		{New(ErrForbidden, "forbidden"), ErrForbidden, http.StatusForbidden},
		{Storage("failed to save", errors.New("driver: bad connection")), ErrStorage, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if !errors.Is(tt.err, tt.kind) {
			t.Errorf("%v is not %v", tt.err, tt.kind)
		}
		if got := HTTPStatus(tt.err); got != tt.status {
			t.Errorf("HTTPStatus(%v) = %d, want %d", tt.err, got, tt.status)
		}
		// Kinds survive wrapping.
		if !errors.Is(fmt.Errorf("outer: %w", tt.err), tt.kind) {
			t.Errorf("wrapped %v lost its kind", tt.err)
		}
	}
}

func TestStoragePassesClassifiedErrorsThrough(t *testing.T) {
	if Storage("x", nil) != nil {
		t.Fatal("Storage(nil) should be nil")
	}
	nf := NotFound("Reservation not found.")
	if got := Storage("failed", nf); got != error(nf) {
		t.Fatalf("classified error was rewrapped: %v", got)
	}
	cause := errors.New("deadlock")
	err := Storage("failed to book", cause)
	if !errors.Is(err, cause) {
		t.Fatal("storage error does not unwrap to its cause")
	}
}

func TestMessageHidesUnclassified(t *testing.T) {
	if got := Message(errors.New("dial tcp 10.0.0.1:3306")); got != "internal error" {
		t.Fatalf("Message leaked %q", got)
	}
	if got := Message(Storage("failed to book reservation", errors.New("x"))); got != "failed to book reservation" {
		t.Fatalf("Message = %q", got)
	}
	if got := HTTPStatus(errors.New("boom")); got != http.StatusInternalServerError {
		t.Fatalf("HTTPStatus = %d", got)
	}
}
