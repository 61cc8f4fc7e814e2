package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
)

type fakePgError struct{ code string }

func (e fakePgError) Error() string    { return "pg error " + e.code }
func (e fakePgError) SQLState() string { return e.code }

func TestWithRetryRetriesDeadlocks(t *testing.T) {
	calls := 0
	err := withRetry(func() error {
		calls++
		if calls < 2 {
			return fakePgError{code: "40P01"}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestWithRetryGivesUp(t *testing.T) {
	calls := 0
	err := withRetry(func() error {
		calls++
		return fakePgError{code: "40001"}
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != maxTxAttempts {
		t.Errorf("calls = %d, want %d", calls, maxTxAttempts)
	}
}

func TestWithRetryDoesNotRetryDomainErrors(t *testing.T) {
	calls := 0
	err := withRetry(func() error {
		calls++
		return Conflict("duplicate")
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("err = %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestJSONArrayOf(t *testing.T) {
	id := uuid.MustParse("6f1c2f5e-8d9a-4a43-9b1e-2a9a1d7c0001")
	got, err := jsonArrayOf(id)
	if err != nil {
		t.Fatal(err)
	}
	if got != `["6f1c2f5e-8d9a-4a43-9b1e-2a9a1d7c0001"]` {
		t.Errorf("got %s", got)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	wrapped := fmt.Errorf("insert: %w", fakePgError{code: "23505"})
	if !IsUniqueViolation(wrapped) {
		t.Error("expected wrapped 23505 to be a unique violation")
	}
	if IsUniqueViolation(fakePgError{code: "40P01"}) {
		t.Error("deadlock is not a unique violation")
	}
	if IsUniqueViolation(errors.New("plain")) {
		t.Error("plain error is not a unique violation")
	}
}
