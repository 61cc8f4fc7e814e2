package services

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind error
	}{
		{"validation", Validation("name is required"), ErrValidation},
		{"not found", NotFound("location %s not found", "x"), ErrNotFound},
		{"conflict", Conflict("duplicate"), ErrConflict},
		{"permission", Permission("nope"), ErrPermission},
		{"assignment conflict is a conflict", AssignmentConflict("taken"), ErrConflict},
		{"assignment conflict kind", AssignmentConflict("taken"), ErrAssignmentConflict},
		{"email taken", ErrEmailTaken, ErrConflict},
		{"pending account", ErrAccountPending, ErrAuth},
		{"wrapped", fmt.Errorf("create: %w", ErrUserNotFound), ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.kind) {
				t.Errorf("errors.Is(%v, %v) = false", tt.err, tt.kind)
			}
		})
	}
}

func TestErrorMessage(t *testing.T) {
	err := NotFound("location %s not found", "abc")
	if err.Error() != "location abc not found" {
		t.Errorf("message = %q", err.Error())
	}
	if errors.Is(Conflict("x"), ErrAssignmentConflict) {
		t.Error("plain conflict must not match the assignment conflict kind")
	}
}

func TestIsKnown(t *testing.T) {
	if !IsKnown(fmt.Errorf("update: %w", ErrUserNotFound)) {
		t.Error("wrapped service error not recognized")
	}
	if IsKnown(errors.New("connection reset")) {
		t.Error("store failure reported as known")
	}
}
