package serviceerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/eval-hub/eval-dashboard/internal/messages"
)

func TestServiceErrorRendersMessage(t *testing.T) {
	err := NewServiceError(messages.ResourceNotFound, "Type", "dataset", "ResourceId", "ds-1")
	want := "The dataset resource ds-1 was not found."
	if err.Error() != want {
		t.Fatalf("expected %q, got %q", want, err.Error())
	}
	if err.MessageCode().GetCode() != 404 {
		t.Fatalf("expected code 404, got %d", err.MessageCode().GetCode())
	}
}

func TestServiceErrorWithCauseUnwraps(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewServiceErrorWithCause(cause, messages.UnableToList, "Type", "dataset")
	if !errors.Is(err, cause) {
		t.Fatalf("expected errors.Is to find the cause")
	}
	want := "Unable to load the dataset list: 'connection refused'."
	if err.Error() != want {
		t.Fatalf("expected %q, got %q", want, err.Error())
	}
	if !HasMessageCode(fmt.Errorf("wrapped: %w", err), messages.UnableToList) {
		t.Fatalf("expected HasMessageCode to match through wrapping")
	}
	if HasMessageCode(err, messages.UnableToSave) {
		t.Fatalf("expected HasMessageCode to reject a different code")
	}
}

func TestBusinessRuleViolation(t *testing.T) {
	inner := errors.New("status 409")
	err := fmt.Errorf("delete: %w", NewBusinessRuleError("delete", "dataset", "ds-1", "dataset is used by 2 runs", inner))
	if !IsBusinessRuleViolation(err) {
		t.Fatalf("expected a business rule violation")
	}
	if !errors.Is(err, inner) {
		t.Fatalf("expected the inner error to be reachable")
	}
	var bre *BusinessRuleError
	if !errors.As(err, &bre) || bre.Detail != "dataset is used by 2 runs" {
		t.Fatalf("expected the server detail to be kept, got %+v", bre)
	}
	if IsBusinessRuleViolation(inner) {
		t.Fatalf("plain errors are not business rule violations")
	}
}

func TestWithRollback(t *testing.T) {
	called := false
	if err := WithRollback(nil, func() error { called = true; return nil }); err != nil || called {
		t.Fatalf("rollback must not run without an error")
	}

	orig := errors.New("save failed")
	err := WithRollback(orig, func() error { called = true; return nil })
	if !called || err != orig {
		t.Fatalf("expected rollback to run and the original error to be returned")
	}

	rerr := errors.New("delete failed")
	err = WithRollback(orig, func() error { return rerr })
	if !errors.Is(err, orig) || !errors.Is(err, rerr) {
		t.Fatalf("expected both errors to be joined, got %v", err)
	}
}

func TestStorageErrorNotFound(t *testing.T) {
	err := NewStorageErrorWithError(ErrRecordNotFound, "dataset %s", "ds-1")
	if !IsRecordNotFound(err) {
		t.Fatalf("expected record not found")
	}
	if err.Error() != "dataset ds-1: record not found" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}
