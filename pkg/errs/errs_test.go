package errs

import (
	"errors"
	"testing"
)

func TestKindOf(t *testing.T) {
	err := InvalidArgument("content", "too long")
	if KindOf(err) != KindInvalidArgument {
		t.Fatalf("expected invalid_argument, got %s", KindOf(err))
	}
	if KindOf(errors.New("plain")) != KindInternal {
		t.Fatalf("expected internal for non-taxonomy error")
	}
}

func TestErrorMessage(t *testing.T) {
	err := NotFound("memory", "abc-123")
	if err.Error() == "" {
		t.Fatal("expected non-empty message")
	}
}
