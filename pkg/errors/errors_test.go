package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestAppErrorMessageFormatting(t *testing.T) {
	base := New("TEST", "base message", http.StatusTeapot)
	if base.Error() != "base message" {
		t.Fatalf("unexpected message: %s", base.Error())
	}

	wrapped := base.WithInternal(stderrors.New("boom"))
	if wrapped.Error() != "base message: boom" {
		t.Fatalf("unexpected wrapped message: %s", wrapped.Error())
	}
	if wrapped == base {
		t.Fatal("WithInternal must not mutate the sentinel")
	}
	if base.Internal != nil {
		t.Fatal("sentinel must remain without internal error")
	}
}

func TestSentinelMatchingThroughWraps(t *testing.T) {
	err := fmt.Errorf("cycle: fetch: %w", ErrFetch.WithInternal(stderrors.New("timeout")))

	if !stderrors.Is(err, ErrFetch) {
		t.Fatal("expected wrapped fetch error to match ErrFetch")
	}
	if stderrors.Is(err, ErrPersistence) {
		t.Fatal("fetch error must not match ErrPersistence")
	}

	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		t.Fatal("expected errors.As to find an AppError")
	}
	if appErr.Code != ErrFetch.Code {
		t.Fatalf("unexpected code: %s", appErr.Code)
	}
}

func TestFromError(t *testing.T) {
	if FromError(nil) != nil {
		t.Fatal("nil error must map to nil")
	}

	plain := stderrors.New("plain failure")
	appErr := FromError(plain)
	if appErr.Code != ErrInternalServer.Code {
		t.Fatalf("expected internal server code, got %s", appErr.Code)
	}
	if !stderrors.Is(appErr, plain) {
		t.Fatal("expected original error to remain reachable")
	}

	direct := FromError(ErrDelivery)
	if direct != ErrDelivery {
		t.Fatal("AppError values must pass through unchanged")
	}
}

func TestUnwrap(t *testing.T) {
	inner := stderrors.New("inner")
	err := ErrPersistence.WithInternal(inner)
	if !stderrors.Is(err, inner) {
		t.Fatal("expected Unwrap chain to expose the internal error")
	}
}
