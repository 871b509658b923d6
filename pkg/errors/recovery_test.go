package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestRecover_WithPanic(t *testing.T) {
	testFunc := func() (err error) {
		defer Recover(&err, "Pipeline.Fit")
		panic("index out of range")
	}

	err := testFunc()
	if err == nil {
		t.Fatal("Expected error from recovered panic, got nil")
	}

	var panicErr *PanicError
	if !errors.As(err, &panicErr) {
		t.Fatalf("Expected PanicError, got %T", err)
	}
	if panicErr.Operation != "Pipeline.Fit" {
		t.Errorf("Expected operation 'Pipeline.Fit', got '%s'", panicErr.Operation)
	}
	if panicErr.StackTrace == "" {
		t.Error("Expected non-empty stack trace")
	}
	if panicErr.Error() != "panic in Pipeline.Fit: index out of range" {
		t.Errorf("unexpected message: %s", panicErr.Error())
	}
}

func TestRecover_WithoutPanic(t *testing.T) {
	testFunc := func() (err error) {
		defer Recover(&err, "Pipeline.Fit")
		return nil
	}

	if err := testFunc(); err != nil {
		t.Fatalf("Expected no error when no panic occurs, got: %v", err)
	}
}

func TestRecover_WithExistingError(t *testing.T) {
	originalErr := fmt.Errorf("original error")

	testFunc := func() (err error) {
		defer Recover(&err, "Pipeline.Fit")
		err = originalErr
		panic("panic after error")
	}

	err := testFunc()
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if !strings.Contains(err.Error(), "panic in Pipeline.Fit") {
		t.Errorf("Error message should contain panic info: %s", err.Error())
	}
	if !errors.Is(err, originalErr) {
		t.Error("original error should stay reachable through the wrap")
	}
}

func TestSafeExecute(t *testing.T) {
	tests := []struct {
		name       string
		fn         func() error
		wantPanic  bool
		wantSubstr string
	}{
		{
			name:       "string panic",
			fn:         func() error { panic("unexpected nil pointer") },
			wantPanic:  true,
			wantSubstr: "panic in Fit: unexpected nil pointer",
		},
		{
			name:       "error panic keeps cause",
			fn:         func() error { panic(ErrSingularMatrix) },
			wantPanic:  true,
			wantSubstr: "singular matrix",
		},
		{
			name:       "plain error passes through",
			fn:         func() error { return NewValueError("Fit", "bad input") },
			wantSubstr: "mlplay: Fit: bad input",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := SafeExecute("Fit", tt.fn)
			if err == nil {
				t.Fatal("expected an error")
			}
			var panicErr *PanicError
			if got := errors.As(err, &panicErr); got != tt.wantPanic {
				t.Errorf("PanicError = %v, want %v", got, tt.wantPanic)
			}
			if !strings.Contains(err.Error(), tt.wantSubstr) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.wantSubstr)
			}
		})
	}

	if err := SafeExecute("Fit", func() error { return nil }); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

func TestPanicError_UnwrapErrorValue(t *testing.T) {
	err := SafeExecute("Fit", func() error { panic(ErrEmptyData) })
	if !Is(err, ErrEmptyData) {
		t.Error("panic carrying an error should unwrap to it")
	}
}
