package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestRecover_WithPanic(t *testing.T) {
	run := func() (err error) {
		defer Recover(&err, "LabelModel.Train")
		panic("mat: dimension mismatch")
	}

	err := run()
	if err == nil {
		t.Fatal("expected error from recovered panic, got nil")
	}

	var panicErr *PanicError
	if !errors.As(err, &panicErr) {
		t.Fatalf("expected *PanicError, got %T", err)
	}
	if panicErr.Operation != "LabelModel.Train" {
		t.Errorf("operation = %q, want %q", panicErr.Operation, "LabelModel.Train")
	}
	if panicErr.StackTrace == "" {
		t.Error("expected non-empty stack trace")
	}
	if got, want := panicErr.Error(), "panic in LabelModel.Train: mat: dimension mismatch"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestRecover_WithoutPanic(t *testing.T) {
	run := func() (err error) {
		defer Recover(&err, "LabelModel.Train")
		return nil
	}
	if err := run(); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}

func TestRecover_KeepsExistingError(t *testing.T) {
	original := fmt.Errorf("shape check failed")

	run := func() (err error) {
		defer Recover(&err, "LabelModel.Train")
		err = original
		panic("late panic")
	}

	err := run()
	if !strings.Contains(err.Error(), "panic in LabelModel.Train") {
		t.Errorf("message should mention the panic: %s", err)
	}
	if !errors.Is(err, original) {
		t.Error("original error should stay reachable through errors.Is")
	}
}

func TestPanicError_UnwrapsErrorValues(t *testing.T) {
	cause := fmt.Errorf("index out of range")
	tests := []struct {
		name  string
		value interface{}
		want  error
	}{
		{name: "error value", value: cause, want: cause},
		{name: "string value", value: "boom", want: nil},
		{name: "int value", value: 42, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPanicError("op", tt.value)
			if got := p.Unwrap(); got != tt.want {
				t.Errorf("Unwrap() = %v, want %v", got, tt.want)
			}
			if !strings.Contains(p.String(), "Stack trace:") {
				t.Error("String() should include the stack trace")
			}
		})
	}
}

func TestSafeExecute(t *testing.T) {
	fnErr := fmt.Errorf("function error")

	if err := SafeExecute("ok", func() error { return nil }); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if err := SafeExecute("fails", func() error { return fnErr }); err != fnErr {
		t.Fatalf("expected function error, got %v", err)
	}

	err := SafeExecute("panics", func() error { panic("inside") })
	var panicErr *PanicError
	if !errors.As(err, &panicErr) {
		t.Fatalf("expected *PanicError, got %T", err)
	}
	if panicErr.PanicValue != "inside" {
		t.Errorf("panic value = %v, want %q", panicErr.PanicValue, "inside")
	}
}

func BenchmarkRecover_NoPanic(b *testing.B) {
	for i := 0; i < b.N; i++ {
		func() (err error) {
			defer Recover(&err, "BenchmarkOp")
			return nil
		}()
	}
}
