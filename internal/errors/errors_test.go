package errors

import (
	"fmt"
	"strings"
	"testing"
)

func TestSeverityString(t *testing.T) {
	tests := []struct {
		severity Severity
		want     string
	}{
		{SeverityDebug, "debug"},
		{SeverityInfo, "info"},
		{SeverityWarning, "warning"},
		{SeverityError, "error"},
		{SeverityCritical, "critical"},
		{Severity(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.severity.String(); got != tt.want {
				t.Errorf("Severity.String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLockError(t *testing.T) {
	err := NewLockError("retries exhausted", ErrLockHeld).
		WithPath("/data/state.yaml").
		WithHolder(4321, "a91f03c2e7d8")

	if !Is(err, ErrLockHeld) {
		t.Error("LockError should match ErrLockHeld")
	}
	if !err.IsRetryable() {
		t.Error("LockError wrapping ErrLockHeld should be retryable")
	}
	if !err.IsUserFacing() {
		t.Error("LockError should be user-facing")
	}

	msg := err.Error()
	for _, want := range []string{"path=/data/state.yaml", "pid=4321", "session=a91f03c2e7d8", "retries exhausted"} {
		if !contains(msg, want) {
			t.Errorf("Error() = %q, missing %q", msg, want)
		}
	}
}

func TestLockErrorNotRetryable(t *testing.T) {
	tests := []struct {
		name  string
		cause error
	}{
		{"lock lost", ErrLockLost},
		{"corrupt record", ErrLockCorrupt},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewLockError(tt.name, tt.cause)
			if err.IsRetryable() {
				t.Errorf("LockError wrapping %v should not be retryable", tt.cause)
			}
			if !Is(err, tt.cause) {
				t.Errorf("LockError should match %v", tt.cause)
			}
		})
	}
}

func TestWriteError(t *testing.T) {
	err := NewWriteError("rename failed", ErrReplaceFailed).
		WithPath("/data/state.yaml").
		WithTempPath("/data/.safewrite-1a2b")

	if !Is(err, ErrReplaceFailed) {
		t.Error("WriteError should match ErrReplaceFailed")
	}
	if err.IsRetryable() {
		t.Error("WriteError must never be retryable")
	}

	msg := err.Error()
	for _, want := range []string{"path=/data/state.yaml", "temp=/data/.safewrite-1a2b"} {
		if !contains(msg, want) {
			t.Errorf("Error() = %q, missing %q", msg, want)
		}
	}
}

func TestWriteErrorAs(t *testing.T) {
	var target *WriteError
	err := fmt.Errorf("outer: %w", NewWriteError("inner", ErrNotLocked))

	if !As(err, &target) {
		t.Fatal("As should find WriteError through wrapping")
	}
	if !Is(err, ErrNotLocked) {
		t.Error("wrapped WriteError should still match ErrNotLocked")
	}
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("max attempts must be positive").
		WithField("lock.max_attempts").
		WithValue(-1)

	if !Is(err, ErrInvalidInput) {
		t.Error("ValidationError should match ErrInvalidInput")
	}

	msg := err.Error()
	for _, want := range []string{"field=lock.max_attempts", "value=-1"} {
		if !contains(msg, want) {
			t.Errorf("Error() = %q, missing %q", msg, want)
		}
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain lock held", ErrLockHeld, true},
		{"lock error held", NewLockError("held", ErrLockHeld), true},
		{"lock error lost", NewLockError("lost", ErrLockLost), false},
		{"replace failed", NewWriteError("boom", ErrReplaceFailed), false},
		{"wrapped held", fmt.Errorf("ctx: %w", ErrLockHeld), true},
		{"unrelated", New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestGetSeverity(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Severity
	}{
		{"nil", nil, SeverityDebug},
		{"lock error", NewLockError("held", ErrLockHeld), SeverityError},
		{"validation", NewValidationError("bad"), SeverityWarning},
		{"critical override", NewWriteError("boom", ErrReplaceFailed).WithSeverity(SeverityCritical), SeverityCritical},
		{"plain error", New("boom"), SeverityError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetSeverity(tt.err); got != tt.want {
				t.Errorf("GetSeverity() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, "context") != nil {
		t.Error("Wrap(nil) should return nil")
	}

	err := Wrap(ErrLockCorrupt, "reading record")
	if !Is(err, ErrLockCorrupt) {
		t.Error("wrapped error should match sentinel")
	}
	if got, want := err.Error(), "reading record: lock record is corrupt"; got != want {
		t.Errorf("Wrap() = %q, want %q", got, want)
	}

	ferr := Wrapf(ErrLockHeld, "locking %s", "a.txt")
	if !Is(ferr, ErrLockHeld) {
		t.Error("Wrapf error should match sentinel")
	}
}

func contains(s, sub string) bool {
	return strings.Contains(s, sub)
}
