package workflow

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorKindRetryableAndTerminal(t *testing.T) {
	cases := []struct {
		kind      ErrorKind
		retryable bool
		terminal  bool
	}{
		{KindConfiguration, false, true},
		{KindPermission, false, true},
		{KindInvalidTarget, false, true},
		{KindTimeout, true, false},
		{KindNetwork, true, false},
		{KindScan, true, false},
		{KindUnknown, false, false},
	}
	for _, c := range cases {
		if got := c.kind.Retryable(); got != c.retryable {
			t.Errorf("%s.Retryable() = %v, want %v", c.kind, got, c.retryable)
		}
		if got := c.kind.Terminal(); got != c.terminal {
			t.Errorf("%s.Terminal() = %v, want %v", c.kind, got, c.terminal)
		}
	}
}

func TestNewActivityErrorNilPassthrough(t *testing.T) {
	if err := NewActivityError(KindNetwork, nil); err != nil {
		t.Errorf("NewActivityError with nil cause = %v, want nil", err)
	}
}

func TestKindOfUnwrapsWrappedActivityError(t *testing.T) {
	base := NewActivityError(KindTimeout, errors.New("dial timeout"))
	wrapped := fmt.Errorf("fingerprinting host 10.0.0.1: %w", base)

	if got := KindOf(wrapped); got != KindTimeout {
		t.Errorf("KindOf(wrapped) = %v, want %v", got, KindTimeout)
	}
}

func TestKindOfPlainErrorDefaultsToUnknown(t *testing.T) {
	if got := KindOf(errors.New("some plain error")); got != KindUnknown {
		t.Errorf("KindOf(plain) = %v, want %v", got, KindUnknown)
	}
}

func TestKindOfNilError(t *testing.T) {
	if got := KindOf(nil); got != "" {
		t.Errorf("KindOf(nil) = %q, want empty", got)
	}
}

func TestActivityErrorUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := NewActivityError(KindScan, cause)
	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the wrapped cause via Unwrap")
	}
}
