package workflow

import "fmt"

// ErrorKind is the taxonomy activities translate raised errors into at
// their boundary, so the engine can decide retry vs. terminal failure
// without inspecting concrete error types.
type ErrorKind string

const (
	KindConfiguration ErrorKind = "configuration_error"
	KindPermission    ErrorKind = "permission_error"
	KindInvalidTarget ErrorKind = "invalid_target_error"
	KindTimeout       ErrorKind = "timeout_error"
	KindNetwork       ErrorKind = "network_error"
	KindScan          ErrorKind = "scan_error"
	KindUnknown       ErrorKind = "unknown_error"
)

// Retryable reports whether the activity retry policy should retry an
// error of this kind.
func (k ErrorKind) Retryable() bool {
	switch k {
	case KindTimeout, KindNetwork, KindScan:
		return true
	default:
		return false
	}
}

// Terminal reports whether an error is of a configuration, permission or
// invalid-target kind; runActivity stops retrying it at once. The engine
// gives these kinds no further treatment: a discovery or fingerprinting
// failure of any kind fails the session, and a failure of any kind in a
// testing-phase branch fails only that module.
func (k ErrorKind) Terminal() bool {
	switch k {
	case KindConfiguration, KindPermission, KindInvalidTarget:
		return true
	default:
		return false
	}
}

// ActivityError wraps a cause with its taxonomic kind.
type ActivityError struct {
	Kind  ErrorKind
	Cause error
}

func (e *ActivityError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
}

func (e *ActivityError) Unwrap() error { return e.Cause }

// NewActivityError wraps err with kind. A nil err returns nil.
func NewActivityError(kind ErrorKind, err error) error {
	if err == nil {
		return nil
	}
	return &ActivityError{Kind: kind, Cause: err}
}

// KindOf extracts the ErrorKind from err, defaulting to KindUnknown when
// err was not raised as an *ActivityError.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var ae *ActivityError
	if as(err, &ae) {
		return ae.Kind
	}
	return KindUnknown
}

// as is a small local errors.As to avoid importing errors just for this.
func as(err error, target **ActivityError) bool {
	for err != nil {
		if ae, ok := err.(*ActivityError); ok {
			*target = ae
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
