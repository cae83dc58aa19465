package sandbox

import (
	"errors"
	"fmt"
)

type Stage string

const (
	StageCompile     Stage = "compile"
	StageRuntime     Stage = "runtime"
	StageUnsupported Stage = "unsupported"
)

var (
	// ErrNotReady marks a fragment that is a placeholder rather than a
	// program. It is not a failure.
	ErrNotReady = errors.New("fragment not ready")
	// ErrUnsupported is returned on hosts that cannot compile fragments.
	ErrUnsupported = errors.New("dynamic visuals are not supported on this platform")
	// ErrForbidden is returned when a fragment reaches for a capability
	// outside the sandbox.
	ErrForbidden = errors.New("capability not permitted")
	// ErrMissingEntry is returned when a fragment has no default entry.
	ErrMissingEntry = errors.New("fragment has no default entry")
)

// Failure is a compile, runtime or unsupported outcome of loading a
// fragment.
type Failure struct {
	Stage Stage
	Err   error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %v", f.Stage, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Message returns the underlying error text without the stage prefix.
func (f *Failure) Message() string {
	if f == nil || f.Err == nil {
		return ""
	}
	return f.Err.Error()
}

func compileFailure(err error) *Failure {
	return &Failure{Stage: StageCompile, Err: err}
}

func runtimeFailure(err error) *Failure {
	return &Failure{Stage: StageRuntime, Err: err}
}

// AsFailure extracts a *Failure from err.
func AsFailure(err error) (*Failure, bool) {
	var failure *Failure
	if errors.As(err, &failure) {
		return failure, true
	}
	return nil, false
}
