package runner

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/banshee-data/roll.survey/internal/progress"
)

// ErrBusy is returned by Start while another run is in progress.
var ErrBusy = errors.New("a run is already in progress")

// ErrInternal marks a run that stopped on a recovered panic.
var ErrInternal = errors.New("internal error")

// RunError annotates a failed run with the operation and the code location
// where it failed.
type RunError struct {
	Op     string // geometry, bin-templates, bin-geometry
	Origin string // function file:line
	Err    error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("%s failed in %s: %v", e.Op, e.Origin, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }

// fail wraps err with the location of its caller. Cancellation is passed
// through unchanged, it is an outcome rather than a failure.
func fail(op string, err error) error {
	if err == nil || errors.Is(err, progress.ErrCancelled) {
		return err
	}
	var re *RunError
	if errors.As(err, &re) {
		return err
	}
	origin := "unknown"
	if pc, file, line, ok := runtime.Caller(1); ok {
		origin = location(runtime.FuncForPC(pc).Name(), file, line)
	}
	return &RunError{Op: op, Origin: origin, Err: err}
}

// guard runs fn, turning a panic into a RunError that points at the frame
// that panicked.
func guard(op string, fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &RunError{Op: op, Origin: panicOrigin(), Err: fmt.Errorf("%w: %v", ErrInternal, p)}
		}
	}()
	return fn()
}

// panicOrigin must be called from the deferred recover in guard.
func panicOrigin() string {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(2, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		f, more := frames.Next()
		if !strings.HasPrefix(f.Function, "runtime.") && !strings.Contains(f.Function, "runner.guard") {
			return location(f.Function, f.File, f.Line)
		}
		if !more {
			return "unknown"
		}
	}
}

func location(fn, file string, line int) string {
	if i := strings.LastIndexByte(fn, '/'); i >= 0 {
		fn = fn[i+1:]
	}
	if i := strings.LastIndexByte(file, '/'); i >= 0 {
		file = file[i+1:]
	}
	return fmt.Sprintf("%s (%s:%d)", fn, file, line)
}
