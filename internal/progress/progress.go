// Package progress provides the cooperative cancellation check and coarse
// percentage reporting used by the long running geometry, binning and
// analysis loops.
package progress

import (
	"context"
	"errors"
	"fmt"
)

// ErrCancelled marks a run that stopped because its context was cancelled.
// It is an outcome, not a failure; test for it with errors.Is.
var ErrCancelled = errors.New("cancelled by user")

// Func receives a percentage in 1..100. It is only called when the value
// increases.
type Func func(percent int)

// Tracker counts work items against a known total. Step is called once per
// item (a shot, a bin row) and is the only place loops poll for cancellation.
type Tracker struct {
	ctx    context.Context
	report Func
	total  int
	done   int
	last   int
}

// NewTracker returns a tracker for total items. report may be nil.
func NewTracker(ctx context.Context, total int, report Func) *Tracker {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Tracker{ctx: ctx, report: report, total: total}
}

// Check returns ErrCancelled once the context is done.
func (t *Tracker) Check() error {
	select {
	case <-t.ctx.Done():
		return fmt.Errorf("%w after %d of %d items: %v", ErrCancelled, t.done, t.total, t.ctx.Err())
	default:
		return nil
	}
}

// Step checks for cancellation, then counts one item and reports progress
// if the integer percentage went up.
func (t *Tracker) Step() error {
	if err := t.Check(); err != nil {
		return err
	}
	t.done++
	if t.total <= 0 || t.report == nil {
		return nil
	}
	pct := min((100*t.done)/t.total+1, 100)
	if pct > t.last {
		t.last = pct
		t.report(pct)
	}
	return nil
}

// Done returns the number of items stepped so far.
func (t *Tracker) Done() int { return t.done }

// Total returns the expected number of items.
func (t *Tracker) Total() int { return t.total }
