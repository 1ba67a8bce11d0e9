package runner

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/banshee-data/roll.survey/internal/binning"
	"github.com/banshee-data/roll.survey/internal/progress"
	"github.com/banshee-data/roll.survey/internal/records"
	"github.com/banshee-data/roll.survey/internal/survey"
	"github.com/banshee-data/roll.survey/internal/timeutil"
)

// Status represents the state of the current or last run.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusComplete  Status = "complete"
	StatusCancelled Status = "cancelled"
	StatusError     Status = "error"
)

// EventKind distinguishes Runner events.
type EventKind int

const (
	EventProgress EventKind = iota
	EventMessage
	EventDone
)

// Event is delivered to the Runner's notify callback on the worker
// goroutine. The callback must not block for long; it may call Stop.
type Event struct {
	Kind    EventKind
	Percent int    // EventProgress
	Message string // EventMessage
	Status  Status // EventDone
	Err     error  // EventDone, nil unless Status is StatusError
}

// State is a snapshot of the runner.
type State struct {
	Status      Status
	Mode        Mode
	StartedAt   *time.Time
	CompletedAt *time.Time
	Duration    time.Duration // set once the run has finished
	Percent     int
	Messages    []string
	Error       string
}

// Runner executes one run at a time against a survey.
type Runner struct {
	survey *survey.Survey
	notify func(Event)
	clock  timeutil.Clock

	mu     sync.RWMutex
	state  State
	result *Result
	tables *records.Tables
	cancel context.CancelFunc
	done   chan struct{}
}

// New returns an idle runner. notify may be nil.
func New(s *survey.Survey, notify func(Event)) *Runner {
	return &Runner{
		survey: s,
		notify: notify,
		clock:  timeutil.RealClock{},
		state:  State{Status: StatusIdle},
	}
}

// SetClock replaces the clock used to stamp runs.
func (r *Runner) SetClock(c timeutil.Clock) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clock = c
}

// GetState returns a copy of the current state.
func (r *Runner) GetState() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	state := r.state
	state.Messages = slices.Clone(r.state.Messages)
	return state
}

// Result returns the products of the last completed run, or nil.
func (r *Runner) Result() *Result {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.result
}

// Tables returns the geometry that ModeBinGeometry runs use.
func (r *Runner) Tables() *records.Tables {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tables
}

// SetTables replaces the geometry, e.g. with records loaded from a store.
func (r *Runner) SetTables(t *records.Tables) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.Status == StatusRunning {
		return ErrBusy
	}
	r.tables = t
	return nil
}

// Start begins req in the background. It fails if a run is in progress.
func (r *Runner) Start(ctx context.Context, req Request) error {
	if _, err := ParseMode(string(req.Mode)); err != nil {
		return err
	}
	if err := checkRequest(req); err != nil {
		return err
	}

	r.mu.Lock()
	if r.state.Status == StatusRunning {
		r.mu.Unlock()
		return ErrBusy
	}
	tables := r.tables
	if req.Mode == ModeBinGeometry && tables == nil {
		r.mu.Unlock()
		return fmt.Errorf("%w: generate or load geometry first", binning.ErrNoGeometry)
	}

	now := r.clock.Now()
	r.state = State{Status: StatusRunning, Mode: req.Mode, StartedAt: &now}
	r.result = nil
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	done := make(chan struct{})
	r.done = done
	r.mu.Unlock()

	go func() {
		defer close(done)
		defer cancel()
		res, err := r.execute(runCtx, req, tables)
		r.finish(req, res, err)
	}()
	return nil
}

// Stop cancels a running run. The run reports StatusCancelled once it has
// unwound; use Wait to block until then.
func (r *Runner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
}

// Wait blocks until the current run, if any, has finished.
func (r *Runner) Wait() {
	r.mu.RLock()
	done := r.done
	r.mu.RUnlock()
	if done != nil {
		<-done
	}
}

func (r *Runner) execute(ctx context.Context, req Request, tables *records.Tables) (*Result, error) {
	h := Hooks{Progress: r.progress, Message: r.message}
	switch req.Mode {
	case ModeGeometry:
		t, err := GenerateGeometry(ctx, r.survey, req.Strategy, h)
		if err != nil {
			return nil, err
		}
		return &Result{Tables: t}, nil
	case ModeBinTemplates:
		return BinFromTemplates(ctx, r.survey, req, h)
	default:
		return BinFromGeometry(ctx, r.survey, tables, req, h)
	}
}

func (r *Runner) progress(percent int) {
	r.mu.Lock()
	r.state.Percent = percent
	r.mu.Unlock()
	r.emit(Event{Kind: EventProgress, Percent: percent})
}

func (r *Runner) message(msg string) {
	r.mu.Lock()
	r.state.Messages = append(r.state.Messages, msg)
	r.mu.Unlock()
	r.emit(Event{Kind: EventMessage, Message: msg})
}

func (r *Runner) finish(req Request, res *Result, err error) {
	status := StatusComplete
	switch {
	case errors.Is(err, progress.ErrCancelled):
		status = StatusCancelled
		err = nil
	case err != nil:
		status = StatusError
	}

	r.mu.Lock()
	now := r.clock.Now()
	r.state.Status = status
	r.state.CompletedAt = &now
	r.state.Duration = now.Sub(*r.state.StartedAt)
	elapsed := r.state.Duration
	r.cancel = nil
	if err != nil {
		r.state.Error = err.Error()
	}
	if status == StatusComplete {
		r.result = res
		if req.Mode == ModeGeometry {
			r.tables = res.Tables
		}
	}
	r.mu.Unlock()

	switch status {
	case StatusComplete:
		logf("%s run complete in %s", req.Mode, elapsed)
	case StatusCancelled:
		logf("%s run cancelled", req.Mode)
	case StatusError:
		logf("%s run failed: %v", req.Mode, err)
	}
	r.emit(Event{Kind: EventDone, Status: status, Err: err})
}

func (r *Runner) emit(ev Event) {
	if r.notify != nil {
		r.notify(ev)
	}
}
