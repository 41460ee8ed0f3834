package requester

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// Method is the HTTP verb of a request.
type Method string

const (
	MethodGet  Method = http.MethodGet
	MethodPost Method = http.MethodPost
)

// Spec describes a single request. It is copied into the task on submit.
type Spec struct {
	Method Method
	// Body holds already url-encoded parameters (key=value&key2=value2).
	// It is only sent for POST.
	Body string
	// Timeout bounds connect and read. Zero means no timeout.
	Timeout time.Duration
}

// Listener receives the outcome of a completed request.
type Listener func(Outcome)

// State is the lifecycle position of a Task.
type State int32

const (
	StateCreated State = iota
	StateRunning
	StateCompleted
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Terminal reports whether s is Completed or Cancelled.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateCancelled
}

// Task is the handle of a submitted request.
type Task struct {
	id       uint64
	spec     Spec
	address  string
	listener Listener

	state   atomic.Int32
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	outcome Outcome
}

func newTask(id uint64, address string, spec Spec, listener Listener) *Task {
	ctx, cancel := context.WithCancel(context.Background())
	return &Task{
		id:       id,
		spec:     spec,
		address:  address,
		listener: listener,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// ID returns the per-requester sequence number of the task.
func (t *Task) ID() uint64 { return t.id }

// Spec returns the request description the task was submitted with.
func (t *Task) Spec() Spec { return t.spec }

// Address returns the address captured when the task was submitted.
func (t *Task) Address() string { return t.address }

// State returns the current lifecycle state.
func (t *Task) State() State { return State(t.state.Load()) }

// Done is closed once the task reaches a terminal state.
func (t *Task) Done() <-chan struct{} { return t.done }

// Cancel moves a non-terminal task to Cancelled and aborts its I/O.
// It returns false if the task had already finished.
func (t *Task) Cancel() bool {
	if t == nil {
		return false
	}
	for {
		cur := t.State()
		if cur.Terminal() {
			return false
		}
		if t.state.CompareAndSwap(int32(cur), int32(StateCancelled)) {
			t.cancel()
			close(t.done)
			return true
		}
	}
}

// Wait blocks until the task finishes or ctx is done. A cancelled or
// superseded task yields ErrCancelled.
func (t *Task) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-t.done:
		if t.State() == StateCompleted {
			return t.outcome, nil
		}
		return Outcome{}, ErrCancelled
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

func (t *Task) start() bool {
	return t.state.CompareAndSwap(int32(StateCreated), int32(StateRunning))
}

// complete records o and moves the task to Completed. Only the caller that
// wins the transition may deliver o.
func (t *Task) complete(o Outcome) bool {
	if !t.state.CompareAndSwap(int32(StateRunning), int32(StateCompleted)) {
		return false
	}
	t.outcome = o
	t.cancel()
	close(t.done)
	return true
}
