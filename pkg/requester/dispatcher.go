package requester

import (
	"context"
	"errors"
	"sync"
)

// Dispatcher runs listener deliveries on the caller's result-delivery context.
// Implementations must run functions one at a time.
type Dispatcher interface {
	Dispatch(fn func())
}

// DispatcherFunc adapts a function to the Dispatcher interface.
type DispatcherFunc func(fn func())

func (f DispatcherFunc) Dispatch(fn func()) { f(fn) }

type inlineDispatcher struct {
	mu sync.Mutex
}

// Inline returns a Dispatcher that runs deliveries on the worker goroutine,
// serialized by a mutex.
func Inline() Dispatcher {
	return &inlineDispatcher{}
}

func (d *inlineDispatcher) Dispatch(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn()
}

// ErrLoopRunning is returned when Run is called on an EventLoop that is already running.
var ErrLoopRunning = errors.New("event loop already running")

// EventLoop is a single-goroutine FIFO executor. Functions dispatched before
// Run is called are queued and executed once the loop starts.
type EventLoop struct {
	mu      sync.Mutex
	queue   []func()
	running bool
	wake    chan struct{}
}

// NewEventLoop creates an idle event loop.
func NewEventLoop() *EventLoop {
	return &EventLoop{wake: make(chan struct{}, 1)}
}

// Dispatch enqueues fn without blocking.
func (l *EventLoop) Dispatch(fn func()) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Run executes queued functions on the calling goroutine until ctx is done.
func (l *EventLoop) Run(ctx context.Context) error {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return ErrLoopRunning
	}
	l.running = true
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		l.running = false
		l.mu.Unlock()
	}()

	for {
		l.drain(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}

// Pending returns the number of queued functions.
func (l *EventLoop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

func (l *EventLoop) drain(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		l.mu.Lock()
		if len(l.queue) == 0 {
			l.mu.Unlock()
			return
		}
		fn := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.mu.Unlock()

		fn()
	}
}
