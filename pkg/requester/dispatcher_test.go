package requester

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestEventLoopRunsInOrderOnOneGoroutine(t *testing.T) {
	loop := NewEventLoop()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runErr := make(chan error, 1)
	go func() { runErr <- loop.Run(ctx) }()

	var (
		mu    sync.Mutex
		order []int
	)
	done := make(chan struct{})
	const n = 50
	for i := 0; i < n; i++ {
		i := i
		loop.Dispatch(func() {
			mu.Lock()
			order = append(order, i)
			last := len(order) == n
			mu.Unlock()
			if last {
				close(done)
			}
		})
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("event loop did not drain")
	}
	for i, v := range order {
		if v != i {
			t.Fatalf("out of order delivery at %d: %v", i, order)
		}
	}

	cancel()
	if err := <-runErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestEventLoopRejectsSecondRun(t *testing.T) {
	loop := NewEventLoop()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan struct{})
	loop.Dispatch(func() { close(started) })
	go func() { _ = loop.Run(ctx) }()
	<-started

	if err := loop.Run(ctx); !errors.Is(err, ErrLoopRunning) {
		t.Fatalf("expected ErrLoopRunning, got %v", err)
	}
}

func TestEventLoopQueuesBeforeRun(t *testing.T) {
	loop := NewEventLoop()
	loop.Dispatch(func() {})
	loop.Dispatch(nil)
	if loop.Pending() != 1 {
		t.Fatalf("expected 1 pending, got %d", loop.Pending())
	}
}
