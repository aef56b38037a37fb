package async

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/platinummonkey/persona-insights/pkg/observability"
)

// SafeGo executes fn in a goroutine with:
// - Context cancellation support
// - Panic recovery
// - Timeout enforcement
// - Error logging through the context logger
//
// Example:
//
//	SafeGo(context.WithoutCancel(r.Context()), 30*time.Second, "user analytics refresh", func(ctx context.Context) error {
//	    _, err := svc.UpdateUserAnalytics(ctx, userID)
//	    return err
//	})
func SafeGo(parentCtx context.Context, timeout time.Duration, taskName string, fn func(context.Context) error) {
	go run(parentCtx, timeout, taskName, fn)
}

func run(parentCtx context.Context, timeout time.Duration, taskName string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(parentCtx, timeout)
	defer cancel()

	logger := observability.FromContext(ctx).WithField("task", taskName)

	defer func() {
		if r := recover(); r != nil {
			logger.WithFields(map[string]interface{}{
				"panic": fmt.Sprintf("%v", r),
				"stack": string(debug.Stack()),
			}).Error("Background task panicked")
		}
	}()

	if err := fn(ctx); err != nil {
		logger.WithError(err).Warn("Background task failed")
	}
}

// Tracker runs background tasks like SafeGo and remembers them so shutdown
// can wait for in-flight work.
type Tracker struct {
	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

// NewTracker creates a new task tracker
func NewTracker() *Tracker {
	return &Tracker{}
}

// Go starts fn unless the tracker has been closed. Its signature matches SafeGo.
func (t *Tracker) Go(parentCtx context.Context, timeout time.Duration, taskName string, fn func(context.Context) error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		observability.FromContext(parentCtx).WithField("task", taskName).Warn("Task dropped after shutdown")
		return
	}
	t.wg.Add(1)
	t.mu.Unlock()

	go func() {
		defer t.wg.Done()
		run(parentCtx, timeout, taskName, fn)
	}()
}

// Shutdown stops accepting tasks and waits for running ones until ctx ends
func (t *Tracker) Shutdown(ctx context.Context) error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("background tasks still running: %w", ctx.Err())
	}
}
