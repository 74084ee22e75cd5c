// Package runtime owns the lifecycle of one viewer run: the front ends call
// Start and Stop and learn about progress through StartHooks.
package runtime

import (
	"context"
	"errors"
	"sync"
	"time"

	"liveconnect/internal/config"
	"liveconnect/internal/liveview"
	"liveconnect/internal/logging"
	"liveconnect/internal/progress"
)

var ErrAlreadyRunning = errors.New("viewer is already running")

// StartHooks are called from the viewer goroutines. OnExit runs once per
// Start, after the run has released the controller.
type StartHooks struct {
	OnStatus   func(string)
	OnProgress func(progress.Snapshot)
	OnHandle   func(*liveview.LiveSocket)
	OnExit     func(error)
}

// run is one Start..exit cycle. done closes after OnExit returns.
type run struct {
	cancel context.CancelFunc
	done   chan struct{}
}

type Controller struct {
	parent context.Context

	mu      sync.Mutex
	current *run
	last    *run
}

func NewController(parent context.Context) *Controller {
	if parent == nil {
		parent = context.Background()
	}
	return &Controller{parent: parent}
}

func (c *Controller) Start(opts config.Options, logger *logging.Logger, hooks StartHooks) error {
	if logger == nil {
		panic("runtime.Controller.Start: logger must not be nil")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil {
		return ErrAlreadyRunning
	}

	service, err := NewServiceWithHooks(opts, logger, hooks)
	if err != nil {
		return err
	}
	logger.Debug("viewer run starting",
		logging.Field("page_url", opts.PageURL),
		logging.Field("socket_path", opts.SocketPath),
		logging.Field("has_handle_hook", hooks.OnHandle != nil),
	)

	ctx, cancel := context.WithCancel(c.parent)
	r := &run{cancel: cancel, done: make(chan struct{})}
	c.current, c.last = r, r
	go c.execute(ctx, r, service, logger, hooks.OnExit)
	return nil
}

func (c *Controller) execute(ctx context.Context, r *run, service Service, logger *logging.Logger, onExit func(error)) {
	defer close(r.done)
	err := service.RunContext(ctx)
	r.cancel()

	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		logger.Debug("viewer run canceled", logging.Field("error", err))
	case err != nil:
		logger.Warn("viewer run failed", logging.Field("error", err))
	default:
		logger.Info("viewer run finished")
	}

	c.mu.Lock()
	if c.current == r {
		c.current = nil
	}
	c.mu.Unlock()
	if onExit != nil {
		onExit(err)
	}
}

// Stop cancels the current run without waiting for it.
func (c *Controller) Stop() {
	c.mu.Lock()
	r := c.current
	c.mu.Unlock()
	if r != nil {
		r.cancel()
	}
}

// Wait blocks until the most recent run has exited. It reports false when
// timeout (if positive) passes first.
func (c *Controller) Wait(timeout time.Duration) bool {
	c.mu.Lock()
	r := c.last
	c.mu.Unlock()
	if r == nil {
		return true
	}
	if timeout <= 0 {
		<-r.done
		return true
	}
	select {
	case <-r.done:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (c *Controller) StopAndWait(timeout time.Duration) bool {
	c.Stop()
	return c.Wait(timeout)
}

func (c *Controller) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current != nil
}
