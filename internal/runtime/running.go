package runtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sweeney/equilibrium/internal/emit"
)

// ErrAlreadyRunning is returned when a Runtime is started twice.
var ErrAlreadyRunning = errors.New("runtime already running")

// Running is a started Runtime.
type Running struct {
	rt     *Runtime
	cancel context.CancelFunc
	done   chan struct{}
	err    error
	closer emit.Closer
}

// BuildEmitter dials endpoint, binds it as the publishing target and starts
// the loop. The emitter is closed when the loop exits. A runtime that is
// already running is left untouched and nothing is dialled.
func (r *Runtime) BuildEmitter(ctx context.Context, endpoint string, cfg emit.DialConfig) (*Running, error) {
	if err := r.reserve(); err != nil {
		return nil, err
	}
	if cfg.Log.GetSink() == nil {
		cfg.Log = r.log
	}
	e, err := emit.Dial(ctx, endpoint, cfg)
	if err != nil {
		r.release()
		return nil, fmt.Errorf("build emitter: %w", err)
	}
	r.mu.Lock()
	r.bindLocked(e, emit.Redact(endpoint))
	r.mu.Unlock()
	return r.launch(ctx, e), nil
}

// Start runs the loop on a new goroutine with whatever emitter is bound,
// possibly none. The loop stops when ctx is done or Shutdown is called.
func (r *Runtime) Start(ctx context.Context) (*Running, error) {
	if err := r.reserve(); err != nil {
		return nil, err
	}
	return r.launch(ctx, nil), nil
}

// reserve marks the runtime running or fails with ErrAlreadyRunning.
func (r *Runtime) reserve() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return ErrAlreadyRunning
	}
	r.running = true
	return nil
}

func (r *Runtime) release() {
	r.mu.Lock()
	r.running = false
	r.mu.Unlock()
}

// launch starts the loop of a reserved runtime. closer, if set, is closed
// when the loop exits.
func (r *Runtime) launch(ctx context.Context, closer emit.Closer) *Running {
	ctx, cancel := context.WithCancel(ctx)
	run := &Running{rt: r, cancel: cancel, done: make(chan struct{}), closer: closer}
	ticker := time.NewTicker(r.interval)
	go func() {
		defer close(run.done)
		defer ticker.Stop()
		run.err = r.loop(ctx, ticker.C)
		if run.closer != nil {
			if err := run.closer.Close(); err != nil {
				r.log.Error(err, "close emitter")
			}
		}
		r.release()
	}()
	r.log.Info("runtime started", "interval", r.interval, "controllers", r.group.Len(), "emitter", r.target)
	return run
}

// loop evaluates on every tick until ctx is done. A tick already in progress
// runs to completion, including its publish, before the loop returns.
func (r *Runtime) loop(ctx context.Context, tick <-chan time.Time) error {
	tickCtx := context.WithoutCancel(ctx)
	for {
		select {
		case <-ctx.Done():
			r.log.Info("runtime stopped")
			return nil
		case <-tick:
			// A shutdown that raced the tick wins.
			if ctx.Err() != nil {
				r.log.Info("runtime stopped")
				return nil
			}
			r.Tick(tickCtx, r.now())
		}
	}
}

// Shutdown asks the loop to stop at the next tick boundary and returns
// without waiting.
func (r *Running) Shutdown() {
	r.cancel()
}

// Wait blocks until the loop has exited and the emitter is closed.
func (r *Running) Wait() error {
	<-r.done
	return r.err
}

// Done is closed when the loop has exited.
func (r *Running) Done() <-chan struct{} {
	return r.done
}

// Runtime returns the runtime being run.
func (r *Running) Runtime() *Runtime {
	return r.rt
}
