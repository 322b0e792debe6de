// Package worker implements the single-slot generation lanes. Each lane
// accepts at most one pending request at a time, executes it against the
// gateway with bounded linearly-growing backoff, and emits exactly one
// terminal outcome per accepted request.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kotoba-ai/kotoba-assistant/internal/gateway"
	"github.com/kotoba-ai/kotoba-assistant/internal/model"
)

// Lane identifies an independent generation pipeline.
type Lane string

const (
	LaneText  Lane = "text"
	LaneImage Lane = "image"
)

var (
	// ErrSuperseded is reported to a waiter whose request was replaced in
	// the pending slot before the worker accepted it. A superseded request
	// never produces a terminal outcome.
	ErrSuperseded = errors.New("request superseded by a newer submission")

	// ErrCanceled is reported to a waiter whose pending request was
	// removed by CancelPending before the worker accepted it.
	ErrCanceled = errors.New("pending request canceled")

	// ErrStopped is reported when the worker has been shut down.
	ErrStopped = errors.New("worker stopped")
)

// RetryExhaustedError wraps the last gateway error after all attempts failed.
type RetryExhaustedError struct {
	Attempts int
	Last     error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("generation failed after %d attempts: %v", e.Attempts, e.Last)
}

func (e *RetryExhaustedError) Unwrap() error { return e.Last }

// Config controls retry bounds and the submission policy.
type Config struct {
	MaxRetries int
	BaseWait   time.Duration
	// Queue switches from the single-slot replace policy to FIFO queuing.
	Queue bool
}

// Pending is the caller's handle on a submitted request.
type Pending struct {
	req     model.GenerationRequest
	done    chan struct{}
	outcome *model.GenerationOutcome
	err     error
}

// Wait blocks until the request reaches a terminal outcome, is superseded,
// canceled, or ctx expires. The outcome is non-nil exactly when err is nil.
func (p *Pending) Wait(ctx context.Context) (*model.GenerationOutcome, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.done:
		return p.outcome, p.err
	}
}

// Worker owns one lane's wait/process loop on a dedicated goroutine.
type Worker struct {
	lane Lane
	gw   gateway.Gateway
	cfg  Config
	log  zerolog.Logger

	mu      sync.Mutex
	cond    *sync.Cond
	pending []*Pending // len <= 1 unless cfg.Queue
	stopped bool

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New constructs a Worker and starts its processing loop.
func New(lane Lane, gw gateway.Gateway, cfg Config, log zerolog.Logger) *Worker {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.BaseWait <= 0 {
		cfg.BaseWait = time.Second
	}
	w := &Worker{
		lane:   lane,
		gw:     gw,
		cfg:    cfg,
		log:    log.With().Str("lane", string(lane)).Logger(),
		stopCh: make(chan struct{}),
	}
	w.cond = sync.NewCond(&w.mu)
	w.wg.Add(1)
	go w.run()
	return w
}

// Submit places req in the lane's pending slot and wakes the worker.
// Under the default policy a not-yet-accepted pending request is replaced
// (its waiter receives ErrSuperseded); with Queue enabled requests are
// processed FIFO.
func (w *Worker) Submit(req model.GenerationRequest) (*Pending, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return nil, ErrStopped
	}
	p := &Pending{req: req, done: make(chan struct{})}
	if !w.cfg.Queue && len(w.pending) > 0 {
		old := w.pending[len(w.pending)-1]
		old.err = ErrSuperseded
		close(old.done)
		w.pending = w.pending[:len(w.pending)-1]
		w.log.Debug().Msg("pending request replaced")
	}
	w.pending = append(w.pending, p)
	w.cond.Signal()
	return p, nil
}

// CancelPending removes all not-yet-accepted requests. A request already
// being processed runs to its terminal outcome.
func (w *Worker) CancelPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, p := range w.pending {
		p.err = ErrCanceled
		close(p.done)
	}
	w.pending = nil
}

// Stop shuts the worker down at the next wait or backoff boundary and
// waits for the loop to exit. An in-flight gateway call is not aborted;
// its outcome is discarded. Stop is idempotent.
func (w *Worker) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	close(w.stopCh)
	w.cond.Broadcast()
	w.mu.Unlock()
	w.wg.Wait()
}

func (w *Worker) run() {
	defer w.wg.Done()
	for {
		w.mu.Lock()
		for len(w.pending) == 0 && !w.stopped {
			w.cond.Wait()
		}
		if w.stopped {
			for _, p := range w.pending {
				p.err = ErrStopped
				close(p.done)
			}
			w.pending = nil
			w.mu.Unlock()
			w.log.Info().Msg("worker stopping")
			return
		}
		p := w.pending[0]
		w.pending = w.pending[1:]
		w.mu.Unlock()

		out := w.process(p.req)

		w.mu.Lock()
		stopped := w.stopped
		w.mu.Unlock()
		if stopped {
			// Outcome of a call that completed after Stop is discarded.
			p.err = ErrStopped
			close(p.done)
			continue
		}
		p.outcome = out
		close(p.done)
	}
}

// process runs the bounded retry loop for one accepted request. Backoff
// grows linearly with the attempt number: 1x, 2x, 3x the base wait.
func (w *Worker) process(req model.GenerationRequest) *model.GenerationOutcome {
	start := time.Now()
	var lastErr error
	for attempt := 1; attempt <= w.cfg.MaxRetries; attempt++ {
		comp, err := w.gw.Invoke(context.Background(), req)
		if err == nil {
			return &model.GenerationOutcome{
				Text:     comp.Text,
				Elapsed:  time.Since(start),
				Attempts: attempt,
			}
		}
		lastErr = err
		w.log.Warn().Err(err).Int("attempt", attempt).Int("max", w.cfg.MaxRetries).
			Str("kind", gateway.KindOf(err).String()).Msg("generation attempt failed")

		if attempt < w.cfg.MaxRetries {
			select {
			case <-time.After(w.cfg.BaseWait * time.Duration(attempt)):
			case <-w.stopCh:
				// Abandon further attempts; run() discards this outcome.
				return &model.GenerationOutcome{
					Elapsed:  time.Since(start),
					Attempts: attempt,
					Err:      &RetryExhaustedError{Attempts: attempt, Last: lastErr},
				}
			}
		}
	}
	return &model.GenerationOutcome{
		Elapsed:  time.Since(start),
		Attempts: w.cfg.MaxRetries,
		Err:      &RetryExhaustedError{Attempts: w.cfg.MaxRetries, Last: lastErr},
	}
}
