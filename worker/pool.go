package worker

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// ErrRunning is returned by RunOnce while a previous run is in progress.
var ErrRunning = errors.New("run already in progress")

// drain feeds every item visited by scan into fn with at most limit calls
// in flight. fn handles its own failures.
func drain[T any](ctx context.Context, limit int, scan func(context.Context, func(T) error) error, fn func(context.Context, T)) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	err := scan(gctx, func(item T) error {
		if err := gctx.Err(); err != nil {
			return err
		}
		g.Go(func() error {
			fn(gctx, item)
			return nil
		})
		return nil
	})
	if werr := g.Wait(); err == nil {
		err = werr
	}
	return err
}

// loop runs a job at a fixed interval, once right away, and never twice at
// the same time.
type loop struct {
	name     string
	interval time.Duration
	logger   *slog.Logger
	metrics  *Metrics

	running atomic.Bool
	once    sync.Once
	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
}

func newLoop(name string, interval time.Duration, logger *slog.Logger, metrics *Metrics) *loop {
	return &loop{
		name:     name,
		interval: interval,
		logger:   logger,
		metrics:  metrics,
	}
}

// guard runs job unless another run holds the loop.
func (l *loop) guard(ctx context.Context, job func(context.Context) error) error {
	if !l.running.CompareAndSwap(false, true) {
		l.metrics.Skipped.WithLabelValues(l.name).Inc()
		l.logger.Warn("previous run still in progress, skipping")
		return ErrRunning
	}
	defer l.running.Store(false)

	start := time.Now()
	err := job(ctx)
	l.metrics.Runs.WithLabelValues(l.name).Inc()
	l.logger.Info("run finished", slog.Duration("elapsed", time.Since(start)))
	return err
}

func (l *loop) start(ctx context.Context, job func(context.Context) error) {
	l.once.Do(func() {
		ctx, cancel := context.WithCancel(ctx)
		l.mu.Lock()
		l.cancel = cancel
		l.done = make(chan struct{})
		l.mu.Unlock()

		go func() {
			defer close(l.done)
			l.logger.Info("start", slog.Duration("interval", l.interval))

			ticker := time.NewTicker(l.interval)
			defer ticker.Stop()

			for {
				if err := l.guard(ctx, job); err != nil && !errors.Is(err, ErrRunning) {
					l.logger.Error("run failed", slog.String("error", err.Error()))
				}
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
				}
			}
		}()
	})
}

// stop cancels the loop and waits for the current run to return.
func (l *loop) stop() {
	l.mu.Lock()
	cancel, done := l.cancel, l.done
	l.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}
