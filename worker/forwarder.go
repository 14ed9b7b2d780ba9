package worker

import (
	"context"
	"log/slog"
	"sync"

	"github.com/pkg/errors"

	"github.com/e14n/pump2status/bridge"
	"github.com/e14n/pump2status/store"
	"github.com/e14n/pump2status/types"
)

// ForwardReport sums up one forwarder run.
type ForwardReport struct {
	Users     int
	Polled    int
	Delivered int
	Failed    int
}

// Forwarder periodically relays new public notes of local users to their
// autopost accounts.
type Forwarder struct {
	*loop
	store   *store.Store
	service *bridge.Service
	config  types.WorkerConfig
}

func NewForwarder(store *store.Store, service *bridge.Service, config types.WorkerConfig, logger *slog.Logger, metrics *Metrics) *Forwarder {
	config = config.WithDefaults()
	logger = logger.With(slog.String("component", "forwarder"))
	return &Forwarder{
		loop:    newLoop("forwarder", config.ForwardInterval, logger, metrics),
		store:   store,
		service: service,
		config:  config,
	}
}

func (f *Forwarder) Start(ctx context.Context) {
	f.start(ctx, func(ctx context.Context) error {
		_, err := f.run(ctx)
		return err
	})
}

func (f *Forwarder) Stop() {
	f.stop()
}

// RunOnce performs a single run. It returns ErrRunning when a run is
// already in progress.
func (f *Forwarder) RunOnce(ctx context.Context) (ForwardReport, error) {
	var report ForwardReport
	err := f.guard(ctx, func(ctx context.Context) error {
		var err error
		report, err = f.run(ctx)
		return err
	})
	return report, err
}

func (f *Forwarder) run(ctx context.Context) (ForwardReport, error) {
	ctx, span := tracer.Start(ctx, "Worker.Forwarder.Run")
	defer span.End()

	var (
		mu     sync.Mutex
		report ForwardReport
	)

	err := drain(ctx, f.config.Concurrency, f.store.ForEachLocalUser, func(ctx context.Context, user types.LocalUser) {
		result, err := f.service.ForwardActivities(ctx, user)
		if err != nil {
			result.Failed++
			f.logger.Error("forward activities failed",
				slog.String("user", user.ID),
				slog.String("error", err.Error()),
			)
		}

		f.metrics.Forwarded.Add(float64(result.Delivered))
		f.metrics.Failed.WithLabelValues(f.name).Add(float64(result.Failed))

		mu.Lock()
		defer mu.Unlock()
		report.Users++
		if result.Polled {
			report.Polled++
		}
		report.Delivered += result.Delivered
		report.Failed += result.Failed
	})
	if err != nil {
		span.RecordError(err)
		return report, errors.Wrap(err, "scan local users")
	}

	f.logger.Info("activities forwarded",
		slog.Int("users", report.Users),
		slog.Int("polled", report.Polled),
		slog.Int("delivered", report.Delivered),
		slog.Int("failed", report.Failed),
	)
	return report, nil
}
