package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/e14n/pump2status/bridge"
	"github.com/e14n/pump2status/store"
	"github.com/e14n/pump2status/types"
)

// UpdateReport sums up one updater run.
type UpdateReport struct {
	Accounts int
	Added    int
	Deleted  int
	Broken   int
	Failed   int
}

// Updater periodically refreshes the following edges of every foreign account.
type Updater struct {
	*loop
	store   *store.Store
	service *bridge.Service
	config  types.WorkerConfig
}

func NewUpdater(store *store.Store, service *bridge.Service, config types.WorkerConfig, logger *slog.Logger, metrics *Metrics) *Updater {
	config = config.WithDefaults()
	logger = logger.With(slog.String("component", "updater"))
	return &Updater{
		loop:    newLoop("updater", config.UpdateInterval, logger, metrics),
		store:   store,
		service: service,
		config:  config,
	}
}

// Start runs the updater now and then every UpdateInterval until Stop.
func (u *Updater) Start(ctx context.Context) {
	u.start(ctx, func(ctx context.Context) error {
		_, err := u.run(ctx)
		return err
	})
}

func (u *Updater) Stop() {
	u.stop()
}

// RunOnce performs a single run. It returns ErrRunning when a run is
// already in progress.
func (u *Updater) RunOnce(ctx context.Context) (UpdateReport, error) {
	var report UpdateReport
	err := u.guard(ctx, func(ctx context.Context) error {
		var err error
		report, err = u.run(ctx)
		return err
	})
	return report, err
}

func (u *Updater) run(ctx context.Context) (UpdateReport, error) {
	ctx, span := tracer.Start(ctx, "Worker.Updater.Run")
	defer span.End()

	var (
		mu     sync.Mutex
		report UpdateReport
	)

	err := drain(ctx, u.config.Concurrency, u.store.ForEachForeignUser, func(ctx context.Context, fuser types.ForeignUser) {
		result, err := u.service.SyncFollowing(ctx, fuser)
		broken := err != nil && u.service.HandleLinkError(ctx, err)
		if err != nil && !broken {
			u.logger.Error("update following failed",
				slog.String("fuser", fuser.ID),
				slog.String("error", err.Error()),
			)
		}

		u.metrics.EdgesAdded.Add(float64(result.Added))
		u.metrics.EdgesGone.Add(float64(result.Deleted))

		mu.Lock()
		defer mu.Unlock()
		report.Accounts++
		report.Added += result.Added
		report.Deleted += result.Deleted
		switch {
		case broken:
			report.Broken++
			u.metrics.LinkErrors.Inc()
		case err != nil:
			report.Failed++
			u.metrics.Failed.WithLabelValues(u.name).Inc()
		}
	})
	if err != nil {
		span.RecordError(err)
		return report, errors.Wrap(err, "scan foreign users")
	}

	if err := u.service.RecordCounts(ctx, time.Now()); err != nil {
		span.RecordError(err)
		return report, errors.Wrap(err, "record counts")
	}

	u.logger.Info("following updated",
		slog.Int("accounts", report.Accounts),
		slog.Int("added", report.Added),
		slog.Int("deleted", report.Deleted),
		slog.Int("broken", report.Broken),
		slog.Int("failed", report.Failed),
	)
	return report, nil
}
