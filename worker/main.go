package worker

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"

	"github.com/e14n/pump2status/bridge"
	"github.com/e14n/pump2status/store"
	"github.com/e14n/pump2status/types"
)

var tracer = otel.Tracer("worker")

type Worker struct {
	Updater   *Updater
	Forwarder *Forwarder
}

func NewWorker(store *store.Store, service *bridge.Service, config types.WorkerConfig, logger *slog.Logger, metrics *Metrics) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Worker{
		Updater:   NewUpdater(store, service, config, logger, metrics),
		Forwarder: NewForwarder(store, service, config, logger, metrics),
	}
}

// Run starts both loops. They stop when ctx is done or on Stop.
func (w *Worker) Run(ctx context.Context) {
	w.Updater.Start(ctx)
	w.Forwarder.Start(ctx)
}

func (w *Worker) Stop() {
	w.Updater.Stop()
	w.Forwarder.Stop()
}
