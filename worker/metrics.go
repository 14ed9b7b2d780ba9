package worker

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the counters exported by the background loops.
type Metrics struct {
	Runs       *prometheus.CounterVec
	Skipped    *prometheus.CounterVec
	EdgesAdded prometheus.Counter
	EdgesGone  prometheus.Counter
	Forwarded  prometheus.Counter
	Failed     *prometheus.CounterVec
	LinkErrors prometheus.Counter
}

// NewMetrics creates the counters and registers them on reg when it is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pump2status_worker_runs_total",
			Help: "Completed runs of each background loop",
		}, []string{"loop"}),
		Skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pump2status_worker_runs_skipped_total",
			Help: "Runs skipped because the previous one was still in progress",
		}, []string{"loop"}),
		EdgesAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pump2status_edges_added_total",
			Help: "Following edges recorded by the updater",
		}),
		EdgesGone: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pump2status_edges_deleted_total",
			Help: "Following edges removed by the updater",
		}),
		Forwarded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pump2status_activities_forwarded_total",
			Help: "Activities delivered to foreign accounts",
		}),
		Failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pump2status_worker_failures_total",
			Help: "Accounts or deliveries that failed in a run",
		}, []string{"loop"}),
		LinkErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pump2status_link_errors_total",
			Help: "Foreign accounts deleted after their credentials were rejected",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Runs, m.Skipped, m.EdgesAdded, m.EdgesGone, m.Forwarded, m.Failed, m.LinkErrors)
	}
	return m
}
