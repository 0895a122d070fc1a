// Package metrics holds the prometheus collectors shared by the sync loop, the roster
// refresher, the store client and the docstore server.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is private to pollchat so tests and embedders never collide with the
// global default registry.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	SyncTicks = factory.NewCounter(prometheus.CounterOpts{
		Name: "pollchat_sync_ticks_total",
		Help: "Poll cycles started by the synchronization loop.",
	})

	SyncFetchErrors = factory.NewCounter(prometheus.CounterOpts{
		Name: "pollchat_sync_fetch_errors_total",
		Help: "Poll cycles whose fetch failed and was skipped.",
	})

	SyncStaleResults = factory.NewCounter(prometheus.CounterOpts{
		Name: "pollchat_sync_stale_results_total",
		Help: "Fetched timelines dropped because the active conversation changed.",
	})

	SyncRenders = factory.NewCounter(prometheus.CounterOpts{
		Name: "pollchat_sync_renders_total",
		Help: "Timelines handed to the renderer.",
	})

	SyncFetchDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Name:    "pollchat_sync_fetch_duration_seconds",
		Help:    "Latency of conversation fetches.",
		Buckets: prometheus.DefBuckets,
	})

	StoreRequests = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "pollchat_store_requests_total",
		Help: "Document store requests by method and status code.",
	}, []string{"method", "code"})

	RosterRefreshes = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "pollchat_roster_refreshes_total",
		Help: "Roster refreshes by result.",
	}, []string{"result"})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Handler serves the registry in the prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}
