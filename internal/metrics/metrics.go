package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	syncedFiles = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "openclaw",
			Subsystem: "sync",
			Name:      "files_total",
			Help:      "Number of files uploaded to object storage across all sync passes.",
		},
	)
	syncPasses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "openclaw",
			Subsystem: "sync",
			Name:      "passes_total",
			Help:      "Number of sync passes by result.",
		}, []string{"result"},
	)
	corruptKeysDeleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "openclaw",
			Subsystem: "sync",
			Name:      "corrupt_keys_deleted_total",
			Help:      "Number of corrupted object-storage keys removed by the sweep.",
		},
	)
	lastSyncTime = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "openclaw",
			Subsystem: "sync",
			Name:      "last_success_unixtime",
			Help:      "Unix time of the most recent successful sync pass.",
		},
	)
	restoredFiles = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "openclaw",
			Subsystem: "restore",
			Name:      "files_total",
			Help:      "Number of files written back into the sandbox by restore passes.",
		},
	)
	gatewayStarts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "openclaw",
			Subsystem: "gateway",
			Name:      "starts_total",
			Help:      "Number of gateway process launches.",
		},
	)
	gatewayRestarts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "openclaw",
			Subsystem: "gateway",
			Name:      "restarts_total",
			Help:      "Number of externally requested gateway restarts.",
		},
	)
	orphansKilled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "openclaw",
			Subsystem: "gateway",
			Name:      "orphans_killed_total",
			Help:      "Number of non-gateway processes killed by the orphan cleanup.",
		},
	)
	commandTimeouts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "openclaw",
			Subsystem: "runner",
			Name:      "timeouts_total",
			Help:      "Number of commands whose completion was never observed.",
		},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{
		syncedFiles, syncPasses, corruptKeysDeleted, lastSyncTime,
		restoredFiles, gatewayStarts, gatewayRestarts, orphansKilled, commandTimeouts,
	}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler that serves Prometheus metrics for the DefaultGatherer.
func Handler() http.Handler { return promhttp.Handler() }

// Below are lightweight helpers used by internal packages to record metrics.
// They no-op if Register hasn't been called.

func AddSyncedFiles(n int) {
	if regOK.Load() {
		syncedFiles.Add(float64(n))
	}
}

func IncSyncPass(result string) {
	if regOK.Load() {
		syncPasses.WithLabelValues(result).Inc()
	}
}

func AddCorruptKeysDeleted(n int) {
	if regOK.Load() {
		corruptKeysDeleted.Add(float64(n))
	}
}

func SetLastSyncTime(t time.Time) {
	if regOK.Load() {
		lastSyncTime.Set(float64(t.Unix()))
	}
}

func AddRestoredFiles(n int) {
	if regOK.Load() {
		restoredFiles.Add(float64(n))
	}
}

func IncGatewayStart() {
	if regOK.Load() {
		gatewayStarts.Inc()
	}
}

func IncGatewayRestart() {
	if regOK.Load() {
		gatewayRestarts.Inc()
	}
}

func AddOrphansKilled(n int) {
	if regOK.Load() {
		orphansKilled.Add(float64(n))
	}
}

func IncCommandTimeout() {
	if regOK.Load() {
		commandTimeouts.Inc()
	}
}
