package main

import (
	"net/http"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/go-kit/kit/metrics/discard"
	"github.com/go-kit/kit/metrics/prometheus"
	"github.com/maidsafe/sn-data-types-sub001/comm"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewSyncMetrics returns the counters the replication layer
// maintains, backed by prometheus if an exposition address
// is configured and discarded otherwise.
func NewSyncMetrics(prometheusAddr string) *comm.SyncMetrics {

	if prometheusAddr == "" {
		return &comm.SyncMetrics{
			Applied:  discard.NewCounter(),
			Deferred: discard.NewCounter(),
			Rejected: discard.NewCounter(),
		}
	}

	return &comm.SyncMetrics{
		Applied: prometheus.NewCounterFrom(prom.CounterOpts{
			Namespace: "replica",
			Subsystem: "sync",
			Name:      "applied_ops_total",
			Help:      "Number of operations applied to local instances",
		}, nil),
		Deferred: prometheus.NewCounterFrom(prom.CounterOpts{
			Namespace: "replica",
			Subsystem: "sync",
			Name:      "deferred_ops_total",
			Help:      "Number of causally deferred operation deliveries",
		}, nil),
		Rejected: prometheus.NewCounterFrom(prom.CounterOpts{
			Namespace: "replica",
			Subsystem: "sync",
			Name:      "rejected_ops_total",
			Help:      "Number of rejected operations",
		}, nil),
	}
}

func runPromHTTP(logger log.Logger, addr string) {

	if addr == "" {
		level.Debug(logger).Log("msg", "prometheus addr is empty, not exposing prometheus metrics")
		return
	}

	http.Handle("/metrics", promhttp.HandlerFor(prom.DefaultGatherer, promhttp.HandlerOpts{}))

	level.Info(logger).Log("msg", "prometheus handler listening", "addr", addr)
	if err := http.ListenAndServe(addr, nil); err != nil {
		level.Warn(logger).Log("msg", "failed to serve prometheus metrics", "err", err)
	}
}
