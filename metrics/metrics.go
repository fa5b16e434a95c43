// Package metrics defines the Prometheus collectors exported by w3clock.
//
// Collectors are usable without registration; the daemon registers them on
// its registry with Register.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "w3clock"

var (
	// Advances counts advance calls by outcome: applied, ignored, rejected, failed.
	Advances = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "advances_total",
		Help:      "Clock advance calls by outcome.",
	}, []string{"outcome"})

	// BlockCacheLookups counts block cache lookups by result: hit, miss.
	BlockCacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "block_cache_lookups_total",
		Help:      "Block cache lookups by result.",
	}, []string{"result"})

	// GatewayFetches counts gateway fetch attempts by outcome: ok, absent,
	// integrity, error.
	GatewayFetches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "gateway_fetches_total",
		Help:      "Gateway block fetch attempts by outcome.",
	}, []string{"outcome"})

	// PropagationHops counts fan-out hops by outcome: delivered, failed, skipped.
	PropagationHops = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "propagation_hops_total",
		Help:      "Fan-out deliveries to subscriber clocks by outcome.",
	}, []string{"outcome"})

	// ResidentActors is the number of clock actors resident in memory.
	ResidentActors = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "resident_actors",
		Help:      "Clock actors currently resident in this process.",
	})
)

// Register registers every collector on r.
func Register(r prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		Advances,
		BlockCacheLookups,
		GatewayFetches,
		PropagationHops,
		ResidentActors,
	} {
		if err := r.Register(c); err != nil {
			return err
		}
	}
	return nil
}
