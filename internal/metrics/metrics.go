// Package metrics exposes evinse run counters in Prometheus format. A CLI run
// has no scrape endpoint, so the registry is written once to a textfile that
// node_exporter's textfile collector can pick up.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds every evinse metric; it is separate from the default registry.
var Registry = prometheus.NewRegistry()

var (
	StoreLookups = prometheus.NewCounter(prometheus.CounterOpts{Name: "evinse_store_lookups_total", Help: "namespace store substring searches"})
	CacheHits    = prometheus.NewCounter(prometheus.CounterOpts{Name: "evinse_resolver_cache_hits_total", Help: "type resolutions served from the in-process cache"})
	Unresolved   = prometheus.NewCounter(prometheus.CounterOpts{Name: "evinse_unresolved_types_total", Help: "types that matched no purl"})
	Phases       = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "evinse_phases_total", Help: "evidence phases by outcome"}, []string{"phase", "status"})
	Evidence     = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "evinse_evidence_total", Help: "evidence entries written to the document"}, []string{"kind"})
	Namespaces   = prometheus.NewCounter(prometheus.CounterOpts{Name: "evinse_namespaces_indexed_total", Help: "namespace records inserted by the collector"})
)

func init() {
	Registry.MustRegister(StoreLookups, CacheHits, Unresolved, Phases, Evidence, Namespaces)
}

// WriteTextfile writes the current metric values to path.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, Registry)
}
