package metrics

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	Resolutions     *prometheus.CounterVec
	Failures        *prometheus.CounterVec
	SymbolCacheHit  prometheus.Counter
	SymbolCacheMiss prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "symfind_resolutions_total",
			Help: "Symbol queries answered, by outcome.",
		}, []string{"outcome"}),
		Failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "symfind_failures_total",
			Help: "Symbol queries that failed before classification, by reason.",
		}, []string{"reason"}),
		SymbolCacheHit: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "symfind_symbol_cache_hit_total",
			Help: "Address resolutions served from the symbol cache.",
		}),
		SymbolCacheMiss: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "symfind_symbol_cache_miss_total",
			Help: "Address resolutions that had to parse the binary's symbol table.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.Resolutions,
			m.Failures,
			m.SymbolCacheHit,
			m.SymbolCacheMiss,
		)
	}

	return m
}
