// Package metrics exposes the counters and gauges of the messaging core
// through a process-wide prometheus registry. Metric names are grouped:
// IncrCounterWithGroup("socket", "connection_close_total", 1) registers
// and increments socket_connection_close_total.
package metrics

import (
	"net/http"
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	mu       sync.Mutex
	registry = prometheus.NewRegistry()
	counters = make(map[string]*prometheus.CounterVec)
	gauges   = make(map[string]*prometheus.GaugeVec)
)

// Handler returns an HTTP handler serving the metrics registry in the
// prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// IncrCounterWithGroup increments a dimensionless grouped counter.
func IncrCounterWithGroup(group, name string, delta Value) {
	IncrCounterWithDimGroup(group, name, delta, nil)
}

// IncrCounterWithDimGroup increments a grouped counter with dimensions.
// The dimension key set of the first call for a given metric fixes its
// label names; later calls must use the same keys.
func IncrCounterWithDimGroup(group, name string, delta Value, dims Dimension) {
	counter(group, name, dims).With(prometheus.Labels(dims)).Add(float64(delta))
}

// UpdateGaugeWithGroup sets a dimensionless grouped gauge.
func UpdateGaugeWithGroup(group, name string, v Value) {
	gauge(group, name, nil).With(nil).Set(float64(v))
}

// UpdateGaugeWithDimGroup sets a grouped gauge with dimensions.
func UpdateGaugeWithDimGroup(group, name string, v Value, dims Dimension) {
	gauge(group, name, dims).With(prometheus.Labels(dims)).Set(float64(v))
}

func counter(group, name string, dims Dimension) *prometheus.CounterVec {
	mu.Lock()
	defer mu.Unlock()

	fq := group + "_" + name
	if c, ok := counters[fq]; ok {
		return c
	}
	c := prometheus.NewCounterVec(prometheus.CounterOpts{Name: fq}, labelNames(dims))
	registry.MustRegister(c)
	counters[fq] = c
	return c
}

func gauge(group, name string, dims Dimension) *prometheus.GaugeVec {
	mu.Lock()
	defer mu.Unlock()

	fq := group + "_" + name
	if g, ok := gauges[fq]; ok {
		return g
	}
	g := prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: fq}, labelNames(dims))
	registry.MustRegister(g)
	gauges[fq] = g
	return g
}

func labelNames(dims Dimension) []string {
	names := make([]string, 0, len(dims))
	for k := range dims {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
