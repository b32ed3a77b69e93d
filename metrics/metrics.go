// Package metrics exposes counters and gauges for the scheduler,
// harvester, matcher, and notifier in Prometheus text exposition
// format, using the same atomic-counter idiom the rest of the stack
// uses for concurrency-safe bookkeeping.
package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Counter is a monotonically increasing value, safe for concurrent use.
type Counter struct {
	value int64
}

func (c *Counter) Inc()         { atomic.AddInt64(&c.value, 1) }
func (c *Counter) Add(n int64)  { atomic.AddInt64(&c.value, n) }
func (c *Counter) Value() int64 { return atomic.LoadInt64(&c.value) }

// Gauge is a value that can move in either direction.
type Gauge struct {
	value int64 // stored as micros for float-like precision
}

func (g *Gauge) Set(v float64)  { atomic.StoreInt64(&g.value, int64(v*1e6)) }
func (g *Gauge) Value() float64 { return float64(atomic.LoadInt64(&g.value)) / 1e6 }

func labelKey(labels map[string]string) string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%q", k, labels[k])
	}
	return strings.Join(parts, ",")
}

// Registry is the process-wide metrics registry. A single instance is
// built at startup and shared by every component via its own typed
// wrapper methods (Track*).
type Registry struct {
	mu       sync.RWMutex
	counters map[string]map[string]*Counter
	gauges   map[string]map[string]*Gauge
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		counters: make(map[string]map[string]*Counter),
		gauges:   make(map[string]map[string]*Gauge),
	}
}

func (r *Registry) CounterInc(name string, labels map[string]string) {
	r.counter(name, labels).Inc()
}

func (r *Registry) CounterAdd(name string, labels map[string]string, n int64) {
	r.counter(name, labels).Add(n)
}

func (r *Registry) GaugeSet(name string, labels map[string]string, v float64) {
	r.gauge(name, labels).Set(v)
}

func (r *Registry) counter(name string, labels map[string]string) *Counter {
	key := labelKey(labels)
	r.mu.RLock()
	if byLabel, ok := r.counters[name]; ok {
		if c, ok := byLabel[key]; ok {
			r.mu.RUnlock()
			return c
		}
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.counters[name]; !ok {
		r.counters[name] = make(map[string]*Counter)
	}
	if _, ok := r.counters[name][key]; !ok {
		r.counters[name][key] = &Counter{}
	}
	return r.counters[name][key]
}

func (r *Registry) gauge(name string, labels map[string]string) *Gauge {
	key := labelKey(labels)
	r.mu.RLock()
	if byLabel, ok := r.gauges[name]; ok {
		if g, ok := byLabel[key]; ok {
			r.mu.RUnlock()
			return g
		}
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.gauges[name]; !ok {
		r.gauges[name] = make(map[string]*Gauge)
	}
	if _, ok := r.gauges[name][key]; !ok {
		r.gauges[name][key] = &Gauge{}
	}
	return r.gauges[name][key]
}

// TrackHarvest records the outcome of one Harvester.Harvest call.
func (r *Registry) TrackHarvest(origin string, legs int, err error) {
	labels := map[string]string{"origin": origin, "outcome": outcome(err)}
	r.CounterInc("dealengine_harvests_total", labels)
	r.CounterAdd("dealengine_harvest_legs_total", map[string]string{"origin": origin}, int64(legs))
}

// TrackMatch records the outcome of one Matcher.Match call.
func (r *Registry) TrackMatch(profileID string, deals int, err error) {
	labels := map[string]string{"outcome": outcome(err)}
	r.CounterInc("dealengine_matcher_runs_total", labels)
	r.CounterAdd("dealengine_deals_matched_total", nil, int64(deals))
}

// TrackNotification records one push attempt.
func (r *Registry) TrackNotification(kind string, err error) {
	r.CounterInc("dealengine_notifications_total", map[string]string{"kind": kind, "outcome": outcome(err)})
}

// TrackOrchestration records one end-to-end profile orchestration.
func (r *Registry) TrackOrchestration(err error) {
	r.CounterInc("dealengine_orchestrations_total", map[string]string{"outcome": outcome(err)})
}

// SetActiveWorkers reports how many orchestration tasks are in flight.
func (r *Registry) SetActiveWorkers(n int) {
	r.GaugeSet("dealengine_orchestration_workers_active", nil, float64(n))
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Handler serves the registry in Prometheus text exposition format.
func (r *Registry) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("# dealengine metrics %s\n\n", time.Now().UTC().Format(time.RFC3339)))

		r.mu.RLock()
		defer r.mu.RUnlock()

		for name, byLabel := range r.counters {
			sb.WriteString(fmt.Sprintf("# TYPE %s counter\n", name))
			for lk, c := range byLabel {
				if lk == "" {
					sb.WriteString(fmt.Sprintf("%s %d\n", name, c.Value()))
				} else {
					sb.WriteString(fmt.Sprintf("%s{%s} %d\n", name, lk, c.Value()))
				}
			}
		}
		for name, byLabel := range r.gauges {
			sb.WriteString(fmt.Sprintf("# TYPE %s gauge\n", name))
			for lk, g := range byLabel {
				if lk == "" {
					sb.WriteString(fmt.Sprintf("%s %f\n", name, g.Value()))
				} else {
					sb.WriteString(fmt.Sprintf("%s{%s} %f\n", name, lk, g.Value()))
				}
			}
		}

		_, _ = w.Write([]byte(sb.String()))
	}
}
