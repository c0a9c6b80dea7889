package forms

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts cache activity.
type Metrics struct {
	Compilations  prometheus.Counter
	CacheHits     prometheus.Counter
	Retirements   prometheus.Counter
	CompileErrors prometheus.Counter
}

// NewMetrics creates the cache counters and registers them on reg when it
// is not nil. Counters already registered on reg are shared. A counter
// that cannot be registered stays usable but unregistered, and the
// registration errors are returned alongside the metrics.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Compilations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "statbridge_form_compilations_total",
			Help: "Number of forms compiled successfully.",
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "statbridge_form_cache_hits_total",
			Help: "Number of form requests served from the cache.",
		}),
		Retirements: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "statbridge_form_retirements_total",
			Help: "Number of compiled forms retired after replacement or clearing.",
		}),
		CompileErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "statbridge_form_compile_errors_total",
			Help: "Number of failed form compilations.",
		}),
	}
	if reg == nil {
		return m, nil
	}

	var errs []error
	for _, c := range []*prometheus.Counter{&m.Compilations, &m.CacheHits, &m.Retirements, &m.CompileErrors} {
		counter, err := register(reg, *c)
		if err != nil {
			errs = append(errs, err)
		}
		*c = counter
	}
	return m, errors.Join(errs...)
}

// register returns the counter to count with: c itself, or the counter
// already registered under the same description.
func register(reg prometheus.Registerer, c prometheus.Counter) (prometheus.Counter, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
			return existing, nil
		}
	}
	return c, fmt.Errorf("failed to register %s: %w", c.Desc(), err)
}
