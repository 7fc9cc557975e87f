// Package metrics is the nil-safe facade client packages call through to
// record Prometheus metrics. Every constructor here returns nil when
// InitRegistry has not been called, and every wrapper function in the
// sibling files in this package tolerates a nil receiver — metrics are
// entirely optional and cost nothing when disabled.
//
// The concrete Prometheus types live in pkg/metrics/prometheus, which
// would create an import cycle (prometheus needs the domain interfaces
// declared here, and this package needs the concrete constructors) if
// wired directly. Each domain file below breaks the cycle the same way:
// a package-level constructor func var that pkg/metrics/prometheus's
// init() sets via a RegisterXxxConstructor call.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	mu       sync.Mutex
	enabled  bool
	registry *prometheus.Registry
)

// InitRegistry creates the process's metrics registry and flips the
// package into the enabled state. Must be called before any NewXxxMetrics
// constructor for those constructors to return a non-nil implementation.
func InitRegistry() *prometheus.Registry {
	mu.Lock()
	defer mu.Unlock()
	registry = prometheus.NewRegistry()
	enabled = true
	return registry
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return enabled
}

// GetRegistry returns the process's metrics registry, creating one via
// InitRegistry if none exists yet.
func GetRegistry() *prometheus.Registry {
	mu.Lock()
	if registry == nil {
		mu.Unlock()
		return InitRegistry()
	}
	defer mu.Unlock()
	return registry
}
