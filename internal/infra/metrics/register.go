package metrics

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	mu         sync.Mutex
	registered []prometheus.Collector
)

// register defers actual registration until MustRegister so init order
// between files does not matter.
func register(cs ...prometheus.Collector) {
	mu.Lock()
	defer mu.Unlock()
	registered = append(registered, cs...)
}

var once sync.Once

// MustRegister registers all collectors with the default registry (idempotent).
func MustRegister() {
	once.Do(func() {
		mu.Lock()
		defer mu.Unlock()
		prometheus.MustRegister(registered...)
	})
}

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
