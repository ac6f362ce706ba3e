// Package metrics exposes the operator's cycle counters and current
// primary as Prometheus gauges/counters, served over a small HTTP
// endpoint for an operator's monitoring stack to scrape.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mongorsop/internal/logger"
)

var (
	cyclesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mongorsop",
		Name:      "cycles_total",
		Help:      "Total reconciliation cycles run.",
	})

	classificationTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mongorsop",
		Name:      "classification_total",
		Help:      "Reconciliation cycles by classifier outcome.",
	}, []string{"tag"})

	actionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mongorsop",
		Name:      "actions_total",
		Help:      "Actuator invocations by action and result.",
	}, []string{"action", "result"})

	hasPrimary = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "mongorsop",
		Name:      "has_primary",
		Help:      "1 if a writable primary was observed in the last cycle, else 0.",
	})

	cycleDeadlineExceeded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mongorsop",
		Name:      "cycle_deadline_exceeded_total",
		Help:      "Cycles abandoned after exceeding the cycle deadline.",
	})
)

// RecordCycle increments the total cycle count.
func RecordCycle() { cyclesTotal.Inc() }

// RecordClassification increments the counter for a classifier tag.
func RecordClassification(tag string) { classificationTotal.WithLabelValues(tag).Inc() }

// RecordAction increments the counter for an actuator action/result pair.
func RecordAction(action, result string) { actionsTotal.WithLabelValues(action, result).Inc() }

// SetHasPrimary records whether the last cycle observed a primary.
func SetHasPrimary(present bool) {
	if present {
		hasPrimary.Set(1)
		return
	}
	hasPrimary.Set(0)
}

// RecordDeadlineExceeded increments the cycle-deadline-exceeded counter.
func RecordDeadlineExceeded() { cycleDeadlineExceeded.Inc() }

// Server serves /metrics for a Prometheus scraper.
type Server struct {
	http *http.Server
}

// NewServer builds a metrics HTTP server bound to addr (e.g. ":9090").
func NewServer(addr string) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &Server{http: &http.Server{Addr: addr, Handler: mux}}
}

// Start runs the server in the background until ctx is cancelled.
func (s *Server) Start(ctx context.Context) {
	go func() {
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server exited", logger.F("error", err))
		}
	}()

	go func() {
		<-ctx.Done()
		_ = s.http.Shutdown(context.Background())
	}()
}
