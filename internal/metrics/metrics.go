package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nao1215/imagecrawl/internal/model"
)

const namespace = "imagecrawl"

// Metrics holds the crawl collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	candidates   *prometheus.CounterVec
	pages        *prometheus.CounterVec
	terms        *prometheus.CounterVec
	pageDuration *prometheus.HistogramVec
}

// New creates and registers the crawl collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		candidates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "candidates_total",
				Help:      "Image candidates processed, labeled by classification and outcome.",
			},
			[]string{"classification", "outcome"},
		),
		pages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pages_total",
				Help:      "Search result pages fetched, labeled by classification.",
			},
			[]string{"classification"},
		),
		terms: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "terms_total",
				Help:      "Search terms finished, labeled by terminal state.",
			},
			[]string{"state"},
		),
		pageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "page_duration_seconds",
				Help:      "Time to query one page and process all of its candidates.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"classification"},
		),
	}

	m.registry.MustRegister(
		m.candidates,
		m.pages,
		m.terms,
		m.pageDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// CandidateProcessed counts one candidate outcome.
func (m *Metrics) CandidateProcessed(class model.Classification, outcome model.Outcome) {
	m.candidates.WithLabelValues(class.String(), outcome.String()).Inc()
}

// PageFetched counts one search page and records how long it took.
func (m *Metrics) PageFetched(class model.Classification, elapsed time.Duration) {
	m.pages.WithLabelValues(class.String()).Inc()
	m.pageDuration.WithLabelValues(class.String()).Observe(elapsed.Seconds())
}

// TermFinished counts one term reaching a terminal state.
func (m *Metrics) TermFinished(state model.TermState) {
	m.terms.WithLabelValues(state.String()).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return m.serve(ctx, ln, logger)
}

func (m *Metrics) serve(ctx context.Context, ln net.Listener, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx) //nolint:errcheck // best effort on exit
	}()

	logger.Info("exposing Prometheus metrics", "address", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
