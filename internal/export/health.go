package export

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// HealthConfig configures the Prometheus health metrics server.
type HealthConfig struct {
	// Enabled starts the metrics server. Off by default: the dashboard
	// is primarily an interactive tool.
	Enabled bool `yaml:"enabled"`

	// Addr is the listen address for the health metrics server.
	// Defaults to ":9090".
	Addr string `yaml:"addr"`
}

// HealthMetrics exposes Prometheus metrics for dashboard health. All
// metrics are labelled by endpoint name so multi-endpoint deployments
// stay distinguishable.
type HealthMetrics struct {
	log      logrus.FieldLogger
	addr     string
	server   *http.Server
	listener net.Listener
	registry *prometheus.Registry

	// Poll pipeline
	PollsTotal   *prometheus.CounterVec   // endpoint, status
	PollDuration *prometheus.HistogramVec // endpoint
	PollErrors   *prometheus.CounterVec   // endpoint, stage

	// Chain state
	BlockHeight        *prometheus.GaugeVec   // endpoint
	BlockHistoryLength *prometheus.GaugeVec   // endpoint
	BlocksFetched      *prometheus.CounterVec // endpoint
	GasPriceWei        *prometheus.GaugeVec   // endpoint
	NextBaseFeeWei     *prometheus.GaugeVec   // endpoint
	PeerCount          *prometheus.GaugeVec   // endpoint
	StaleTransitions   *prometheus.CounterVec // endpoint

	// Pool service
	PoolHealthy *prometheus.GaugeVec // endpoint
	PoolItems   *prometheus.GaugeVec // endpoint, resource

	running atomic.Bool
}

// NewHealthMetrics creates a new health metrics server.
func NewHealthMetrics(
	log logrus.FieldLogger,
	cfg HealthConfig,
) *HealthMetrics {
	reg := prometheus.NewRegistry()

	h := &HealthMetrics{
		log:      log.WithField("component", "health"),
		addr:     cfg.Addr,
		registry: reg,

		PollsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "watchoor",
			Name:      "polls_total",
			Help:      "Total poll cycles, by resulting connection status.",
		}, []string{"endpoint", "status"}),
		PollDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "watchoor",
			Name:      "poll_duration_seconds",
			Help:      "Wall time of one full poll cycle.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"endpoint"}),
		PollErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "watchoor",
			Name:      "poll_errors_total",
			Help:      "Total failed poll stages, by stage.",
		}, []string{"endpoint", "stage"}),

		BlockHeight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "watchoor",
			Name:      "block_height",
			Help:      "Latest block number reported by the endpoint.",
		}, []string{"endpoint"}),
		BlockHistoryLength: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "watchoor",
			Name:      "block_history_length",
			Help:      "Blocks currently held in the bounded history.",
		}, []string{"endpoint"}),
		BlocksFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "watchoor",
			Name:      "blocks_fetched_total",
			Help:      "Total blocks fetched into the history, including backfill.",
		}, []string{"endpoint"}),
		GasPriceWei: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "watchoor",
			Name:      "gas_price_wei",
			Help:      "Latest legacy gas price in wei.",
		}, []string{"endpoint"}),
		NextBaseFeeWei: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "watchoor",
			Name:      "next_base_fee_wei",
			Help:      "Estimated base fee of the next block in wei.",
		}, []string{"endpoint"}),
		PeerCount: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "watchoor",
			Name:      "peer_count",
			Help:      "Connected peer count reported by the endpoint.",
		}, []string{"endpoint"}),
		StaleTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "watchoor",
			Name:      "stale_transitions_total",
			Help:      "Times an endpoint was demoted from connected to stale.",
		}, []string{"endpoint"}),

		PoolHealthy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "watchoor",
			Name:      "pool_healthy",
			Help:      "Whether the last pool aggregation cycle fully succeeded.",
		}, []string{"endpoint"}),
		PoolItems: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "watchoor",
			Name:      "pool_items",
			Help:      "Cached item counts reported by the pool service.",
		}, []string{"endpoint", "resource"}),
	}

	reg.MustRegister(
		h.PollsTotal,
		h.PollDuration,
		h.PollErrors,
		h.BlockHeight,
		h.BlockHistoryLength,
		h.BlocksFetched,
		h.GasPriceWei,
		h.NextBaseFeeWei,
		h.PeerCount,
		h.StaleTransitions,
		h.PoolHealthy,
		h.PoolItems,
	)

	return h
}

// Start begins serving the /metrics endpoint.
func (h *HealthMetrics) Start(_ context.Context) error {
	if h.addr == "" {
		h.addr = ":9090"
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(
		h.registry,
		promhttp.HandlerOpts{},
	))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	// pprof endpoints for CPU/memory profiling.
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	ln, err := net.Listen("tcp", h.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", h.addr, err)
	}

	h.listener = ln

	h.server = &http.Server{
		Handler: mux,
	}

	h.running.Store(true)

	go func() {
		h.log.WithField("addr", ln.Addr().String()).
			Info("Health metrics server started")

		if err := h.server.Serve(ln); err != nil &&
			err != http.ErrServerClosed {
			h.log.WithError(err).
				Error("Health metrics server error")
		}

		h.running.Store(false)
	}()

	return nil
}

// Addr returns the actual listener address. Useful when started
// with ":0" to get the OS-assigned port.
func (h *HealthMetrics) Addr() string {
	if h.listener != nil {
		return h.listener.Addr().String()
	}

	return h.addr
}

// Stop gracefully shuts down the health metrics server.
func (h *HealthMetrics) Stop() error {
	if h.server == nil {
		return nil
	}

	return h.server.Close()
}
