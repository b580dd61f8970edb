// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ParkHaven Contributors

// Package observability provides HTTP endpoints for metrics and health checks.
package observability

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/oops"
)

// ReadinessChecker returns whether the service is ready to accept connections.
type ReadinessChecker func() bool

// Package-level metrics let queue and relay code record events without
// holding a Server reference. They are registered by NewMetrics.
var (
	queueJoins = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parkhaven_queue_joins_total",
			Help: "Total number of successful queue joins by queue",
		},
		[]string{"queue"},
	)
	queueLeaves = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parkhaven_queue_leaves_total",
			Help: "Total number of queue leaves by queue, voluntary or evicted",
		},
		[]string{"queue"},
	)
	holdingEvictions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parkhaven_holding_evictions_total",
			Help: "Total number of members evicted for missing the confirmation window",
		},
		[]string{"queue"},
	)
	admissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parkhaven_admissions_total",
			Help: "Total number of members admitted to a ride by queue",
		},
		[]string{"queue"},
	)
	relayMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parkhaven_relay_messages_total",
			Help: "Total number of relay messages by direction and kind",
		},
		[]string{"direction", "kind"},
	)
	queueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "parkhaven_queue_depth",
			Help: "Current number of members waiting in a queue",
		},
		[]string{"queue"},
	)
	commandOutputFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parkhaven_command_output_failures_total",
			Help: "Total number of command output write failures by command",
		},
		[]string{"command"},
	)
)

// RecordQueueJoin increments the join counter for a queue.
func RecordQueueJoin(queue string) {
	queueJoins.WithLabelValues(queue).Inc()
}

// RecordQueueLeave increments the leave counter for a queue.
func RecordQueueLeave(queue string) {
	queueLeaves.WithLabelValues(queue).Inc()
}

// RecordHoldingEviction increments the holding-window eviction counter.
func RecordHoldingEviction(queue string) {
	holdingEvictions.WithLabelValues(queue).Inc()
}

// RecordAdmission increments the ride admission counter for a queue.
func RecordAdmission(queue string) {
	admissions.WithLabelValues(queue).Inc()
}

// RecordRelayMessage counts a relay message. Direction is "in" or "out".
func RecordRelayMessage(direction, kind string) {
	relayMessages.WithLabelValues(direction, kind).Inc()
}

// SetQueueDepth records the current member count for a queue.
func SetQueueDepth(queue string, depth int) {
	queueDepth.WithLabelValues(queue).Set(float64(depth))
}

// Metrics holds the registered ParkHaven metrics. Handlers record through
// the package-level functions; the struct exists so tests can scrape the
// collectors directly.
type Metrics struct {
	QueueJoins       *prometheus.CounterVec
	QueueLeaves      *prometheus.CounterVec
	HoldingEvictions *prometheus.CounterVec
	Admissions       *prometheus.CounterVec
	RelayMessages    *prometheus.CounterVec
	QueueDepth       *prometheus.GaugeVec
}

// NewMetrics registers the ParkHaven metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		QueueJoins:       queueJoins,
		QueueLeaves:      queueLeaves,
		HoldingEvictions: holdingEvictions,
		Admissions:       admissions,
		RelayMessages:    relayMessages,
		QueueDepth:       queueDepth,
	}

	reg.MustRegister(queueJoins)
	reg.MustRegister(queueLeaves)
	reg.MustRegister(holdingEvictions)
	reg.MustRegister(admissions)
	reg.MustRegister(relayMessages)
	reg.MustRegister(queueDepth)
	reg.MustRegister(commandOutputFailures)

	return m
}

// RecordCommandOutputFailure increments the command output failure counter.
// Called by command handlers when output write fails.
func RecordCommandOutputFailure(command string) {
	commandOutputFailures.WithLabelValues(command).Inc()
}

// Server provides HTTP endpoints for observability (metrics and health probes).
type Server struct {
	addr       string
	listener   net.Listener
	httpServer *http.Server
	registry   *prometheus.Registry
	metrics    *Metrics
	isReady    ReadinessChecker
	running    atomic.Bool
}

// NewServer creates a new observability server.
// addr: listen address in "host:port" format (e.g., "127.0.0.1:9100", ":9100" for all interfaces).
func NewServer(addr string, readinessChecker ReadinessChecker) *Server {
	// Create a new registry to avoid polluting the global one
	registry := prometheus.NewRegistry()

	// Register standard Go metrics
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	metrics := NewMetrics(registry)

	return &Server{
		addr:     addr,
		registry: registry,
		metrics:  metrics,
		isReady:  readinessChecker,
	}
}

// Metrics returns the registered metrics.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Start begins serving observability endpoints.
// It returns an error channel that will receive any errors from the HTTP server
// after it starts. The channel is closed when the server stops gracefully.
// Callers should monitor this channel to detect server failures.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Errorf("observability server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.With("addr", s.addr).Wrap(err)
	}
	s.listener = listener

	mux := http.NewServeMux()

	// Prometheus metrics endpoint
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))

	// Kubernetes-style health probes
	mux.HandleFunc("/healthz/liveness", s.handleLiveness)
	mux.HandleFunc("/healthz/readiness", s.handleReadiness)

	httpSrv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = httpSrv

	// Create buffered error channel so the goroutine doesn't block
	errCh := make(chan error, 1)

	go func() {
		defer close(errCh)
		// Use local httpSrv to avoid race with subsequent Start() calls
		if serveErr := httpSrv.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			slog.Error("observability server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	slog.Info("observability server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop gracefully shuts down the observability server.
func (s *Server) Stop(ctx context.Context) error {
	// Use CompareAndSwap to atomically transition from running to stopped.
	// This prevents a race where a concurrent Start() could succeed between
	// checking the running state and setting it to false.
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			// Restore running state on failure so the server can be stopped again
			s.running.Store(true)
			return oops.With("operation", "shutdown_observability_server").Wrap(err)
		}
	}

	slog.Info("observability server stopped")
	return nil
}

// Addr returns the address the server is listening on.
// Returns empty string if not running.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

// handleLiveness returns 200 if the process is running.
func (s *Server) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // health check write error is acceptable, client may disconnect
	w.Write([]byte("ok\n"))
}

// handleReadiness returns 200 if the service is ready to accept connections,
// or 503 if not ready.
func (s *Server) handleReadiness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	if s.isReady == nil || s.isReady() {
		w.WriteHeader(http.StatusOK)
		//nolint:errcheck // health check write error is acceptable, client may disconnect
		w.Write([]byte("ok\n"))
		return
	}

	w.WriteHeader(http.StatusServiceUnavailable)
	//nolint:errcheck // health check write error is acceptable, client may disconnect
	w.Write([]byte("not ready\n"))
}
