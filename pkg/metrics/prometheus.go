package metrics

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/echotype/echotype/pkg/logger"
)

// PrometheusConfig holds Prometheus server configuration
type PrometheusConfig struct {
	Enabled bool
	Port    int
	Path    string
}

// PrometheusHandler handles Prometheus metrics HTTP requests
type PrometheusHandler struct {
	collector *Collector
}

// NewPrometheusHandler creates a new Prometheus handler
func NewPrometheusHandler(collector *Collector) *PrometheusHandler {
	return &PrometheusHandler{
		collector: collector,
	}
}

// ServeHTTP handles HTTP requests for metrics
func (h *PrometheusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	var output strings.Builder

	// Connection metrics
	output.WriteString("# HELP echotype_connections_total Total number of transport connections\n")
	output.WriteString("# TYPE echotype_connections_total counter\n")
	output.WriteString(fmt.Sprintf("echotype_connections_total %d\n", h.collector.GetTotalConnections()))

	output.WriteString("# HELP echotype_connections_active Number of currently active connections\n")
	output.WriteString("# TYPE echotype_connections_active gauge\n")
	output.WriteString(fmt.Sprintf("echotype_connections_active %d\n", h.collector.GetActiveConnections()))

	// Message metrics, labelled by type
	types := h.collector.MessageTypesSeen()
	sort.Strings(types)

	output.WriteString("# HELP echotype_messages_received_total Total messages received by type\n")
	output.WriteString("# TYPE echotype_messages_received_total counter\n")
	for _, t := range types {
		output.WriteString(fmt.Sprintf("echotype_messages_received_total{type=%q} %d\n",
			t, h.collector.GetMessagesReceived(t)))
	}

	output.WriteString("# HELP echotype_messages_sent_total Total messages sent by type\n")
	output.WriteString("# TYPE echotype_messages_sent_total counter\n")
	for _, t := range types {
		output.WriteString(fmt.Sprintf("echotype_messages_sent_total{type=%q} %d\n",
			t, h.collector.GetMessagesSent(t)))
	}

	// Drop metrics
	output.WriteString("# HELP echotype_framing_drops_total Packets discarded by the reassembler\n")
	output.WriteString("# TYPE echotype_framing_drops_total counter\n")
	output.WriteString(fmt.Sprintf("echotype_framing_drops_total %d\n", h.collector.GetFramingDrops()))

	output.WriteString("# HELP echotype_decode_drops_total Malformed envelopes dropped\n")
	output.WriteString("# TYPE echotype_decode_drops_total counter\n")
	output.WriteString(fmt.Sprintf("echotype_decode_drops_total %d\n", h.collector.GetDecodeDrops()))

	output.WriteString("# HELP echotype_integrity_drops_total Messages dropped on checksum mismatch\n")
	output.WriteString("# TYPE echotype_integrity_drops_total counter\n")
	output.WriteString(fmt.Sprintf("echotype_integrity_drops_total %d\n", h.collector.GetIntegrityDrops()))

	output.WriteString("# HELP echotype_decrypt_drops_total Messages dropped on decryption failure\n")
	output.WriteString("# TYPE echotype_decrypt_drops_total counter\n")
	output.WriteString(fmt.Sprintf("echotype_decrypt_drops_total %d\n", h.collector.GetDecryptDrops()))

	output.WriteString("# HELP echotype_preauth_drops_total Sensitive messages dropped before authentication\n")
	output.WriteString("# TYPE echotype_preauth_drops_total counter\n")
	output.WriteString(fmt.Sprintf("echotype_preauth_drops_total %d\n", h.collector.GetPreAuthDrops()))

	// Pairing metrics
	output.WriteString("# HELP echotype_pair_requests_total Pairing requests received\n")
	output.WriteString("# TYPE echotype_pair_requests_total counter\n")
	output.WriteString(fmt.Sprintf("echotype_pair_requests_total %d\n", h.collector.GetPairRequests()))

	output.WriteString("# HELP echotype_pair_approvals_total Pairings approved\n")
	output.WriteString("# TYPE echotype_pair_approvals_total counter\n")
	output.WriteString(fmt.Sprintf("echotype_pair_approvals_total %d\n", h.collector.GetPairApprovals()))

	output.WriteString("# HELP echotype_pair_rejects_total Pairings rejected\n")
	output.WriteString("# TYPE echotype_pair_rejects_total counter\n")
	output.WriteString(fmt.Sprintf("echotype_pair_rejects_total %d\n", h.collector.GetPairRejects()))

	// Dictation metrics
	output.WriteString("# HELP echotype_words_buffered_total Words held for two-word look-ahead\n")
	output.WriteString("# TYPE echotype_words_buffered_total counter\n")
	output.WriteString(fmt.Sprintf("echotype_words_buffered_total %d\n", h.collector.GetWordsBuffered()))

	output.WriteString("# HELP echotype_words_flushed_total Buffered words flushed by timeout\n")
	output.WriteString("# TYPE echotype_words_flushed_total counter\n")
	output.WriteString(fmt.Sprintf("echotype_words_flushed_total %d\n", h.collector.GetWordsFlushed()))

	output.WriteString("# HELP echotype_text_typed_total Text injections performed\n")
	output.WriteString("# TYPE echotype_text_typed_total counter\n")
	output.WriteString(fmt.Sprintf("echotype_text_typed_total %d\n", h.collector.GetTextTyped()))

	output.WriteString("# HELP echotype_commands_executed_total Voice commands executed\n")
	output.WriteString("# TYPE echotype_commands_executed_total counter\n")
	output.WriteString(fmt.Sprintf("echotype_commands_executed_total %d\n", h.collector.GetCommandsExecuted()))

	w.Write([]byte(output.String()))
}

// PrometheusServer is an HTTP server for Prometheus metrics
type PrometheusServer struct {
	config    PrometheusConfig
	collector *Collector
	log       *logger.Logger
	server    *http.Server
}

// NewPrometheusServer creates a new Prometheus metrics server
func NewPrometheusServer(config PrometheusConfig, collector *Collector, log *logger.Logger) *PrometheusServer {
	if log == nil {
		log = logger.New(logger.Config{Level: "info", Format: "text"})
	}

	return &PrometheusServer{
		config:    config,
		collector: collector,
		log:       log.WithComponent("metrics"),
	}
}

// Start starts the Prometheus metrics server
func (s *PrometheusServer) Start(ctx context.Context) error {
	if !s.config.Enabled {
		s.log.Info("Prometheus metrics server disabled")
		return nil
	}

	handler := NewPrometheusHandler(s.collector)
	mux := http.NewServeMux()
	mux.Handle(s.config.Path, handler)

	// Use a listener to get the actual port (useful for testing with port 0)
	addr := fmt.Sprintf(":%d", s.config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	actualPort := listener.Addr().(*net.TCPAddr).Port

	s.server = &http.Server{
		Handler: mux,
	}

	s.log.Info("Starting Prometheus metrics server",
		logger.Int("port", actualPort),
		logger.String("path", s.config.Path))

	errChan := make(chan error, 1)
	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.log.Info("Shutting down Prometheus metrics server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("metrics server shutdown error: %w", err)
		}
		return ctx.Err()
	case err := <-errChan:
		return err
	}
}

// Stop stops the Prometheus metrics server
func (s *PrometheusServer) Stop() {
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.server.Shutdown(ctx)
	}
}
