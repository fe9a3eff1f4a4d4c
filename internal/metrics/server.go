package metrics

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	gethprom "github.com/ethereum/go-ethereum/metrics/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ethereum/go-ethereum/log"
)

// Server exposes the Registry on prometheus_port (§4.6, §6). "/metrics"
// carries the chain-level series, merging the counters and gauges
// bridged from the go-ethereum registry with the bucketed histograms
// registered directly against client_golang (block_time, fees_by_tx,
// transaction_batch_size); "/metrics/go" carries the Go process/runtime
// collectors promhttp registers by default, giving operators process
// health alongside chain health on the same exporter.
type Server struct {
	httpServer *http.Server
}

// NewServer builds (but does not start) the exporter for the given port.
func NewServer(port int, registry *Registry) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", mergeHandlers(
		gethprom.Handler(registry.Backing()),
		promhttp.HandlerFor(registry.PromRegistry(), promhttp.HandlerOpts{}),
	))
	mux.Handle("/metrics/go", promhttp.Handler())
	return &Server{httpServer: &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}}
}

// bufferedResponseWriter captures a handler's output instead of writing
// it straight to the client, so mergeHandlers can concatenate several
// handlers' text exposition onto one response.
type bufferedResponseWriter struct {
	header http.Header
	body   bytes.Buffer
	status int
}

func newBufferedResponseWriter() *bufferedResponseWriter {
	return &bufferedResponseWriter{header: make(http.Header)}
}

func (w *bufferedResponseWriter) Header() http.Header { return w.header }

func (w *bufferedResponseWriter) Write(b []byte) (int, error) { return w.body.Write(b) }

func (w *bufferedResponseWriter) WriteHeader(status int) { w.status = status }

// mergeHandlers concatenates the Prometheus text exposition of every
// handler onto a single response. Each handler is given its own request
// clone so neither observes the other writing to it.
func mergeHandlers(handlers ...http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		for _, h := range handlers {
			buf := newBufferedResponseWriter()
			h.ServeHTTP(buf, r.Clone(r.Context()))
			w.Write(buf.body.Bytes())
		}
	}
}

// Serve runs the exporter until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info("Starting metrics exporter", "addr", s.httpServer.Addr)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
