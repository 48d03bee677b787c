package observability

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsReadHeaderTimeout = 5 * time.Second

// MetricsServer exposes the provider's Prometheus registry on its own listener,
// apart from the public API.
type MetricsServer struct {
	server *http.Server
}

// NewMetricsServer serves the provider's registry at path on port. With a nil
// provider, or one with metrics disabled, every path answers 404.
func NewMetricsServer(port int, path string, provider *Provider) *MetricsServer {
	mux := http.NewServeMux()
	if provider.MetricsEnabled() {
		mux.Handle(path, scrapeHandler(provider))
	}

	return &MetricsServer{
		server: &http.Server{
			Addr:              net.JoinHostPort("", strconv.Itoa(port)),
			Handler:           mux,
			ReadHeaderTimeout: metricsReadHeaderTimeout,
		},
	}
}

// scrapeHandler serves the registry and counts its own scrapes in it
// (promhttp_metric_handler_requests_total).
func scrapeHandler(provider *Provider) http.Handler {
	reg := provider.registry
	return promhttp.InstrumentMetricHandler(reg, promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		ErrorLog:          slog.NewLogLogger(slog.Default().Handler(), slog.LevelError),
		ErrorHandling:     promhttp.ContinueOnError,
		EnableOpenMetrics: true,
	}))
}

// Handler returns the server's HTTP handler.
func (ms *MetricsServer) Handler() http.Handler {
	return ms.server.Handler
}

// Start serves until Shutdown, then returns http.ErrServerClosed.
func (ms *MetricsServer) Start() error {
	slog.Info("Starting metrics server", "addr", ms.server.Addr)
	return ms.server.ListenAndServe()
}

// Shutdown gracefully stops the metrics server.
func (ms *MetricsServer) Shutdown(ctx context.Context) error {
	return ms.server.Shutdown(ctx)
}
