package observe

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/conclave/internal/health"
)

// shutdownGrace bounds how long OpsServer.Shutdown waits for in-flight
// operational requests.
const shutdownGrace = 5 * time.Second

// OpsServer serves the operational HTTP surface on a sidecar port:
// /healthz and /readyz from [health.Handler] and /metrics from the
// Prometheus exporter bridge. The MCP protocol itself never touches this
// server.
type OpsServer struct {
	srv *http.Server
}

// NewOpsServer builds an OpsServer listening on addr. The given checkers
// drive /readyz; metrics instrument all three endpoints.
func NewOpsServer(addr string, m *Metrics, checkers ...health.Checker) *OpsServer {
	mux := http.NewServeMux()
	health.New(checkers...).Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	return &OpsServer{
		srv: &http.Server{
			Addr:              addr,
			Handler:           Middleware(m)(mux),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Start begins serving in a background goroutine. It returns an error only
// when the listener cannot be opened; serve-loop failures are logged.
func (o *OpsServer) Start() error {
	ln, err := net.Listen("tcp", o.srv.Addr)
	if err != nil {
		return err
	}
	slog.Info("operational endpoints listening", "addr", ln.Addr().String())
	go func() {
		if err := o.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("operational server failed", "err", err)
		}
	}()
	return nil
}

// Shutdown drains in-flight requests and closes the listener.
func (o *OpsServer) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownGrace)
	defer cancel()
	return o.srv.Shutdown(ctx)
}
