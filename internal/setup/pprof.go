package setup

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"time"

	"go.uber.org/zap"
)

// pprofServer is the optional localhost-only profiling endpoint. It carries
// its own mux so enabling it never leaks pprof routes into the whitelist
// server.
type pprofServer struct {
	srv      *http.Server
	listener net.Listener
	logger   *zap.Logger
}

// startPprofServer binds the profiling server to localhost on the configured
// port and serves in the background.
func startPprofServer(port int, logger *zap.Logger) (*pprofServer, error) {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	addr := fmt.Sprintf("localhost:%d", port)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to bind pprof listener: %w", err)
	}

	s := &pprofServer{
		srv: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       time.Minute,
		},
		listener: listener,
		logger:   logger.Named("pprof"),
	}

	go func() {
		s.logger.Info("Serving pprof", zap.String("address", addr))

		if err := s.srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Pprof server failed", zap.Error(err))
		}
	}()

	return s, nil
}

func (s *pprofServer) shutdown(ctx context.Context) {
	if err := s.srv.Shutdown(ctx); err != nil {
		s.logger.Error("Failed to shutdown pprof server", zap.Error(err))
	}
}
