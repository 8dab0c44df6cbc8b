package metrics

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/nipopow/nipowd/util/panics"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server serves the collected metrics over HTTP at /metrics
type Server struct {
	listenAddress string
	server        *http.Server
}

// NewServer creates a metrics server listening on listenAddress
func NewServer(listenAddress string) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &Server{
		listenAddress: listenAddress,
		server: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Start starts listening. It returns once the listener is bound.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.listenAddress)
	if err != nil {
		return errors.Wrapf(err, "error listening on %s", s.listenAddress)
	}

	spawn("metrics.Server.Serve", func() {
		err := s.server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			panics.Exit(log, fmt.Sprintf("error serving metrics on %s: %+v", s.listenAddress, err))
		}
	})

	log.Infof("Metrics server listening on %s", listener.Addr())
	return nil
}

// Stop shuts the server down, waiting up to two seconds for requests in flight
func (s *Server) Stop() error {
	const stopTimeout = 2 * time.Second

	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	err := s.server.Shutdown(ctx)
	if err != nil {
		log.Warnf("Could not gracefully stop the metrics server: %s", err)
		return s.server.Close()
	}
	return nil
}
