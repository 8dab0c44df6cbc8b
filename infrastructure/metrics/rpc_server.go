package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	rpcServerRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "rpc_server",
		Name:      "requests_total",
		Help:      "Count of RPC requests served.",
	}, []string{"method", "status"})

	rpcServerRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "rpc_server",
		Name:      "request_duration_seconds",
		Help:      "Duration of serving an RPC request.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "status"})
)

// RPCServer tracks metrics of the requests served by the RPC server
type RPCServer struct{}

// NewRPCServer constructs an RPCServer collector
func NewRPCServer() *RPCServer {
	return &RPCServer{}
}

// Observe records a single RPC request outcome and duration
func (m RPCServer) Observe(method string, err error, started time.Time) {
	status := "success"
	if err != nil {
		status = "error"
	}
	rpcServerRequestsTotal.WithLabelValues(method, status).Inc()
	rpcServerRequestDuration.WithLabelValues(method, status).Observe(time.Since(started).Seconds())
}
