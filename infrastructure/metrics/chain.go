package metrics

import (
	"time"

	"github.com/nipopow/nipowd/domain/consensus/model/externalapi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "nipowd"

var (
	chainPushTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "chain",
		Name:      "push_total",
		Help:      "Count of blocks pushed into the chain, by result.",
	}, []string{"network", "result"})

	chainPushDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "chain",
		Name:      "push_duration_seconds",
		Help:      "Duration of pushing a block into the chain.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"network", "result"})

	chainHeadHeight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "chain",
		Name:      "head_height",
		Help:      "Height of the head of the main chain.",
	}, []string{"network"})

	chainOrphanBlocks = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "chain",
		Name:      "orphan_blocks",
		Help:      "Number of orphan blocks waiting for their predecessor.",
	}, []string{"network"})

	chainReorgDepth = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "chain",
		Name:      "reorg_depth",
		Help:      "Number of main chain blocks reverted per rebranch.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
	}, []string{"network"})
)

// errorResult labels pushes that failed with an error that is not a rule error
const errorResult = "error"

// Chain tracks metrics of a chain
type Chain struct {
	network string
}

// NewChain constructs a Chain collector for the given network
func NewChain(network string) *Chain {
	if network == "" {
		network = "unknown"
	}
	return &Chain{network: network}
}

// ObservePush records the outcome and duration of a PushBlock call
func (m Chain) ObservePush(result externalapi.PushResult, err error, started time.Time) {
	resultLabel := result.String()
	if err != nil {
		resultLabel = errorResult
	}
	chainPushTotal.WithLabelValues(m.network, resultLabel).Inc()
	chainPushDuration.WithLabelValues(m.network, resultLabel).Observe(time.Since(started).Seconds())
}

// SetHead records the height of the head of the main chain
func (m Chain) SetHead(height uint64) {
	chainHeadHeight.WithLabelValues(m.network).Set(float64(height))
}

// SetOrphans records the number of orphan blocks
func (m Chain) SetOrphans(count int) {
	chainOrphanBlocks.WithLabelValues(m.network).Set(float64(count))
}

// ObserveReorg records a rebranch
func (m Chain) ObserveReorg(event *externalapi.ReorgEvent) {
	reverted := 0
	for _, step := range event.Steps {
		if step.Direction == externalapi.ReorgDirectionRevert {
			reverted++
		}
	}
	chainReorgDepth.WithLabelValues(m.network).Observe(float64(reverted))
}
