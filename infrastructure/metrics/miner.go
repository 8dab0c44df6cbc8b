package metrics

import (
	"github.com/nipopow/nipowd/domain/miner"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	minerHashrate = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "miner",
		Name:      "hashrate",
		Help:      "Last sampled hashrate of the miner, in hashes per second.",
	}, []string{"network"})

	minerWorking = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "miner",
		Name:      "working",
		Help:      "1 while the miner is working, 0 otherwise.",
	}, []string{"network"})

	minerBlocksMinedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "miner",
		Name:      "blocks_mined_total",
		Help:      "Count of blocks mined and accepted by the chain, by result.",
	}, []string{"network", "result"})
)

// Miner tracks metrics of a miner
type Miner struct {
	network string
}

// NewMiner constructs a Miner collector for the given network
func NewMiner(network string) *Miner {
	if network == "" {
		network = "unknown"
	}
	return &Miner{network: network}
}

// Observe records a miner event
func (m Miner) Observe(event *miner.Event) {
	switch event.Name {
	case miner.StartedEventName:
		minerWorking.WithLabelValues(m.network).Set(1)
	case miner.StoppedEventName:
		minerWorking.WithLabelValues(m.network).Set(0)
		minerHashrate.WithLabelValues(m.network).Set(0)
	case miner.HashrateChangedEventName:
		minerHashrate.WithLabelValues(m.network).Set(event.Hashrate)
	case miner.BlockMinedEventName:
		minerBlocksMinedTotal.WithLabelValues(m.network, event.Result.String()).Inc()
	}
}
