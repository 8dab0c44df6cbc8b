package metrics

import (
	"time"

	"github.com/nipopow/nipowd/domain/consensus/model/externalapi"
)

type instrumentedConsensus struct {
	externalapi.Consensus
	metrics *Chain
}

// InstrumentConsensus returns consensus with its pushes, head, orphans
// and rebranches recorded by a Chain collector for network
func InstrumentConsensus(consensus externalapi.Consensus, network string) externalapi.Consensus {
	metrics := NewChain(network)
	metrics.SetHead(consensus.HeadHeight())
	consensus.Subscribe(externalapi.ReorgEventName, func(event externalapi.ChainEvent) {
		metrics.ObserveReorg(event.(*externalapi.ReorgEvent))
	})
	return &instrumentedConsensus{
		Consensus: consensus,
		metrics:   metrics,
	}
}

func (c *instrumentedConsensus) PushBlock(block *externalapi.DomainBlock) (externalapi.PushResult, error) {
	result, _, err := c.PushBlockWithReason(block)
	return result, err
}

func (c *instrumentedConsensus) PushBlockWithReason(block *externalapi.DomainBlock) (
	externalapi.PushResult, error, error) {

	started := time.Now()
	result, ruleErr, err := c.Consensus.PushBlockWithReason(block)
	c.metrics.ObservePush(result, err, started)
	c.metrics.SetHead(c.Consensus.HeadHeight())
	c.metrics.SetOrphans(c.Consensus.OrphanCount())
	return result, ruleErr, err
}
