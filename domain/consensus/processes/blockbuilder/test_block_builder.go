package blockbuilder

import (
	"github.com/nipopow/nipowd/domain/consensus/model"
	"github.com/nipopow/nipowd/domain/consensus/model/externalapi"
	"github.com/nipopow/nipowd/infrastructure/logger"
)

type testBlockBuilder struct {
	*blockBuilder
}

// NewTestBlockBuilder creates an instance of a TestBlockBuilder
func NewTestBlockBuilder(baseBlockBuilder model.BlockBuilder) model.TestBlockBuilder {
	return &testBlockBuilder{blockBuilder: baseBlockBuilder.(*blockBuilder)}
}

// BuildBlockOnBlock builds a block template on top of prevHash, which may be
// any stored block, including one on a fork.
func (bb *testBlockBuilder) BuildBlockOnBlock(prevHash *externalapi.DomainHash, minerAddress externalapi.Address,
	transactions []*externalapi.DomainTransaction, extraData []byte) (*externalapi.DomainBlock, error) {

	onEnd := logger.LogAndMeasureExecutionTime(log, "BuildBlockOnBlock")
	defer onEnd()

	return bb.buildBlockOnBlock(model.NewStagingArea(), prevHash, minerAddress, transactions, extraData)
}
