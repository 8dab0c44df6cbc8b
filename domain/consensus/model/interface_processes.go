package model

import (
	"math/big"

	"github.com/nipopow/nipowd/domain/consensus/model/externalapi"
)

// BlockProcessor is responsible for processing incoming blocks
type BlockProcessor interface {
	ValidateAndInsertBlock(block *externalapi.DomainBlock) (*BlockInsertionResult, error)
	OrphanCount() int
}

// BlockInsertionResult is the outcome of BlockProcessor.ValidateAndInsertBlock
type BlockInsertionResult struct {
	Result externalapi.PushResult

	// RuleError is the reason a block was rejected or orphaned, if any
	RuleError error

	// Events are the chain events caused by the insertion, in commit order.
	// They include the effects of any orphans that were unlocked.
	Events []externalapi.ChainEvent
}

// BlockValidator exposes a set of validation classes, after which
// it's possible to determine whether a block is valid
type BlockValidator interface {
	ValidateBlockInIsolation(block *externalapi.DomainBlock) error
	ValidateProofOfWork(block *externalapi.DomainBlock) error
	ValidateBlockInContext(stagingArea *StagingArea, block *externalapi.DomainBlock) error
	ValidateBlockBody(block *externalapi.DomainBlock) error
}

// ChainManager applies validated blocks to the chain, choosing
// the heaviest branch and rebranching when needed
type ChainManager interface {
	AddBlock(stagingArea *StagingArea, blockHash *externalapi.DomainHash,
		block *externalapi.DomainBlock) (externalapi.PushResult, []externalapi.ChainEvent, error)
	AccountsTransactionAt(stagingArea *StagingArea, blockHash *externalapi.DomainHash) (AccountsTransaction, error)
}

// DifficultyManager provides a method to resolve the
// target of the block following a given block
type DifficultyManager interface {
	RequiredTarget(stagingArea *StagingArea, prevHash *externalapi.DomainHash) (*big.Int, error)
	RequiredBits(stagingArea *StagingArea, prevHash *externalapi.DomainHash) (uint32, error)
}

// PastMedianTimeManager provides a method to resolve the
// past median time of a block
type PastMedianTimeManager interface {
	PastMedianTime(stagingArea *StagingArea, blockHash *externalapi.DomainHash) (int64, error)
}

// InterlinkManager builds and inspects block interlinks
type InterlinkManager interface {
	NextInterlink(stagingArea *StagingArea, prevHash *externalapi.DomainHash,
		nextTarget *big.Int) (externalapi.BlockInterlink, error)
	HashDepth(blockHash *externalapi.DomainHash) int
	TargetDepth(target *big.Int) int
	SuperBlockDepth(blockHash *externalapi.DomainHash, bits uint32) int
}

// CoinbaseManager calculates block rewards
type CoinbaseManager interface {
	Subsidy(height uint64) uint64
	BlockReward(body *externalapi.DomainBlockBody, height uint64) (uint64, error)
}

// BlockBuilder is responsible for creating blocks from the current state
type BlockBuilder interface {
	BuildBlock(minerAddress externalapi.Address, transactions []*externalapi.DomainTransaction,
		extraData []byte) (*externalapi.DomainBlock, error)
}

// TestBlockBuilder adds to BlockBuilder the ability to build blocks on
// top of any stored block
type TestBlockBuilder interface {
	BlockBuilder
	BuildBlockOnBlock(prevHash *externalapi.DomainHash, minerAddress externalapi.Address,
		transactions []*externalapi.DomainTransaction, extraData []byte) (*externalapi.DomainBlock, error)
}
