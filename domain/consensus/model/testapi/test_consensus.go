package testapi

import (
	"github.com/nipopow/nipowd/domain/chainconfig"
	"github.com/nipopow/nipowd/domain/consensus/model"
	"github.com/nipopow/nipowd/domain/consensus/model/externalapi"
	"github.com/nipopow/nipowd/domain/consensus/utils/testutils"
)

// BlockOptions overrides parts of a block built by TestConsensus. Every
// field left unset is filled the way a valid block on PrevHash would have it.
type BlockOptions struct {
	PrevHash     *externalapi.DomainHash
	MinerAddress *externalapi.Address
	ExtraData    []byte

	// Transactions are generated from the test users when nil
	Transactions    []*externalapi.DomainTransaction
	NumTransactions *int

	Interlink          externalapi.BlockInterlink
	Version            *uint16
	InterlinkHash      *externalapi.DomainHash
	BodyHash           *externalapi.DomainHash
	AccountsHash       *externalapi.DomainHash
	Bits               *uint32
	Height             *uint64
	TimeInMilliseconds *int64

	// The block is mined when Nonce is nil, unless proof of work is skipped
	Nonce *uint64
}

// TestConsensus wraps the Consensus interface with some methods that are needed by tests only
type TestConsensus interface {
	externalapi.Consensus

	Params() *chainconfig.Params
	DatabaseContext() model.DBManager
	Users() []*testutils.TestUser

	// BuildBlockWithOptions builds a block the way a well-behaved miner
	// would, except for what options overrides
	BuildBlockWithOptions(options *BlockOptions) (*externalapi.DomainBlock, error)

	// GenerateTransactions returns up to numTransactions transactions that
	// are valid on top of prevHash. User j sends a tenth of its balance,
	// plus half of that as fee, to user j+1.
	GenerateTransactions(prevHash *externalapi.DomainHash, numTransactions int) ([]*externalapi.DomainTransaction, error)

	// MineBlock solves block with the miner worker pool
	MineBlock(block *externalapi.DomainBlock) (*externalapi.DomainBlock, error)

	// AddBlock builds a block on prevHash, solves it and pushes it.
	// It fails if the block is not stored.
	AddBlock(prevHash *externalapi.DomainHash) (*externalapi.DomainHash, externalapi.PushResult, error)

	// ExtendChain adds numBlocks blocks on top of the head
	ExtendChain(numBlocks int) error

	BlockStore() model.BlockStore
	ChainDataStore() model.ChainDataStore
	AccountsTree() model.AccountsTree

	BlockBuilder() model.TestBlockBuilder
	BlockProcessor() model.BlockProcessor
	BlockValidator() model.BlockValidator
	ChainManager() model.ChainManager
	CoinbaseManager() model.CoinbaseManager
	DifficultyManager() model.DifficultyManager
	InterlinkManager() model.InterlinkManager
	PastMedianTimeManager() model.PastMedianTimeManager
}
