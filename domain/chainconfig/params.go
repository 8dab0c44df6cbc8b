// Copyright (c) 2014-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chainconfig

import (
	"math/big"
	"time"

	"github.com/pkg/errors"
)

// These variables are the chain proof-of-work limit parameters for each default
// network.
var (
	// bigOne is 1 represented as a big.Int. It is defined here to avoid
	// the overhead of creating it multiple times.
	bigOne = big.NewInt(1)

	// mainPowMax is the highest proof of work value a block can
	// have for the main network. It is the value 2^240 - 1.
	mainPowMax = new(big.Int).Sub(new(big.Int).Lsh(bigOne, 240), bigOne)

	// testnetPowMax is the highest proof of work value a block can
	// have for the test network. It is the value 2^240 - 1.
	testnetPowMax = new(big.Int).Sub(new(big.Int).Lsh(bigOne, 240), bigOne)

	// simnetPowMax is the highest proof of work value a block can
	// have for the simulation test network. It is the value 2^255 - 1.
	simnetPowMax = new(big.Int).Sub(new(big.Int).Lsh(bigOne, 255), bigOne)

	// devnetPowMax is the highest proof of work value a block can
	// have for the development network. It is the value 2^255 - 1.
	devnetPowMax = new(big.Int).Sub(new(big.Int).Lsh(bigOne, 255), bigOne)
)

const (
	defaultTargetTimePerBlock             = time.Minute
	defaultDifficultyAdjustmentWindowSize = 120
	defaultMaxDifficultyAdjustmentFactor  = 2
	defaultPastMedianTimeWindow           = 11
	defaultMaxTimestampDrift              = 10 * time.Minute
	defaultMaxBlockSize                   = 100_000
	defaultMaxExtraDataSize               = 255
	defaultTransactionValidityWindow      = 120
	defaultMaxOrphanBlocks                = 100
	defaultOrphanExpiration               = time.Hour
	defaultKnownInvalidCacheSize          = 1000
	defaultSubsidyReductionInterval       = 210_000

	// SatoshisPerCoin is the number of the smallest units in one coin
	SatoshisPerCoin = 100_000_000
)

// Params defines a network by its parameters. These parameters may be
// used by applications to differentiate networks as well as addresses
// and keys for one network from those intended for use on another network.
type Params struct {
	// Name defines a human-readable identifier for the network.
	Name string

	// RPCPort defines the rpc server port
	RPCPort string

	// Prefix is the bech32 human readable part of addresses on this network
	Prefix string

	// Genesis describes the first block of the chain. The genesis block
	// itself is sealed from it when the chain is created, since its
	// header commits to the accounts tree root of the allocations.
	Genesis *GenesisTemplate

	// BlockVersion is the header version of every block on this network
	BlockVersion uint16

	// PowMax defines the highest allowed proof of work value for a block
	// as a uint256.
	PowMax *big.Int

	// SkipProofOfWork indicates whether proof of work should be checked.
	SkipProofOfWork bool

	// TargetTimePerBlock is the desired amount of time to generate each
	// block.
	TargetTimePerBlock time.Duration

	// DifficultyAdjustmentWindowSize is the number of blocks whose targets
	// and timestamps are averaged when calculating the next target
	DifficultyAdjustmentWindowSize uint64

	// MaxDifficultyAdjustmentFactor bounds how much the target may move
	// in a single retarget, in either direction
	MaxDifficultyAdjustmentFactor uint64

	// PastMedianTimeWindow is the number of blocks whose median timestamp
	// a new block's timestamp must exceed
	PastMedianTimeWindow int

	// MaxTimestampDrift is how far into the future a block timestamp
	// may be
	MaxTimestampDrift time.Duration

	// MaxBlockSize is the maximum size in bytes of a serialized block
	MaxBlockSize int

	// MaxExtraDataSize is the maximum size of a block's extra data
	MaxExtraDataSize int

	// TransactionValidityWindow is the number of blocks, starting at its
	// validity start height, in which a transaction may be included
	TransactionValidityWindow uint64

	// BaseSubsidy is the reward of a block before any reduction
	BaseSubsidy uint64

	// SubsidyReductionInterval is the interval of blocks before the subsidy
	// is reduced.
	SubsidyReductionInterval uint64

	// MaxOrphanBlocks is the maximum number of orphan blocks kept in memory
	MaxOrphanBlocks int

	// OrphanExpiration is how long an orphan block is kept in memory
	OrphanExpiration time.Duration

	// KnownInvalidCacheSize is the number of rejected block hashes that
	// are remembered so their descendants are rejected too
	KnownInvalidCacheSize int
}

// Validate returns an error if the parameters are not self-consistent
func (p *Params) Validate() error {
	if p.PowMax == nil || p.PowMax.Sign() <= 0 {
		return errors.Errorf("%s: powMax must be positive", p.Name)
	}
	if p.TargetTimePerBlock < time.Millisecond {
		return errors.Errorf("%s: targetTimePerBlock must be at least one millisecond", p.Name)
	}
	if p.DifficultyAdjustmentWindowSize == 0 {
		return errors.Errorf("%s: difficultyAdjustmentWindowSize must be positive", p.Name)
	}
	if p.MaxDifficultyAdjustmentFactor < 1 {
		return errors.Errorf("%s: maxDifficultyAdjustmentFactor must be at least 1", p.Name)
	}
	if p.PastMedianTimeWindow <= 0 {
		return errors.Errorf("%s: pastMedianTimeWindow must be positive", p.Name)
	}
	if p.MaxOrphanBlocks <= 0 {
		return errors.Errorf("%s: maxOrphanBlocks must be positive", p.Name)
	}
	if p.KnownInvalidCacheSize <= 0 {
		return errors.Errorf("%s: knownInvalidCacheSize must be positive", p.Name)
	}
	if p.Genesis == nil {
		return errors.Errorf("%s: missing genesis", p.Name)
	}
	return nil
}

// MaxTransactionsPerBlock returns the number of transactions that fit into
// a block whose extra data is empty
func (p *Params) MaxTransactionsPerBlock(headerSize, transactionSize int) int {
	const minerAddressSize = 20
	return (p.MaxBlockSize - headerSize - minerAddressSize) / transactionSize
}

// MainnetParams defines the network parameters for the main network.
var MainnetParams = Params{
	Name:    "mainnet",
	RPCPort: "16610",
	Prefix:  "nipow",

	Genesis:      &mainnetGenesis,
	BlockVersion: 1,

	PowMax:                         mainPowMax,
	TargetTimePerBlock:             defaultTargetTimePerBlock,
	DifficultyAdjustmentWindowSize: defaultDifficultyAdjustmentWindowSize,
	MaxDifficultyAdjustmentFactor:  defaultMaxDifficultyAdjustmentFactor,
	PastMedianTimeWindow:           defaultPastMedianTimeWindow,
	MaxTimestampDrift:              defaultMaxTimestampDrift,
	MaxBlockSize:                   defaultMaxBlockSize,
	MaxExtraDataSize:               defaultMaxExtraDataSize,
	TransactionValidityWindow:      defaultTransactionValidityWindow,
	BaseSubsidy:                    50 * SatoshisPerCoin,
	SubsidyReductionInterval:       defaultSubsidyReductionInterval,
	MaxOrphanBlocks:                defaultMaxOrphanBlocks,
	OrphanExpiration:               defaultOrphanExpiration,
	KnownInvalidCacheSize:          defaultKnownInvalidCacheSize,
}

// TestnetParams defines the network parameters for the test network.
var TestnetParams = Params{
	Name:    "testnet",
	RPCPort: "16710",
	Prefix:  "nipowtest",

	Genesis:      &testnetGenesis,
	BlockVersion: 1,

	PowMax:                         testnetPowMax,
	TargetTimePerBlock:             defaultTargetTimePerBlock,
	DifficultyAdjustmentWindowSize: defaultDifficultyAdjustmentWindowSize,
	MaxDifficultyAdjustmentFactor:  defaultMaxDifficultyAdjustmentFactor,
	PastMedianTimeWindow:           defaultPastMedianTimeWindow,
	MaxTimestampDrift:              defaultMaxTimestampDrift,
	MaxBlockSize:                   defaultMaxBlockSize,
	MaxExtraDataSize:               defaultMaxExtraDataSize,
	TransactionValidityWindow:      defaultTransactionValidityWindow,
	BaseSubsidy:                    50 * SatoshisPerCoin,
	SubsidyReductionInterval:       defaultSubsidyReductionInterval,
	MaxOrphanBlocks:                defaultMaxOrphanBlocks,
	OrphanExpiration:               defaultOrphanExpiration,
	KnownInvalidCacheSize:          defaultKnownInvalidCacheSize,
}

// SimnetParams defines the network parameters for the simulation test network.
// This network is similar to the normal test network except it is
// intended for private use within a group of individuals doing simulation
// testing. The functionality is intended to differ in that the only nodes
// which are specifically specified are used to create the network rather than
// following normal discovery rules. This is important as otherwise it would
// just turn into another public testnet.
var SimnetParams = Params{
	Name:    "simnet",
	RPCPort: "16810",
	Prefix:  "nipowsim",

	Genesis:      &simnetGenesis,
	BlockVersion: 1,

	PowMax:                         simnetPowMax,
	TargetTimePerBlock:             time.Second,
	DifficultyAdjustmentWindowSize: defaultDifficultyAdjustmentWindowSize,
	MaxDifficultyAdjustmentFactor:  defaultMaxDifficultyAdjustmentFactor,
	PastMedianTimeWindow:           defaultPastMedianTimeWindow,
	MaxTimestampDrift:              defaultMaxTimestampDrift,
	MaxBlockSize:                   defaultMaxBlockSize,
	MaxExtraDataSize:               defaultMaxExtraDataSize,
	TransactionValidityWindow:      defaultTransactionValidityWindow,
	BaseSubsidy:                    50 * SatoshisPerCoin,
	SubsidyReductionInterval:       150,
	MaxOrphanBlocks:                defaultMaxOrphanBlocks,
	OrphanExpiration:               defaultOrphanExpiration,
	KnownInvalidCacheSize:          defaultKnownInvalidCacheSize,
}

// DevnetParams defines the network parameters for the development network.
var DevnetParams = Params{
	Name:    "devnet",
	RPCPort: "16910",
	Prefix:  "nipowdev",

	Genesis:      &devnetGenesis,
	BlockVersion: 1,

	PowMax:                         devnetPowMax,
	TargetTimePerBlock:             defaultTargetTimePerBlock,
	DifficultyAdjustmentWindowSize: defaultDifficultyAdjustmentWindowSize,
	MaxDifficultyAdjustmentFactor:  defaultMaxDifficultyAdjustmentFactor,
	PastMedianTimeWindow:           defaultPastMedianTimeWindow,
	MaxTimestampDrift:              defaultMaxTimestampDrift,
	MaxBlockSize:                   defaultMaxBlockSize,
	MaxExtraDataSize:               defaultMaxExtraDataSize,
	TransactionValidityWindow:      defaultTransactionValidityWindow,
	BaseSubsidy:                    50 * SatoshisPerCoin,
	SubsidyReductionInterval:       defaultSubsidyReductionInterval,
	MaxOrphanBlocks:                defaultMaxOrphanBlocks,
	OrphanExpiration:               defaultOrphanExpiration,
	KnownInvalidCacheSize:          defaultKnownInvalidCacheSize,
}
