package blockvalidator

import (
	"math/big"
	"time"

	"github.com/nipopow/nipowd/domain/consensus/model"
)

// blockValidator exposes a set of validation classes, after which
// it's possible to determine whether a block is valid
type blockValidator struct {
	powMax                    *big.Int
	skipPoW                   bool
	blockVersion              uint16
	maxBlockSize              int
	maxExtraDataSize          int
	transactionValidityWindow uint64
	maxTimestampDrift         time.Duration

	databaseContext       model.DBReader
	difficultyManager     model.DifficultyManager
	pastMedianTimeManager model.PastMedianTimeManager
	interlinkManager      model.InterlinkManager

	blockStore     model.BlockStore
	chainDataStore model.ChainDataStore
}

// New instantiates a new BlockValidator
func New(powMax *big.Int,
	skipPoW bool,
	blockVersion uint16,
	maxBlockSize int,
	maxExtraDataSize int,
	transactionValidityWindow uint64,
	maxTimestampDrift time.Duration,

	databaseContext model.DBReader,
	difficultyManager model.DifficultyManager,
	pastMedianTimeManager model.PastMedianTimeManager,
	interlinkManager model.InterlinkManager,

	blockStore model.BlockStore,
	chainDataStore model.ChainDataStore) model.BlockValidator {

	return &blockValidator{
		powMax:                    powMax,
		skipPoW:                   skipPoW,
		blockVersion:              blockVersion,
		maxBlockSize:              maxBlockSize,
		maxExtraDataSize:          maxExtraDataSize,
		transactionValidityWindow: transactionValidityWindow,
		maxTimestampDrift:         maxTimestampDrift,

		databaseContext:       databaseContext,
		difficultyManager:     difficultyManager,
		pastMedianTimeManager: pastMedianTimeManager,
		interlinkManager:      interlinkManager,

		blockStore:     blockStore,
		chainDataStore: chainDataStore,
	}
}
