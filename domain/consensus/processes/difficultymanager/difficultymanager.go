package difficultymanager

import (
	"math/big"
	"time"

	"github.com/nipopow/nipowd/domain/consensus/model"
	"github.com/nipopow/nipowd/domain/consensus/model/externalapi"
	"github.com/nipopow/nipowd/domain/consensus/utils/difficulty"
)

// difficultyManager provides a method to resolve the
// target of the block following a given block
type difficultyManager struct {
	powMax                         *big.Int
	genesisTimeInMilliseconds      int64
	targetTimePerBlock             time.Duration
	difficultyAdjustmentWindowSize uint64
	maxDifficultyAdjustmentFactor  uint64

	databaseContext model.DBReader
	blockStore      model.BlockStore
}

// New instantiates a new DifficultyManager
func New(powMax *big.Int,
	genesisTimeInMilliseconds int64,
	targetTimePerBlock time.Duration,
	difficultyAdjustmentWindowSize uint64,
	maxDifficultyAdjustmentFactor uint64,
	databaseContext model.DBReader,
	blockStore model.BlockStore) model.DifficultyManager {

	return &difficultyManager{
		powMax:                         powMax,
		genesisTimeInMilliseconds:      genesisTimeInMilliseconds,
		targetTimePerBlock:             targetTimePerBlock,
		difficultyAdjustmentWindowSize: difficultyAdjustmentWindowSize,
		maxDifficultyAdjustmentFactor:  maxDifficultyAdjustmentFactor,
		databaseContext:                databaseContext,
		blockStore:                     blockStore,
	}
}

// RequiredBits returns the compact target of the block following prevHash
func (dm *difficultyManager) RequiredBits(stagingArea *model.StagingArea,
	prevHash *externalapi.DomainHash) (uint32, error) {

	target, err := dm.RequiredTarget(stagingArea, prevHash)
	if err != nil {
		return 0, err
	}
	return difficulty.BigToCompact(target), nil
}

// RequiredTarget returns the target of the block following prevHash.
//
// The target is the average target of the window ending at prevHash,
// scaled by how long the window actually took relative to how long it
// should have taken. Blocks before genesis count as blocks with the
// maximum target mined exactly on time.
func (dm *difficultyManager) RequiredTarget(stagingArea *model.StagingArea,
	prevHash *externalapi.DomainHash) (*big.Int, error) {

	windowSize := dm.difficultyAdjustmentWindowSize
	targetTimePerBlock := dm.targetTimePerBlock.Milliseconds()

	prev, err := dm.blockStore.Block(dm.databaseContext, stagingArea, prevHash)
	if err != nil {
		return nil, err
	}

	targetSum := new(big.Int)
	current := prev
	var blocksInWindow uint64
	for blocksInWindow < windowSize {
		targetSum.Add(targetSum, difficulty.CompactToBig(current.Header.Bits))
		blocksInWindow++
		if current.Header.Height == 0 {
			break
		}
		current, err = dm.blockStore.Block(dm.databaseContext, stagingArea, current.Header.PrevHash)
		if err != nil {
			return nil, err
		}
	}
	missingBlocks := new(big.Int).SetUint64(windowSize - blocksInWindow)
	targetSum.Add(targetSum, missingBlocks.Mul(missingBlocks, dm.powMax))

	// current is now the block just before the window, unless the window
	// reaches back past genesis
	var windowStartTime int64
	if prev.Header.Height >= windowSize {
		windowStartTime = current.Header.TimeInMilliseconds
	} else {
		blocksBeforeGenesis := int64(windowSize - prev.Header.Height)
		windowStartTime = dm.genesisTimeInMilliseconds - blocksBeforeGenesis*targetTimePerBlock
	}

	actualTimespan := prev.Header.TimeInMilliseconds - windowStartTime
	return calcNextTarget(targetSum, windowSize, actualTimespan, targetTimePerBlock,
		dm.maxDifficultyAdjustmentFactor, dm.powMax), nil
}

func calcNextTarget(targetSum *big.Int, windowSize uint64, actualTimespan int64, targetTimePerBlock int64,
	maxAdjustmentFactor uint64, powMax *big.Int) *big.Int {

	targetTimespan := int64(windowSize) * targetTimePerBlock
	minTimespan := targetTimespan / int64(maxAdjustmentFactor)
	maxTimespan := targetTimespan * int64(maxAdjustmentFactor)
	if actualTimespan < minTimespan {
		actualTimespan = minTimespan
	}
	if actualTimespan > maxTimespan {
		actualTimespan = maxTimespan
	}

	averageTarget := new(big.Int).Div(targetSum, new(big.Int).SetUint64(windowSize))
	nextTarget := averageTarget.Mul(averageTarget, big.NewInt(actualTimespan))
	nextTarget.Div(nextTarget, big.NewInt(targetTimespan))

	if nextTarget.Cmp(powMax) > 0 {
		nextTarget.Set(powMax)
	}
	if nextTarget.Sign() <= 0 {
		nextTarget.SetInt64(1)
	}
	return difficulty.RoundTarget(nextTarget)
}
