package chainmanager

import (
	"math/big"

	"github.com/nipopow/nipowd/domain/consensus/model"
	"github.com/nipopow/nipowd/domain/consensus/model/externalapi"
	"github.com/nipopow/nipowd/domain/consensus/utils/difficulty"
	"github.com/nipopow/nipowd/domain/consensus/utils/hashes"
	"github.com/nipopow/nipowd/infrastructure/logger"
)

// AddBlock stores a block whose predecessor is known and that passed
// validation in isolation and in context. The block either extends the
// main chain, rebranches it, or is stored on a fork.
//
// A rule error means the block, and possibly stored blocks of its branch,
// turned out invalid when applied. Nothing is staged in that case.
func (cm *chainManager) AddBlock(stagingArea *model.StagingArea, blockHash *externalapi.DomainHash,
	block *externalapi.DomainBlock) (externalapi.PushResult, []externalapi.ChainEvent, error) {

	onEnd := logger.LogAndMeasureExecutionTime(log, "chainManager.AddBlock")
	defer onEnd()

	chainData, err := cm.newChainData(stagingArea, blockHash, block)
	if err != nil {
		return 0, nil, err
	}

	headHash, err := cm.head(stagingArea)
	if err != nil {
		return 0, nil, err
	}
	if block.Header.PrevHash.Equal(headHash) {
		events, err := cm.extend(stagingArea, blockHash, block, chainData)
		if err != nil {
			return 0, nil, err
		}
		return externalapi.PushResultOKExtended, events, nil
	}

	headChainData, err := cm.chainData(stagingArea, headHash)
	if err != nil {
		return 0, nil, err
	}
	if isHeavier(chainData, blockHash, headChainData, headHash) {
		events, err := cm.rebranch(stagingArea, blockHash, block, chainData)
		if err != nil {
			return 0, nil, err
		}
		return externalapi.PushResultOKRebranched, events, nil
	}

	log.Debugf("Storing block %s on a fork at height %d", blockHash, chainData.Height)
	cm.blockStore.Stage(stagingArea, blockHash, block)
	cm.chainDataStore.Stage(stagingArea, blockHash, chainData)
	return externalapi.PushResultOKForked, []externalapi.ChainEvent{
		&externalapi.BlockAddedEvent{Block: block, Hash: blockHash, Result: externalapi.PushResultOKForked},
	}, nil
}

func (cm *chainManager) newChainData(stagingArea *model.StagingArea, blockHash *externalapi.DomainHash,
	block *externalapi.DomainBlock) (*externalapi.ChainData, error) {

	prevChainData, err := cm.chainData(stagingArea, block.Header.PrevHash)
	if err != nil {
		return nil, err
	}

	totalWork := new(big.Int).Add(prevChainData.TotalWork, difficulty.CalcWork(block.Header.Bits))
	superBlockDepth := cm.interlinkManager.SuperBlockDepth(blockHash, block.Header.Bits)
	return &externalapi.ChainData{
		TotalWork:        totalWork,
		Height:           block.Header.Height,
		SuperBlockCounts: externalapi.WithSuperBlock(prevChainData.SuperBlockCounts, superBlockDepth),
	}, nil
}

// isHeavier returns whether the chain ending at blockHash should be
// preferred over the chain ending at otherHash: it has more total work, or
// as much work and a lower hash
func isHeavier(chainData *externalapi.ChainData, blockHash *externalapi.DomainHash,
	otherChainData *externalapi.ChainData, otherHash *externalapi.DomainHash) bool {

	workComparison := chainData.TotalWork.Cmp(otherChainData.TotalWork)
	if workComparison != 0 {
		return workComparison > 0
	}
	return hashes.Less(blockHash, otherHash)
}

func (cm *chainManager) extend(stagingArea *model.StagingArea, blockHash *externalapi.DomainHash,
	block *externalapi.DomainBlock, chainData *externalapi.ChainData) ([]externalapi.ChainEvent, error) {

	accountsTransaction, err := cm.accountsTree.BeginTransaction(cm.databaseContext)
	if err != nil {
		return nil, err
	}
	err = cm.applyBlockBody(accountsTransaction, blockHash, block)
	if err != nil {
		accountsTransaction.Abort()
		return nil, err
	}
	cm.accountsTree.StageTransaction(stagingArea, accountsTransaction)

	prevChainData, err := cm.chainData(stagingArea, block.Header.PrevHash)
	if err != nil {
		return nil, err
	}
	prevChainData.MainChainSuccessor = blockHash
	cm.chainDataStore.Stage(stagingArea, block.Header.PrevHash, prevChainData)

	chainData.OnMainChain = true
	cm.blockStore.Stage(stagingArea, blockHash, block)
	cm.chainDataStore.Stage(stagingArea, blockHash, chainData)
	cm.chainDataStore.StageMainChainHash(stagingArea, chainData.Height, blockHash)
	cm.chainDataStore.StageHead(stagingArea, blockHash)

	log.Debugf("Extended the main chain with block %s at height %d", blockHash, chainData.Height)
	return []externalapi.ChainEvent{
		&externalapi.BlockAddedEvent{Block: block, Hash: blockHash, Result: externalapi.PushResultOKExtended},
		&externalapi.HeadChangedEvent{Block: block, Hash: blockHash, Rebranching: false},
	}, nil
}
