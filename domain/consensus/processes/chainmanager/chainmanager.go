package chainmanager

import (
	"github.com/nipopow/nipowd/domain/consensus/model"
	"github.com/nipopow/nipowd/domain/consensus/model/externalapi"
)

// chainManager keeps the main chain on the heaviest known branch and
// the accounts tree in the state of the main chain's head
type chainManager struct {
	databaseContext model.DBManager

	interlinkManager model.InterlinkManager

	blockStore     model.BlockStore
	chainDataStore model.ChainDataStore
	accountsTree   model.AccountsTree
}

// New instantiates a new ChainManager
func New(
	databaseContext model.DBManager,

	interlinkManager model.InterlinkManager,

	blockStore model.BlockStore,
	chainDataStore model.ChainDataStore,
	accountsTree model.AccountsTree) model.ChainManager {

	return &chainManager{
		databaseContext: databaseContext,

		interlinkManager: interlinkManager,

		blockStore:     blockStore,
		chainDataStore: chainDataStore,
		accountsTree:   accountsTree,
	}
}

func (cm *chainManager) block(stagingArea *model.StagingArea,
	blockHash *externalapi.DomainHash) (*externalapi.DomainBlock, error) {

	return cm.blockStore.Block(cm.databaseContext, stagingArea, blockHash)
}

func (cm *chainManager) chainData(stagingArea *model.StagingArea,
	blockHash *externalapi.DomainHash) (*externalapi.ChainData, error) {

	return cm.chainDataStore.ChainData(cm.databaseContext, stagingArea, blockHash)
}

func (cm *chainManager) head(stagingArea *model.StagingArea) (*externalapi.DomainHash, error) {
	return cm.chainDataStore.Head(cm.databaseContext, stagingArea)
}
