package consensus

import (
	"github.com/nipopow/nipowd/domain/consensus/model"
	"github.com/nipopow/nipowd/domain/consensus/model/externalapi"
	"github.com/nipopow/nipowd/domain/consensus/utils/consensushashing"
	"github.com/nipopow/nipowd/domain/consensus/utils/difficulty"
)

// initGenesis loads the genesis hash of an existing chain, or seals the
// genesis block from the network's template and stores it as the head
// of a new one.
func (s *consensus) initGenesis() error {
	stagingArea := model.NewStagingArea()
	hasHead, err := s.chainDataStore.HasHead(s.databaseContext, stagingArea)
	if err != nil {
		return err
	}
	if hasHead {
		s.genesisHash, err = s.chainDataStore.MainChainHash(s.databaseContext, stagingArea, 0)
		return err
	}

	genesisBlock, accountsTransaction, err := s.sealGenesis()
	if err != nil {
		return err
	}
	genesisHash := consensushashing.BlockHash(genesisBlock)
	superBlockDepth := s.interlinkManager.SuperBlockDepth(genesisHash, genesisBlock.Header.Bits)

	s.accountsTree.StageTransaction(stagingArea, accountsTransaction)
	s.blockStore.Stage(stagingArea, genesisHash, genesisBlock)
	s.chainDataStore.Stage(stagingArea, genesisHash, &externalapi.ChainData{
		TotalWork:        difficulty.CalcWork(genesisBlock.Header.Bits),
		Height:           0,
		OnMainChain:      true,
		SuperBlockCounts: externalapi.WithSuperBlock(nil, superBlockDepth),
	})
	s.chainDataStore.StageMainChainHash(stagingArea, 0, genesisHash)
	s.chainDataStore.StageHead(stagingArea, genesisHash)

	dbTx, err := s.databaseContext.Begin()
	if err != nil {
		return err
	}
	defer dbTx.RollbackUnlessClosed()

	err = stagingArea.Commit(dbTx)
	if err != nil {
		return err
	}
	err = dbTx.Commit()
	if err != nil {
		return err
	}

	log.Infof("Created a new %s chain with genesis block %s", s.params.Name, genesisHash)
	s.genesisHash = genesisHash
	return nil
}

// sealGenesis applies the genesis allocations and reward to an empty
// accounts tree and builds the genesis block committing to the result.
// The returned transaction is left open for the caller to stage.
func (s *consensus) sealGenesis() (*externalapi.DomainBlock, model.AccountsTransaction, error) {
	template := s.params.Genesis

	accountsTransaction, err := s.accountsTree.BeginTransaction(s.databaseContext)
	if err != nil {
		return nil, nil, err
	}
	for _, allocation := range template.Allocations {
		err = accountsTransaction.Put(allocation.Address, allocation.Account)
		if err != nil {
			accountsTransaction.Abort()
			return nil, nil, err
		}
	}

	body := template.Body()
	err = accountsTransaction.CommitBlockBody(body, 0)
	if err != nil {
		accountsTransaction.Abort()
		return nil, nil, err
	}
	accountsHash, err := accountsTransaction.Hash()
	if err != nil {
		accountsTransaction.Abort()
		return nil, nil, err
	}

	interlink := externalapi.BlockInterlink{}
	header := &externalapi.DomainBlockHeader{
		Version:            s.params.BlockVersion,
		PrevHash:           externalapi.NewZeroHash(),
		InterlinkHash:      consensushashing.InterlinkHash(interlink),
		BodyHash:           consensushashing.BodyHash(body),
		AccountsHash:       accountsHash,
		Bits:               template.Bits,
		Height:             0,
		TimeInMilliseconds: template.TimeInMilliseconds,
		Nonce:              template.Nonce,
	}
	return &externalapi.DomainBlock{
		Header:    header,
		Interlink: interlink,
		Body:      body,
	}, accountsTransaction, nil
}
