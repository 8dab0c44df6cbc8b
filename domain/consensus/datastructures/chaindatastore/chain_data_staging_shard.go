package chaindatastore

import (
	"github.com/nipopow/nipowd/domain/consensus/database/binaryserialization"
	"github.com/nipopow/nipowd/domain/consensus/database/serialization"
	"github.com/nipopow/nipowd/domain/consensus/model"
	"github.com/nipopow/nipowd/domain/consensus/model/externalapi"
)

type chainDataStagingShard struct {
	store *chainDataStore

	toAdd    map[externalapi.DomainHash]*externalapi.ChainData
	toDelete map[externalapi.DomainHash]struct{}

	mainChainToAdd    map[uint64]*externalapi.DomainHash
	mainChainToDelete map[uint64]struct{}

	newHead *externalapi.DomainHash
}

func (cds *chainDataStore) stagingShard(stagingArea *model.StagingArea) *chainDataStagingShard {
	return stagingArea.GetOrCreateShard("ChainDataStore", func() model.StagingShard {
		return &chainDataStagingShard{
			store:             cds,
			toAdd:             make(map[externalapi.DomainHash]*externalapi.ChainData),
			toDelete:          make(map[externalapi.DomainHash]struct{}),
			mainChainToAdd:    make(map[uint64]*externalapi.DomainHash),
			mainChainToDelete: make(map[uint64]struct{}),
		}
	}).(*chainDataStagingShard)
}

func (cdss *chainDataStagingShard) Commit(dbTx model.DBTransaction) error {
	for hash, chainData := range cdss.toAdd {
		err := dbTx.Put(cdss.store.chainDataKey(&hash), serialization.SerializeChainData(chainData))
		if err != nil {
			return err
		}
		cdss.store.chainDataCache.Add(hash, chainData)
	}

	for hash := range cdss.toDelete {
		err := dbTx.Delete(cdss.store.chainDataKey(&hash))
		if err != nil {
			return err
		}
		cdss.store.chainDataCache.Remove(hash)
	}

	for height := range cdss.mainChainToDelete {
		err := dbTx.Delete(cdss.store.heightKey(height))
		if err != nil {
			return err
		}
		cdss.store.mainChainCache.Remove(height)
	}

	for height, hash := range cdss.mainChainToAdd {
		err := dbTx.Put(cdss.store.heightKey(height), binaryserialization.SerializeHash(hash))
		if err != nil {
			return err
		}
		cdss.store.mainChainCache.Add(height, hash)
	}

	if cdss.newHead != nil {
		err := dbTx.Put(headKey, binaryserialization.SerializeHash(cdss.newHead))
		if err != nil {
			return err
		}
		cdss.store.setCachedHead(cdss.newHead)
	}

	return nil
}

func (cdss *chainDataStagingShard) isStaged() bool {
	return len(cdss.toAdd) != 0 || len(cdss.toDelete) != 0 ||
		len(cdss.mainChainToAdd) != 0 || len(cdss.mainChainToDelete) != 0 ||
		cdss.newHead != nil
}
