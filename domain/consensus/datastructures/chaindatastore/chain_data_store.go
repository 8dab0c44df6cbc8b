package chaindatastore

import (
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"github.com/nipopow/nipowd/domain/consensus/database"
	"github.com/nipopow/nipowd/domain/consensus/database/binaryserialization"
	"github.com/nipopow/nipowd/domain/consensus/database/serialization"
	"github.com/nipopow/nipowd/domain/consensus/model"
	"github.com/nipopow/nipowd/domain/consensus/model/externalapi"
	"github.com/pkg/errors"
)

var chainDataBucket = database.MakeBucket([]byte("chain-data"))
var mainChainBucket = database.MakeBucket([]byte("main-chain-heights"))
var headKey = database.MakeBucket([]byte("head")).Key([]byte("head"))

// chainDataStore represents a store of ChainData, the main chain
// height index and the head pointer
type chainDataStore struct {
	chainDataCache *lru.Cache
	mainChainCache *lru.Cache

	headLock  sync.RWMutex
	headCache *externalapi.DomainHash
}

// New instantiates a new ChainDataStore
func New(cacheSize int) (model.ChainDataStore, error) {
	chainDataCache, err := lru.New(cacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create the chain data cache")
	}
	mainChainCache, err := lru.New(cacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create the main chain cache")
	}
	return &chainDataStore{
		chainDataCache: chainDataCache,
		mainChainCache: mainChainCache,
	}, nil
}

// Stage stages the given chainData for the given blockHash
func (cds *chainDataStore) Stage(stagingArea *model.StagingArea, blockHash *externalapi.DomainHash,
	chainData *externalapi.ChainData) {

	stagingShard := cds.stagingShard(stagingArea)
	delete(stagingShard.toDelete, *blockHash)
	stagingShard.toAdd[*blockHash] = chainData.Clone()
}

func (cds *chainDataStore) IsStaged(stagingArea *model.StagingArea) bool {
	return cds.stagingShard(stagingArea).isStaged()
}

// ChainData returns the chain data associated with the given blockHash
func (cds *chainDataStore) ChainData(dbContext model.DBReader, stagingArea *model.StagingArea,
	blockHash *externalapi.DomainHash) (*externalapi.ChainData, error) {

	stagingShard := cds.stagingShard(stagingArea)

	if chainData, ok := stagingShard.toAdd[*blockHash]; ok {
		return chainData.Clone(), nil
	}
	if _, ok := stagingShard.toDelete[*blockHash]; ok {
		return nil, errors.Wrapf(database.ErrNotFound, "chain data of %s is staged for deletion", blockHash)
	}

	if chainData, ok := cds.chainDataCache.Get(*blockHash); ok {
		return chainData.(*externalapi.ChainData).Clone(), nil
	}

	chainDataBytes, err := dbContext.Get(cds.chainDataKey(blockHash))
	if err != nil {
		return nil, err
	}
	chainData, err := serialization.DeserializeChainData(chainDataBytes)
	if err != nil {
		return nil, err
	}
	cds.chainDataCache.Add(*blockHash, chainData)
	return chainData.Clone(), nil
}

// Has returns whether chain data exists for the given blockHash
func (cds *chainDataStore) Has(dbContext model.DBReader, stagingArea *model.StagingArea,
	blockHash *externalapi.DomainHash) (bool, error) {

	stagingShard := cds.stagingShard(stagingArea)

	if _, ok := stagingShard.toAdd[*blockHash]; ok {
		return true, nil
	}
	if _, ok := stagingShard.toDelete[*blockHash]; ok {
		return false, nil
	}
	if cds.chainDataCache.Contains(*blockHash) {
		return true, nil
	}
	return dbContext.Has(cds.chainDataKey(blockHash))
}

// Delete deletes the chain data associated with the given blockHash
func (cds *chainDataStore) Delete(stagingArea *model.StagingArea, blockHash *externalapi.DomainHash) {
	stagingShard := cds.stagingShard(stagingArea)

	if _, ok := stagingShard.toAdd[*blockHash]; ok {
		delete(stagingShard.toAdd, *blockHash)
	}
	stagingShard.toDelete[*blockHash] = struct{}{}
}

// StageMainChainHash records blockHash as the main chain block at height
func (cds *chainDataStore) StageMainChainHash(stagingArea *model.StagingArea, height uint64,
	blockHash *externalapi.DomainHash) {

	stagingShard := cds.stagingShard(stagingArea)
	delete(stagingShard.mainChainToDelete, height)
	stagingShard.mainChainToAdd[height] = blockHash.Clone()
}

// DeleteMainChainHash removes the main chain block at height
func (cds *chainDataStore) DeleteMainChainHash(stagingArea *model.StagingArea, height uint64) {
	stagingShard := cds.stagingShard(stagingArea)
	delete(stagingShard.mainChainToAdd, height)
	stagingShard.mainChainToDelete[height] = struct{}{}
}

// MainChainHash returns the hash of the main chain block at height
func (cds *chainDataStore) MainChainHash(dbContext model.DBReader, stagingArea *model.StagingArea,
	height uint64) (*externalapi.DomainHash, error) {

	stagingShard := cds.stagingShard(stagingArea)

	if hash, ok := stagingShard.mainChainToAdd[height]; ok {
		return hash.Clone(), nil
	}
	if _, ok := stagingShard.mainChainToDelete[height]; ok {
		return nil, errors.Wrapf(database.ErrNotFound, "main chain block at height %d is staged for deletion", height)
	}
	if hash, ok := cds.mainChainCache.Get(height); ok {
		return hash.(*externalapi.DomainHash).Clone(), nil
	}

	hashBytes, err := dbContext.Get(cds.heightKey(height))
	if err != nil {
		return nil, err
	}
	hash, err := binaryserialization.DeserializeHash(hashBytes)
	if err != nil {
		return nil, err
	}
	cds.mainChainCache.Add(height, hash)
	return hash.Clone(), nil
}

// StageHead stages headHash as the new head of the chain
func (cds *chainDataStore) StageHead(stagingArea *model.StagingArea, headHash *externalapi.DomainHash) {
	cds.stagingShard(stagingArea).newHead = headHash.Clone()
}

// Head returns the hash of the head of the chain
func (cds *chainDataStore) Head(dbContext model.DBReader, stagingArea *model.StagingArea) (*externalapi.DomainHash, error) {
	stagingShard := cds.stagingShard(stagingArea)

	if stagingShard.newHead != nil {
		return stagingShard.newHead.Clone(), nil
	}
	if head, ok := cds.cachedHead(); ok {
		return head, nil
	}

	headBytes, err := dbContext.Get(headKey)
	if err != nil {
		return nil, err
	}
	head, err := binaryserialization.DeserializeHash(headBytes)
	if err != nil {
		return nil, err
	}
	cds.setCachedHead(head)
	return head.Clone(), nil
}

// HasHead returns whether a head was ever stored
func (cds *chainDataStore) HasHead(dbContext model.DBReader, stagingArea *model.StagingArea) (bool, error) {
	stagingShard := cds.stagingShard(stagingArea)

	if stagingShard.newHead != nil {
		return true, nil
	}
	if _, ok := cds.cachedHead(); ok {
		return true, nil
	}
	return dbContext.Has(headKey)
}

func (cds *chainDataStore) chainDataKey(hash *externalapi.DomainHash) model.DBKey {
	return chainDataBucket.Key(hash.ByteSlice())
}

func (cds *chainDataStore) heightKey(height uint64) model.DBKey {
	return mainChainBucket.Key(binaryserialization.SerializeHeight(height))
}

func (cds *chainDataStore) cachedHead() (*externalapi.DomainHash, bool) {
	cds.headLock.RLock()
	defer cds.headLock.RUnlock()

	if cds.headCache == nil {
		return nil, false
	}
	return cds.headCache.Clone(), true
}

func (cds *chainDataStore) setCachedHead(head *externalapi.DomainHash) {
	cds.headLock.Lock()
	defer cds.headLock.Unlock()

	cds.headCache = head.Clone()
}
