package model

import "github.com/nipopow/nipowd/domain/consensus/model/externalapi"

// ChainDataStore represents a store of per-block chain metadata, the
// main chain height index and the head pointer
type ChainDataStore interface {
	Store
	Stage(stagingArea *StagingArea, blockHash *externalapi.DomainHash, chainData *externalapi.ChainData)
	IsStaged(stagingArea *StagingArea) bool
	ChainData(dbContext DBReader, stagingArea *StagingArea, blockHash *externalapi.DomainHash) (*externalapi.ChainData, error)
	Has(dbContext DBReader, stagingArea *StagingArea, blockHash *externalapi.DomainHash) (bool, error)
	Delete(stagingArea *StagingArea, blockHash *externalapi.DomainHash)

	StageMainChainHash(stagingArea *StagingArea, height uint64, blockHash *externalapi.DomainHash)
	DeleteMainChainHash(stagingArea *StagingArea, height uint64)
	MainChainHash(dbContext DBReader, stagingArea *StagingArea, height uint64) (*externalapi.DomainHash, error)

	StageHead(stagingArea *StagingArea, headHash *externalapi.DomainHash)
	Head(dbContext DBReader, stagingArea *StagingArea) (*externalapi.DomainHash, error)
	HasHead(dbContext DBReader, stagingArea *StagingArea) (bool, error)
}
