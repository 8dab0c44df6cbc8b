package model

import "github.com/nipopow/nipowd/domain/consensus/model/externalapi"

// AccountsTree is the authenticated trie holding the state of every account
type AccountsTree interface {
	Store
	Get(dbContext DBReader, address externalapi.Address) (*externalapi.Account, error)
	Hash(dbContext DBReader) (*externalapi.DomainHash, error)
	BeginTransaction(dbManager DBManager) (AccountsTransaction, error)
	StageTransaction(stagingArea *StagingArea, transaction AccountsTransaction)
}

// AccountsTransaction is a staged, speculative change to the AccountsTree.
// Nothing it does is durable until it is committed as part of a StagingArea.
type AccountsTransaction interface {
	StagingShard
	Get(address externalapi.Address) (*externalapi.Account, error)
	Put(address externalapi.Address, account *externalapi.Account) error
	CommitBlockBody(body *externalapi.DomainBlockBody, height uint64) error
	RevertBlockBody(body *externalapi.DomainBlockBody, height uint64) error
	Hash() (*externalapi.DomainHash, error)
	Abort()
}
