package externalapi

import "math/big"

// Consensus maintains the current core state of the node
type Consensus interface {
	PushBlock(block *DomainBlock) (PushResult, error)
	PushBlockWithReason(block *DomainBlock) (result PushResult, ruleErr error, err error)
	BuildBlock(minerAddress Address, transactions []*DomainTransaction, extraData []byte) (*DomainBlock, error)

	Head() (*DomainBlock, *DomainHash, error)
	HeadHash() *DomainHash
	HeadHeight() uint64
	TotalWork() *big.Int
	GenesisHash() *DomainHash

	GetBlock(blockHash *DomainHash) (*DomainBlock, error)
	GetBlockAt(height uint64) (*DomainBlock, error)
	GetChainData(blockHash *DomainHash) (*ChainData, error)
	GetAccount(address Address) (*Account, error)
	AccountsHash() (*DomainHash, error)
	GetNextTarget(prevHash *DomainHash) (*big.Int, error)
	OrphanCount() int

	Subscribe(eventName string, handler ChainEventHandler) uint64
	Unsubscribe(id uint64)
}
