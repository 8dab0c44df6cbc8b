package consensus

import (
	"math/big"
	"sync"

	"github.com/nipopow/nipowd/domain/chainconfig"
	"github.com/nipopow/nipowd/domain/consensus/model"
	"github.com/nipopow/nipowd/domain/consensus/model/externalapi"
	"github.com/nipopow/nipowd/domain/consensus/utils/observable"
)

type consensus struct {
	lock            *sync.RWMutex
	eventsLock      sync.Mutex
	databaseContext model.DBManager
	params          *chainconfig.Params
	genesisHash     *externalapi.DomainHash

	blockProcessor        model.BlockProcessor
	blockBuilder          model.BlockBuilder
	blockValidator        model.BlockValidator
	chainManager          model.ChainManager
	coinbaseManager       model.CoinbaseManager
	difficultyManager     model.DifficultyManager
	interlinkManager      model.InterlinkManager
	pastMedianTimeManager model.PastMedianTimeManager

	blockStore     model.BlockStore
	chainDataStore model.ChainDataStore
	accountsTree   model.AccountsTree

	observable *observable.Observable

	headHash      *externalapi.DomainHash
	headChainData *externalapi.ChainData
}

// PushBlock validates the given block and, if valid, adds it to the chain.
// The returned error is non-nil only for failures that are not rule errors.
func (s *consensus) PushBlock(block *externalapi.DomainBlock) (externalapi.PushResult, error) {
	result, _, err := s.PushBlockWithReason(block)
	return result, err
}

// PushBlockWithReason is PushBlock that also returns the rule error that
// caused a block to be rejected, orphaned or found to be known
func (s *consensus) PushBlockWithReason(block *externalapi.DomainBlock) (
	result externalapi.PushResult, ruleErr error, err error) {

	s.lock.Lock()
	insertionResult, err := s.blockProcessor.ValidateAndInsertBlock(block)
	if err == nil {
		err = s.refreshHead()
	}

	// Taking the events lock before releasing the chain lock keeps the
	// events of concurrent pushes in commit order
	s.eventsLock.Lock()
	s.lock.Unlock()
	defer s.eventsLock.Unlock()

	if err != nil {
		return externalapi.PushResultErrInvalid, nil, err
	}
	for _, event := range insertionResult.Events {
		s.observable.Fire(event.EventName(), event)
	}
	return insertionResult.Result, insertionResult.RuleError, nil
}

// BuildBlock builds a block template on top of the head
func (s *consensus) BuildBlock(minerAddress externalapi.Address, transactions []*externalapi.DomainTransaction,
	extraData []byte) (*externalapi.DomainBlock, error) {

	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.blockBuilder.BuildBlock(minerAddress, transactions, extraData)
}

func (s *consensus) Head() (*externalapi.DomainBlock, *externalapi.DomainHash, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	block, err := s.blockStore.Block(s.databaseContext, model.NewStagingArea(), s.headHash)
	if err != nil {
		return nil, nil, err
	}
	return block, s.headHash.Clone(), nil
}

func (s *consensus) HeadHash() *externalapi.DomainHash {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.headHash.Clone()
}

func (s *consensus) HeadHeight() uint64 {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.headChainData.Height
}

func (s *consensus) TotalWork() *big.Int {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return new(big.Int).Set(s.headChainData.TotalWork)
}

func (s *consensus) GenesisHash() *externalapi.DomainHash {
	return s.genesisHash.Clone()
}

func (s *consensus) GetBlock(blockHash *externalapi.DomainHash) (*externalapi.DomainBlock, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.blockStore.Block(s.databaseContext, model.NewStagingArea(), blockHash)
}

// GetBlockAt returns the main chain block at the given height
func (s *consensus) GetBlockAt(height uint64) (*externalapi.DomainBlock, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	stagingArea := model.NewStagingArea()
	blockHash, err := s.chainDataStore.MainChainHash(s.databaseContext, stagingArea, height)
	if err != nil {
		return nil, err
	}
	return s.blockStore.Block(s.databaseContext, stagingArea, blockHash)
}

func (s *consensus) GetChainData(blockHash *externalapi.DomainHash) (*externalapi.ChainData, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.chainDataStore.ChainData(s.databaseContext, model.NewStagingArea(), blockHash)
}

func (s *consensus) GetAccount(address externalapi.Address) (*externalapi.Account, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.accountsTree.Get(s.databaseContext, address)
}

func (s *consensus) AccountsHash() (*externalapi.DomainHash, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.accountsTree.Hash(s.databaseContext)
}

// GetNextTarget returns the target a block on top of prevHash must meet
func (s *consensus) GetNextTarget(prevHash *externalapi.DomainHash) (*big.Int, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.difficultyManager.RequiredTarget(model.NewStagingArea(), prevHash)
}

func (s *consensus) OrphanCount() int {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.blockProcessor.OrphanCount()
}

// Subscribe registers handler for the chain event eventName. Handlers are
// called after the chain lock is released, in commit order. They must not
// push blocks themselves.
func (s *consensus) Subscribe(eventName string, handler externalapi.ChainEventHandler) uint64 {
	return s.observable.Subscribe(eventName, func(payload interface{}) {
		handler(payload.(externalapi.ChainEvent))
	})
}

func (s *consensus) Unsubscribe(id uint64) {
	s.observable.Unsubscribe(id)
}

// refreshHead reloads the cached head. It must be called with the chain
// lock held for writes.
func (s *consensus) refreshHead() error {
	stagingArea := model.NewStagingArea()
	headHash, err := s.chainDataStore.Head(s.databaseContext, stagingArea)
	if err != nil {
		return err
	}
	headChainData, err := s.chainDataStore.ChainData(s.databaseContext, stagingArea, headHash)
	if err != nil {
		return err
	}
	s.headHash = headHash
	s.headChainData = headChainData
	return nil
}
