package consensus

import (
	"runtime"

	"github.com/nipopow/nipowd/domain/chainconfig"
	"github.com/nipopow/nipowd/domain/consensus/model"
	"github.com/nipopow/nipowd/domain/consensus/model/externalapi"
	"github.com/nipopow/nipowd/domain/consensus/model/testapi"
	"github.com/nipopow/nipowd/domain/consensus/ruleerrors"
	"github.com/nipopow/nipowd/domain/consensus/utils/consensushashing"
	"github.com/nipopow/nipowd/domain/consensus/utils/difficulty"
	"github.com/nipopow/nipowd/domain/consensus/utils/testutils"
	"github.com/nipopow/nipowd/domain/miner"
	"github.com/pkg/errors"
)

type testConsensus struct {
	*consensus
	users            []*testutils.TestUser
	testBlockBuilder model.TestBlockBuilder
}

func (tc *testConsensus) Params() *chainconfig.Params {
	return tc.params
}

func (tc *testConsensus) DatabaseContext() model.DBManager {
	return tc.databaseContext
}

func (tc *testConsensus) Users() []*testutils.TestUser {
	return tc.users
}

func (tc *testConsensus) BuildBlockWithOptions(options *testapi.BlockOptions) (*externalapi.DomainBlock, error) {
	if options == nil {
		options = &testapi.BlockOptions{}
	}

	block, err := tc.buildBlockWithOptions(options)
	if err != nil {
		return nil, err
	}

	if options.Nonce != nil {
		block.Header.Nonce = *options.Nonce
		return block, nil
	}
	if tc.params.SkipProofOfWork {
		return block, nil
	}
	return tc.MineBlock(block)
}

func (tc *testConsensus) buildBlockWithOptions(options *testapi.BlockOptions) (*externalapi.DomainBlock, error) {
	tc.lock.RLock()
	defer tc.lock.RUnlock()

	stagingArea := model.NewStagingArea()
	prevHash := options.PrevHash
	if prevHash == nil {
		prevHash = tc.headHash
	}
	prevBlock, err := tc.blockStore.Block(tc.databaseContext, stagingArea, prevHash)
	if err != nil {
		return nil, err
	}

	height := prevBlock.Header.Height + 1
	if options.Height != nil {
		height = *options.Height
	}

	transactions := options.Transactions
	if transactions == nil {
		numTransactions := int(prevBlock.Header.Height)
		if options.NumTransactions != nil {
			numTransactions = *options.NumTransactions
		}
		transactions, err = tc.generateTransactions(stagingArea, prevHash, numTransactions)
		if err != nil {
			return nil, err
		}
	}

	minerAddress := tc.users[height%uint64(len(tc.users))].Address
	if options.MinerAddress != nil {
		minerAddress = *options.MinerAddress
	}

	bits := uint32(0)
	if options.Bits != nil {
		bits = *options.Bits
	} else {
		bits, err = tc.difficultyManager.RequiredBits(stagingArea, prevHash)
		if err != nil {
			return nil, err
		}
	}

	interlink := options.Interlink
	if interlink == nil {
		interlink, err = tc.interlinkManager.NextInterlink(stagingArea, prevHash, difficulty.CompactToBig(bits))
		if err != nil {
			return nil, err
		}
	}

	body := &externalapi.DomainBlockBody{
		MinerAddress: minerAddress,
		ExtraData:    options.ExtraData,
		Transactions: transactions,
	}

	accountsHash := options.AccountsHash
	if accountsHash == nil {
		accountsHash, err = tc.accountsHashAfter(stagingArea, prevHash, body, height)
		if err != nil {
			return nil, err
		}
	}

	version := tc.params.BlockVersion
	if options.Version != nil {
		version = *options.Version
	}
	interlinkHash := options.InterlinkHash
	if interlinkHash == nil {
		interlinkHash = consensushashing.InterlinkHash(interlink)
	}
	bodyHash := options.BodyHash
	if bodyHash == nil {
		bodyHash = consensushashing.BodyHash(body)
	}
	timeInMilliseconds := prevBlock.Header.TimeInMilliseconds + tc.params.TargetTimePerBlock.Milliseconds()
	if options.TimeInMilliseconds != nil {
		timeInMilliseconds = *options.TimeInMilliseconds
	}

	return &externalapi.DomainBlock{
		Header: &externalapi.DomainBlockHeader{
			Version:            version,
			PrevHash:           prevHash.Clone(),
			InterlinkHash:      interlinkHash,
			BodyHash:           bodyHash,
			AccountsHash:       accountsHash,
			Bits:               bits,
			Height:             height,
			TimeInMilliseconds: timeInMilliseconds,
		},
		Interlink: interlink,
		Body:      body,
	}, nil
}

// accountsHashAfter returns the accounts root after applying body on top
// of prevHash, or the zero hash if body cannot be applied there
func (tc *testConsensus) accountsHashAfter(stagingArea *model.StagingArea, prevHash *externalapi.DomainHash,
	body *externalapi.DomainBlockBody, height uint64) (*externalapi.DomainHash, error) {

	accountsTransaction, err := tc.chainManager.AccountsTransactionAt(stagingArea, prevHash)
	if err != nil {
		return nil, err
	}
	defer accountsTransaction.Abort()

	err = accountsTransaction.CommitBlockBody(body, height)
	if err != nil {
		if ruleerrors.IsRuleError(err) {
			return externalapi.NewZeroHash(), nil
		}
		return nil, err
	}
	return accountsTransaction.Hash()
}

func (tc *testConsensus) GenerateTransactions(prevHash *externalapi.DomainHash,
	numTransactions int) ([]*externalapi.DomainTransaction, error) {

	tc.lock.RLock()
	defer tc.lock.RUnlock()

	return tc.generateTransactions(model.NewStagingArea(), prevHash, numTransactions)
}

func (tc *testConsensus) generateTransactions(stagingArea *model.StagingArea, prevHash *externalapi.DomainHash,
	numTransactions int) ([]*externalapi.DomainTransaction, error) {

	numUsers := len(tc.users)
	if numUsers < 2 || numTransactions <= 0 {
		return []*externalapi.DomainTransaction{}, nil
	}
	if numTransactions > numUsers {
		numTransactions = numUsers
	}

	prevChainData, err := tc.chainDataStore.ChainData(tc.databaseContext, stagingArea, prevHash)
	if err != nil {
		return nil, err
	}
	accountsTransaction, err := tc.chainManager.AccountsTransactionAt(stagingArea, prevHash)
	if err != nil {
		return nil, err
	}
	defer accountsTransaction.Abort()

	transactions := make([]*externalapi.DomainTransaction, 0, numTransactions)
	for j := 0; j < numTransactions; j++ {
		sender := tc.users[j%numUsers]
		recipient := tc.users[(j+1)%numUsers]

		account, err := accountsTransaction.Get(sender.Address)
		if err != nil {
			return nil, err
		}
		amount := account.Balance / 10
		if amount == 0 {
			amount = 1
		}
		fee := amount / 2
		if account.Balance < amount+fee {
			continue
		}

		tx, err := sender.SignedTransaction(recipient.Address, amount, fee, account.Nonce, prevChainData.Height)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}
	return transactions, nil
}

func (tc *testConsensus) MineBlock(block *externalapi.DomainBlock) (*externalapi.DomainBlock, error) {
	workerPool := miner.NewWorkerPool(runtime.NumCPU())
	solved := make(chan *externalapi.DomainBlock, 1)
	subscriptionID := workerPool.Subscribe(func(share *miner.Share) {
		if !share.IsBlock {
			return
		}
		select {
		case solved <- share.Block:
		default:
		}
	})
	defer workerPool.Unsubscribe(subscriptionID)

	workerPool.Start()
	defer workerPool.Stop()

	_, err := workerPool.StartMiningOnBlock(block)
	if err != nil {
		return nil, err
	}
	return <-solved, nil
}

func (tc *testConsensus) AddBlock(prevHash *externalapi.DomainHash) (
	*externalapi.DomainHash, externalapi.PushResult, error) {

	block, err := tc.BuildBlockWithOptions(&testapi.BlockOptions{PrevHash: prevHash})
	if err != nil {
		return nil, 0, err
	}
	blockHash := consensushashing.BlockHash(block)

	result, ruleErr, err := tc.PushBlockWithReason(block)
	if err != nil {
		return nil, 0, err
	}
	switch result {
	case externalapi.PushResultOKExtended, externalapi.PushResultOKRebranched, externalapi.PushResultOKForked:
		return blockHash, result, nil
	default:
		return nil, result, errors.Errorf("block %s was not added (%s): %+v", blockHash, result, ruleErr)
	}
}

func (tc *testConsensus) ExtendChain(numBlocks int) error {
	for i := 0; i < numBlocks; i++ {
		_, _, err := tc.AddBlock(tc.HeadHash())
		if err != nil {
			return err
		}
	}
	return nil
}
