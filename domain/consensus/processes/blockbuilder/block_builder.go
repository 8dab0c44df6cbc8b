package blockbuilder

import (
	"github.com/nipopow/nipowd/domain/consensus/model"
	"github.com/nipopow/nipowd/domain/consensus/model/externalapi"
	"github.com/nipopow/nipowd/domain/consensus/utils/consensushashing"
	"github.com/nipopow/nipowd/domain/consensus/utils/difficulty"
	"github.com/nipopow/nipowd/infrastructure/logger"
	"github.com/nipopow/nipowd/util/mstime"
)

type blockBuilder struct {
	databaseContext model.DBManager
	blockVersion    uint16

	difficultyManager     model.DifficultyManager
	pastMedianTimeManager model.PastMedianTimeManager
	interlinkManager      model.InterlinkManager
	chainManager          model.ChainManager

	chainDataStore model.ChainDataStore
}

// New instantiates a new BlockBuilder
func New(
	databaseContext model.DBManager,
	blockVersion uint16,

	difficultyManager model.DifficultyManager,
	pastMedianTimeManager model.PastMedianTimeManager,
	interlinkManager model.InterlinkManager,
	chainManager model.ChainManager,

	chainDataStore model.ChainDataStore,
) model.BlockBuilder {

	return &blockBuilder{
		databaseContext: databaseContext,
		blockVersion:    blockVersion,

		difficultyManager:     difficultyManager,
		pastMedianTimeManager: pastMedianTimeManager,
		interlinkManager:      interlinkManager,
		chainManager:          chainManager,

		chainDataStore: chainDataStore,
	}
}

// BuildBlock builds a block template on top of the current head, paying the
// block reward to minerAddress. The returned block has a zero nonce.
func (bb *blockBuilder) BuildBlock(minerAddress externalapi.Address,
	transactions []*externalapi.DomainTransaction, extraData []byte) (*externalapi.DomainBlock, error) {

	onEnd := logger.LogAndMeasureExecutionTime(log, "BuildBlock")
	defer onEnd()

	stagingArea := model.NewStagingArea()
	headHash, err := bb.chainDataStore.Head(bb.databaseContext, stagingArea)
	if err != nil {
		return nil, err
	}
	return bb.buildBlockOnBlock(stagingArea, headHash, minerAddress, transactions, extraData)
}

func (bb *blockBuilder) buildBlockOnBlock(stagingArea *model.StagingArea, prevHash *externalapi.DomainHash,
	minerAddress externalapi.Address, transactions []*externalapi.DomainTransaction,
	extraData []byte) (*externalapi.DomainBlock, error) {

	prevChainData, err := bb.chainDataStore.ChainData(bb.databaseContext, stagingArea, prevHash)
	if err != nil {
		return nil, err
	}
	height := prevChainData.Height + 1

	bits, err := bb.difficultyManager.RequiredBits(stagingArea, prevHash)
	if err != nil {
		return nil, err
	}
	interlink, err := bb.interlinkManager.NextInterlink(stagingArea, prevHash, difficulty.CompactToBig(bits))
	if err != nil {
		return nil, err
	}

	body := &externalapi.DomainBlockBody{
		MinerAddress: minerAddress,
		ExtraData:    extraData,
		Transactions: transactions,
	}
	accountsHash, err := bb.newBlockAccountsHash(stagingArea, prevHash, body, height)
	if err != nil {
		return nil, err
	}

	timeInMilliseconds, err := bb.newBlockTime(stagingArea, prevHash)
	if err != nil {
		return nil, err
	}

	header := &externalapi.DomainBlockHeader{
		Version:            bb.blockVersion,
		PrevHash:           prevHash,
		InterlinkHash:      consensushashing.InterlinkHash(interlink),
		BodyHash:           consensushashing.BodyHash(body),
		AccountsHash:       accountsHash,
		Bits:               bits,
		Height:             height,
		TimeInMilliseconds: timeInMilliseconds,
	}
	return &externalapi.DomainBlock{
		Header:    header,
		Interlink: interlink,
		Body:      body,
	}, nil
}

// newBlockAccountsHash applies body on top of the accounts state after
// prevHash and returns the resulting root. Nothing is persisted.
func (bb *blockBuilder) newBlockAccountsHash(stagingArea *model.StagingArea, prevHash *externalapi.DomainHash,
	body *externalapi.DomainBlockBody, height uint64) (*externalapi.DomainHash, error) {

	accountsTransaction, err := bb.chainManager.AccountsTransactionAt(stagingArea, prevHash)
	if err != nil {
		return nil, err
	}
	defer accountsTransaction.Abort()

	err = accountsTransaction.CommitBlockBody(body, height)
	if err != nil {
		return nil, err
	}
	return accountsTransaction.Hash()
}

// newBlockTime returns the current time, or one millisecond after the past
// median time if the clock is behind it.
func (bb *blockBuilder) newBlockTime(stagingArea *model.StagingArea, prevHash *externalapi.DomainHash) (int64, error) {
	newTimestamp := mstime.NowMilliseconds()
	pastMedianTime, err := bb.pastMedianTimeManager.PastMedianTime(stagingArea, prevHash)
	if err != nil {
		return 0, err
	}
	if newTimestamp <= pastMedianTime {
		newTimestamp = pastMedianTime + 1
	}
	return newTimestamp, nil
}
