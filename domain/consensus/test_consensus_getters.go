package consensus

import (
	"github.com/nipopow/nipowd/domain/consensus/model"
)

func (tc *testConsensus) BlockStore() model.BlockStore {
	return tc.blockStore
}

func (tc *testConsensus) ChainDataStore() model.ChainDataStore {
	return tc.chainDataStore
}

func (tc *testConsensus) AccountsTree() model.AccountsTree {
	return tc.accountsTree
}

func (tc *testConsensus) BlockBuilder() model.TestBlockBuilder {
	return tc.testBlockBuilder
}

func (tc *testConsensus) BlockProcessor() model.BlockProcessor {
	return tc.blockProcessor
}

func (tc *testConsensus) BlockValidator() model.BlockValidator {
	return tc.blockValidator
}

func (tc *testConsensus) ChainManager() model.ChainManager {
	return tc.chainManager
}

func (tc *testConsensus) CoinbaseManager() model.CoinbaseManager {
	return tc.coinbaseManager
}

func (tc *testConsensus) DifficultyManager() model.DifficultyManager {
	return tc.difficultyManager
}

func (tc *testConsensus) InterlinkManager() model.InterlinkManager {
	return tc.interlinkManager
}

func (tc *testConsensus) PastMedianTimeManager() model.PastMedianTimeManager {
	return tc.pastMedianTimeManager
}
