package consensus

import (
	"os"
	"sync"

	"github.com/nipopow/nipowd/domain/chainconfig"
	consensusdatabase "github.com/nipopow/nipowd/domain/consensus/database"
	"github.com/nipopow/nipowd/domain/consensus/datastructures/accountstree"
	"github.com/nipopow/nipowd/domain/consensus/datastructures/blockstore"
	"github.com/nipopow/nipowd/domain/consensus/datastructures/chaindatastore"
	"github.com/nipopow/nipowd/domain/consensus/model/externalapi"
	"github.com/nipopow/nipowd/domain/consensus/model/testapi"
	"github.com/nipopow/nipowd/domain/consensus/processes/blockbuilder"
	"github.com/nipopow/nipowd/domain/consensus/processes/blockprocessor"
	"github.com/nipopow/nipowd/domain/consensus/processes/blockvalidator"
	"github.com/nipopow/nipowd/domain/consensus/processes/chainmanager"
	"github.com/nipopow/nipowd/domain/consensus/processes/coinbasemanager"
	"github.com/nipopow/nipowd/domain/consensus/processes/difficultymanager"
	"github.com/nipopow/nipowd/domain/consensus/processes/interlinkmanager"
	"github.com/nipopow/nipowd/domain/consensus/processes/pastmediantimemanager"
	"github.com/nipopow/nipowd/domain/consensus/utils/observable"
	"github.com/nipopow/nipowd/domain/consensus/utils/testutils"
	"github.com/nipopow/nipowd/infrastructure/db/database"
	"github.com/nipopow/nipowd/infrastructure/db/database/ldb"
	"github.com/pkg/errors"
)

const (
	defaultBlockCacheSize     = 200
	defaultChainDataCacheSize = 2000
	defaultTestUserCount      = 2
	testDatabaseCacheSizeMiB  = 8
)

// Factory instantiates new Consensuses
type Factory interface {
	NewConsensus(params *chainconfig.Params, db database.Database) (externalapi.Consensus, error)
	NewTestConsensus(params *chainconfig.Params, testName string) (
		tc testapi.TestConsensus, teardown func(keepDataDir bool), err error)
	CreateVolatileTestChain(params *chainconfig.Params, testName string, numBlocks int, numUsers int) (
		tc testapi.TestConsensus, teardown func(keepDataDir bool), err error)
}

type factory struct{}

// NewFactory creates a new Consensus factory
func NewFactory() Factory {
	return &factory{}
}

// NewConsensus instantiates a new Consensus. The genesis block is sealed
// and stored if db holds no chain yet.
func (f *factory) NewConsensus(params *chainconfig.Params, db database.Database) (externalapi.Consensus, error) {
	err := params.Validate()
	if err != nil {
		return nil, err
	}
	databaseContext := consensusdatabase.New(db)

	// Data Structures
	blockStore, err := blockstore.New(databaseContext, defaultBlockCacheSize)
	if err != nil {
		return nil, err
	}
	chainDataStore, err := chaindatastore.New(defaultChainDataCacheSize)
	if err != nil {
		return nil, err
	}
	coinbaseManager := coinbasemanager.New(params.BaseSubsidy, params.SubsidyReductionInterval)
	accountsTree := accountstree.New(coinbaseManager)

	// Processes
	pastMedianTimeManager := pastmediantimemanager.New(
		params.PastMedianTimeWindow,
		databaseContext,
		blockStore)
	difficultyManager := difficultymanager.New(
		params.PowMax,
		params.Genesis.TimeInMilliseconds,
		params.TargetTimePerBlock,
		params.DifficultyAdjustmentWindowSize,
		params.MaxDifficultyAdjustmentFactor,
		databaseContext,
		blockStore)
	interlinkManager := interlinkmanager.New(
		params.PowMax,
		databaseContext,
		blockStore)
	blockValidator := blockvalidator.New(
		params.PowMax,
		params.SkipProofOfWork,
		params.BlockVersion,
		params.MaxBlockSize,
		params.MaxExtraDataSize,
		params.TransactionValidityWindow,
		params.MaxTimestampDrift,
		databaseContext,
		difficultyManager,
		pastMedianTimeManager,
		interlinkManager,
		blockStore,
		chainDataStore)
	chainManager := chainmanager.New(
		databaseContext,
		interlinkManager,
		blockStore,
		chainDataStore,
		accountsTree)
	blockProcessor, err := blockprocessor.New(
		databaseContext,
		blockValidator,
		chainManager,
		blockStore,
		chainDataStore,
		params.MaxOrphanBlocks,
		params.OrphanExpiration,
		params.KnownInvalidCacheSize)
	if err != nil {
		return nil, err
	}
	blockBuilder := blockbuilder.New(
		databaseContext,
		params.BlockVersion,
		difficultyManager,
		pastMedianTimeManager,
		interlinkManager,
		chainManager,
		chainDataStore)

	c := &consensus{
		lock:            &sync.RWMutex{},
		databaseContext: databaseContext,
		params:          params,

		blockProcessor:        blockProcessor,
		blockBuilder:          blockBuilder,
		blockValidator:        blockValidator,
		chainManager:          chainManager,
		coinbaseManager:       coinbaseManager,
		difficultyManager:     difficultyManager,
		interlinkManager:      interlinkManager,
		pastMedianTimeManager: pastMedianTimeManager,

		blockStore:     blockStore,
		chainDataStore: chainDataStore,
		accountsTree:   accountsTree,

		observable: observable.New(),
	}

	err = c.initGenesis()
	if err != nil {
		return nil, err
	}
	err = c.refreshHead()
	if err != nil {
		return nil, err
	}

	log.Infof("Loaded %s chain with head %s at height %d", params.Name, c.headHash, c.headChainData.Height)
	return c, nil
}

func (f *factory) NewTestConsensus(params *chainconfig.Params, testName string) (
	tc testapi.TestConsensus, teardown func(keepDataDir bool), err error) {

	return f.newTestConsensus(params, testName, defaultTestUserCount)
}

// CreateVolatileTestChain creates a test consensus with numUsers users and
// extends its chain by numBlocks blocks
func (f *factory) CreateVolatileTestChain(params *chainconfig.Params, testName string, numBlocks int, numUsers int) (
	tc testapi.TestConsensus, teardown func(keepDataDir bool), err error) {

	tc, teardown, err = f.newTestConsensus(params, testName, numUsers)
	if err != nil {
		return nil, nil, err
	}
	err = tc.ExtendChain(numBlocks)
	if err != nil {
		teardown(false)
		return nil, nil, err
	}
	return tc, teardown, nil
}

func (f *factory) newTestConsensus(params *chainconfig.Params, testName string, numUsers int) (
	tc testapi.TestConsensus, teardown func(keepDataDir bool), err error) {

	if numUsers < 1 {
		return nil, nil, errors.Errorf("a test consensus needs at least one user, got %d", numUsers)
	}
	users, err := testutils.NewTestUsers(numUsers)
	if err != nil {
		return nil, nil, err
	}

	// The genesis reward goes to the first user
	testParams := *params
	testParams.Genesis = params.Genesis.Clone()
	testParams.Genesis.MinerAddress = users[0].Address

	dataDir, err := os.MkdirTemp("", testName)
	if err != nil {
		return nil, nil, errors.WithStack(err)
	}
	db, err := ldb.NewLevelDB(dataDir, testDatabaseCacheSizeMiB)
	if err != nil {
		return nil, nil, err
	}

	consensusAsInterface, err := f.NewConsensus(&testParams, db)
	if err != nil {
		db.Close()
		os.RemoveAll(dataDir)
		return nil, nil, err
	}

	c := consensusAsInterface.(*consensus)
	testConsensus := &testConsensus{
		consensus:        c,
		users:            users,
		testBlockBuilder: blockbuilder.NewTestBlockBuilder(c.blockBuilder),
	}
	teardown = func(keepDataDir bool) {
		err := db.Close()
		if err != nil {
			log.Errorf("Error closing the test database: %s", err)
		}
		if !keepDataDir {
			err = os.RemoveAll(dataDir)
			if err != nil {
				log.Errorf("Error removing data directory for test consensus: %s", err)
			}
		}
	}
	return testConsensus, teardown, nil
}
