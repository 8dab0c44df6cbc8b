package consensus

import (
	"os"
	"testing"

	"github.com/nipopow/nipowd/domain/chainconfig"
	"github.com/nipopow/nipowd/domain/consensus/model/externalapi"
	"github.com/nipopow/nipowd/domain/consensus/utils/consensushashing"
	"github.com/nipopow/nipowd/domain/consensus/utils/testutils"
	"github.com/nipopow/nipowd/infrastructure/db/database/ldb"
)

func TestNewConsensus(t *testing.T) {
	f := NewFactory()

	params := chainconfig.DevnetParams
	params.SkipProofOfWork = true

	tmpDir, err := os.MkdirTemp("", "TestNewConsensus")
	if err != nil {
		t.Fatalf("MkdirTemp: %s", err)
	}
	defer os.RemoveAll(tmpDir)

	db, err := ldb.NewLevelDB(tmpDir, 8)
	if err != nil {
		t.Fatalf("error in NewLevelDB: %s", err)
	}
	consensus, err := f.NewConsensus(&params, db)
	if err != nil {
		t.Fatalf("error in NewConsensus: %+v", err)
	}
	if consensus.HeadHeight() != 0 || !consensus.HeadHash().Equal(consensus.GenesisHash()) {
		t.Fatalf("Expected a new chain to start at its genesis block")
	}

	users, err := testutils.NewTestUsers(1)
	if err != nil {
		t.Fatalf("NewTestUsers: %+v", err)
	}
	block, err := consensus.BuildBlock(users[0].Address, nil, nil)
	if err != nil {
		t.Fatalf("BuildBlock: %+v", err)
	}
	result, ruleErr, err := consensus.PushBlockWithReason(block)
	if err != nil {
		t.Fatalf("PushBlockWithReason: %+v", err)
	}
	if result != externalapi.PushResultOKExtended {
		t.Fatalf("Expected a block straight from BuildBlock to extend the chain, got %s: %v", result, ruleErr)
	}
	genesisHash := consensus.GenesisHash()
	headHash := consensus.HeadHash()
	accountsHash, err := consensus.AccountsHash()
	if err != nil {
		t.Fatalf("AccountsHash: %+v", err)
	}

	err = db.Close()
	if err != nil {
		t.Fatalf("Close: %s", err)
	}
	db, err = ldb.NewLevelDB(tmpDir, 8)
	if err != nil {
		t.Fatalf("error in NewLevelDB: %s", err)
	}
	defer db.Close()

	reopened, err := f.NewConsensus(&params, db)
	if err != nil {
		t.Fatalf("error in NewConsensus: %+v", err)
	}
	if !reopened.GenesisHash().Equal(genesisHash) {
		t.Fatalf("Reopening the chain changed its genesis block")
	}
	if !reopened.HeadHash().Equal(headHash) || reopened.HeadHeight() != 1 {
		t.Fatalf("Reopening the chain lost its head")
	}
	reopenedAccountsHash, err := reopened.AccountsHash()
	if err != nil {
		t.Fatalf("AccountsHash: %+v", err)
	}
	if !reopenedAccountsHash.Equal(accountsHash) {
		t.Fatalf("Reopening the chain changed its accounts tree")
	}
	account, err := reopened.GetAccount(users[0].Address)
	if err != nil {
		t.Fatalf("GetAccount: %+v", err)
	}
	if account.Balance != params.BaseSubsidy {
		t.Fatalf("Expected the miner to hold one block subsidy, got %d", account.Balance)
	}
}

func TestGenesisIsDeterministic(t *testing.T) {
	testutils.ForAllNets(t, true, func(t *testing.T, params *chainconfig.Params) {
		factory := NewFactory()
		first, teardownFirst, err := factory.NewTestConsensus(params, "TestGenesisIsDeterministic_first")
		if err != nil {
			t.Fatalf("Error setting up consensus: %+v", err)
		}
		defer teardownFirst(false)
		second, teardownSecond, err := factory.NewTestConsensus(params, "TestGenesisIsDeterministic_second")
		if err != nil {
			t.Fatalf("Error setting up consensus: %+v", err)
		}
		defer teardownSecond(false)

		if !first.GenesisHash().Equal(second.GenesisHash()) {
			t.Fatalf("Two chains of the same network have different genesis blocks")
		}

		genesis, err := first.GetBlockAt(0)
		if err != nil {
			t.Fatalf("GetBlockAt: %+v", err)
		}
		if !genesis.Header.PrevHash.Equal(externalapi.NewZeroHash()) || len(genesis.Interlink) != 0 {
			t.Fatalf("The genesis block has a predecessor")
		}
		if !genesis.Header.BodyHash.Equal(consensushashing.BodyHash(genesis.Body)) {
			t.Fatalf("The genesis body hash does not match its body")
		}
		accountsHash, err := first.AccountsHash()
		if err != nil {
			t.Fatalf("AccountsHash: %+v", err)
		}
		if !accountsHash.Equal(genesis.Header.AccountsHash) {
			t.Fatalf("The genesis accounts hash does not match the accounts tree")
		}
	})
}
