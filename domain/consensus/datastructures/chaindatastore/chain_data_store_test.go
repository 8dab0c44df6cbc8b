package chaindatastore

import (
	"math/big"
	"testing"

	"github.com/nipopow/nipowd/domain/consensus/database"
	"github.com/nipopow/nipowd/domain/consensus/model"
	"github.com/nipopow/nipowd/domain/consensus/model/externalapi"
	"github.com/nipopow/nipowd/domain/consensus/utils/testutils"
)

func hashOf(b byte) *externalapi.DomainHash {
	return externalapi.NewDomainHashFromByteArray(&[externalapi.DomainHashSize]byte{b})
}

func TestChainDataStore(t *testing.T) {
	dbManager, teardown := testutils.NewTestDatabase(t, "TestChainDataStore")
	defer teardown()

	store, err := New(10)
	if err != nil {
		t.Fatalf("New: %+v", err)
	}

	hasHead, err := store.HasHead(dbManager, model.NewStagingArea())
	if err != nil {
		t.Fatalf("HasHead: %+v", err)
	}
	if hasHead {
		t.Fatalf("TestChainDataStore: an empty store must not have a head")
	}

	genesisHash, childHash := hashOf(1), hashOf(2)
	genesisData := &externalapi.ChainData{
		TotalWork:        big.NewInt(2),
		OnMainChain:      true,
		SuperBlockCounts: []uint32{1},
	}
	childData := &externalapi.ChainData{
		TotalWork:        big.NewInt(4),
		Height:           1,
		OnMainChain:      true,
		SuperBlockCounts: []uint32{2, 1},
	}

	stagingArea := model.NewStagingArea()
	store.Stage(stagingArea, genesisHash, genesisData)
	store.Stage(stagingArea, childHash, childData)
	store.StageMainChainHash(stagingArea, 0, genesisHash)
	store.StageMainChainHash(stagingArea, 1, childHash)
	store.StageHead(stagingArea, childHash)
	testutils.CommitStagingArea(t, dbManager, stagingArea)

	// A fresh store must read everything back from the database
	reopened, err := New(10)
	if err != nil {
		t.Fatalf("New: %+v", err)
	}
	readStagingArea := model.NewStagingArea()
	head, err := reopened.Head(dbManager, readStagingArea)
	if err != nil {
		t.Fatalf("Head: %+v", err)
	}
	if !head.Equal(childHash) {
		t.Fatalf("TestChainDataStore: expected head %s, got %s", childHash, head)
	}
	mainChainHash, err := reopened.MainChainHash(dbManager, readStagingArea, 0)
	if err != nil {
		t.Fatalf("MainChainHash: %+v", err)
	}
	if !mainChainHash.Equal(genesisHash) {
		t.Fatalf("TestChainDataStore: expected %s at height 0, got %s", genesisHash, mainChainHash)
	}
	storedChildData, err := reopened.ChainData(dbManager, readStagingArea, childHash)
	if err != nil {
		t.Fatalf("ChainData: %+v", err)
	}
	if !storedChildData.Equal(childData) {
		t.Fatalf("TestChainDataStore: stored chain data differs from the staged one")
	}

	// Simulate a revert of the child
	revertStagingArea := model.NewStagingArea()
	genesisData.MainChainSuccessor = nil
	reopened.Stage(revertStagingArea, genesisHash, genesisData)
	reopened.Delete(revertStagingArea, childHash)
	reopened.DeleteMainChainHash(revertStagingArea, 1)
	reopened.StageHead(revertStagingArea, genesisHash)

	exists, err := reopened.Has(dbManager, revertStagingArea, childHash)
	if err != nil {
		t.Fatalf("Has: %+v", err)
	}
	if exists {
		t.Fatalf("TestChainDataStore: deleted chain data must not be visible in its staging area")
	}
	testutils.CommitStagingArea(t, dbManager, revertStagingArea)

	_, err = reopened.MainChainHash(dbManager, model.NewStagingArea(), 1)
	if !database.IsNotFoundError(err) {
		t.Fatalf("TestChainDataStore: expected ErrNotFound at height 1, got: %v", err)
	}
	_, err = reopened.ChainData(dbManager, model.NewStagingArea(), childHash)
	if !database.IsNotFoundError(err) {
		t.Fatalf("TestChainDataStore: expected ErrNotFound for deleted chain data, got: %v", err)
	}
	head, err = reopened.Head(dbManager, model.NewStagingArea())
	if err != nil {
		t.Fatalf("Head: %+v", err)
	}
	if !head.Equal(genesisHash) {
		t.Fatalf("TestChainDataStore: expected head %s, got %s", genesisHash, head)
	}
}
