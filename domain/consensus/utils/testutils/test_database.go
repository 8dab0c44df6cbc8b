package testutils

import (
	"os"
	"testing"

	consensusdatabase "github.com/nipopow/nipowd/domain/consensus/database"
	"github.com/nipopow/nipowd/domain/consensus/model"
	"github.com/nipopow/nipowd/infrastructure/db/database/ldb"
)

// NewTestDatabase opens a leveldb database in a fresh temporary directory.
// The returned teardown func closes the database and removes the directory.
func NewTestDatabase(t *testing.T, testName string) (dbManager model.DBManager, teardownFunc func()) {
	path, err := os.MkdirTemp("", testName)
	if err != nil {
		t.Fatalf("%s: TempDir unexpectedly failed: %s", testName, err)
	}
	db, err := ldb.NewLevelDB(path, 8)
	if err != nil {
		t.Fatalf("%s: NewLevelDB unexpectedly failed: %s", testName, err)
	}
	teardownFunc = func() {
		err := db.Close()
		if err != nil {
			t.Errorf("%s: Close unexpectedly failed: %s", testName, err)
		}
		os.RemoveAll(path)
	}
	return consensusdatabase.New(db), teardownFunc
}

// CommitStagingArea commits stagingArea in a database transaction of its own
func CommitStagingArea(t *testing.T, dbManager model.DBManager, stagingArea *model.StagingArea) {
	dbTx, err := dbManager.Begin()
	if err != nil {
		t.Fatalf("Begin: %+v", err)
	}
	defer dbTx.RollbackUnlessClosed()

	err = stagingArea.Commit(dbTx)
	if err != nil {
		t.Fatalf("Commit staging area: %+v", err)
	}
	err = dbTx.Commit()
	if err != nil {
		t.Fatalf("Commit: %+v", err)
	}
}
