package database_test

import (
	"bytes"
	"testing"

	"github.com/nipopow/nipowd/infrastructure/db/database"
)

func TestDatabaseCursorIteratesBucket(t *testing.T) {
	testForAllDatabaseTypes(t, "TestDatabaseCursorIteratesBucket", testDatabaseCursorIteratesBucket)
}

func testDatabaseCursorIteratesBucket(t *testing.T, db database.Database, testName string) {
	entries := populateDatabaseForTest(t, db, testName)

	// A key outside the bucket must not be visited
	err := db.Put(database.MakeBucket([]byte("other")).Key([]byte("key")), []byte("other"))
	if err != nil {
		t.Fatalf("%s: Put unexpectedly failed: %s", testName, err)
	}

	cursor, err := db.Cursor(database.MakeBucket(nil))
	if err != nil {
		t.Fatalf("%s: Cursor unexpectedly failed: %s", testName, err)
	}
	defer cursor.Close()

	count := 0
	for ok := cursor.First(); ok; ok = cursor.Next() {
		value, err := cursor.Value()
		if err != nil {
			t.Fatalf("%s: Value unexpectedly failed: %s", testName, err)
		}
		if !bytes.Equal(value, []byte("value")) {
			t.Fatalf("%s: unexpected value %s", testName, value)
		}
		count++
	}
	if count != len(entries) {
		t.Fatalf("%s: cursor visited %d entries, expected %d", testName, count, len(entries))
	}
}

func TestDatabaseSnapshotIsolation(t *testing.T) {
	testForAllDatabaseTypes(t, "TestDatabaseSnapshotIsolation", testDatabaseSnapshotIsolation)
}

func testDatabaseSnapshotIsolation(t *testing.T, db database.Database, testName string) {
	entries := populateDatabaseForTest(t, db, testName)

	snapshot, err := db.Snapshot()
	if err != nil {
		t.Fatalf("%s: Snapshot unexpectedly failed: %s", testName, err)
	}
	defer snapshot.Release()

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("%s: Begin unexpectedly failed: %s", testName, err)
	}
	for _, entry := range entries {
		err := tx.Delete(entry.key)
		if err != nil {
			t.Fatalf("%s: Delete unexpectedly failed: %s", testName, err)
		}
	}
	err = tx.Commit()
	if err != nil {
		t.Fatalf("%s: Commit unexpectedly failed: %s", testName, err)
	}

	for _, entry := range entries {
		exists, err := snapshot.Has(entry.key)
		if err != nil {
			t.Fatalf("%s: Has unexpectedly failed: %s", testName, err)
		}
		if !exists {
			t.Fatalf("%s: snapshot lost key %s after a later delete", testName, entry.key)
		}
		exists, err = db.Has(entry.key)
		if err != nil {
			t.Fatalf("%s: Has unexpectedly failed: %s", testName, err)
		}
		if exists {
			t.Fatalf("%s: key %s was not deleted", testName, entry.key)
		}
	}
}
