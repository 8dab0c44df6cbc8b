package ldb

import (
	"github.com/nipopow/nipowd/infrastructure/db/database"
	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// LevelDBSnapshot is a read-only view of the database
// as it was when the snapshot was taken.
type LevelDBSnapshot struct {
	snapshot   *leveldb.Snapshot
	isReleased bool
}

// Release releases the underlying leveldb snapshot.
func (s *LevelDBSnapshot) Release() {
	if s.isReleased {
		return
	}
	s.isReleased = true
	s.snapshot.Release()
}

// Get gets the value for the given key. It returns
// ErrNotFound if the given key does not exist.
func (s *LevelDBSnapshot) Get(key *database.Key) ([]byte, error) {
	if s.isReleased {
		return nil, errors.New("cannot get from a released snapshot")
	}
	data, err := s.snapshot.Get(key.Bytes(), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, errors.Wrapf(database.ErrNotFound,
				"key %s not found", key)
		}
		return nil, errors.WithStack(err)
	}
	return data, nil
}

// Has returns true if the snapshot contains the given key.
func (s *LevelDBSnapshot) Has(key *database.Key) (bool, error) {
	if s.isReleased {
		return false, errors.New("cannot has from a released snapshot")
	}
	res, err := s.snapshot.Has(key.Bytes(), nil)
	return res, errors.WithStack(err)
}

// Cursor begins a new cursor over the given bucket.
func (s *LevelDBSnapshot) Cursor(bucket *database.Bucket) (database.Cursor, error) {
	if s.isReleased {
		return nil, errors.New("cannot open a cursor from a released snapshot")
	}
	return newLevelDBCursor(s.snapshot.NewIterator(utilBytesPrefix(bucket), nil), bucket), nil
}

func utilBytesPrefix(bucket *database.Bucket) *util.Range {
	return util.BytesPrefix(bucket.Path())
}
