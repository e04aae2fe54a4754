package storage

import (
	"context"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// checkpointKeyPrefix namespaces checkpoint keys as "CK/<job>/<key>"
var checkpointKeyPrefix = []byte{'C', 'K', '/'}

var syncWrite = &opt.WriteOptions{Sync: true}

// LevelDB holds checkpoint state in a goleveldb database
type LevelDB struct {
	db *leveldb.DB
}

// OpenLevelDB opens or creates the leveldb directory at path
func OpenLevelDB(path string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open leveldb: %w", err)
	}
	return &LevelDB{db: db}, nil
}

// Close releases the database
func (l *LevelDB) Close() error {
	return l.db.Close()
}

// States returns the checkpoint store scoped to job
func (l *LevelDB) States(job string) *LevelStore {
	prefix := append(append([]byte(nil), checkpointKeyPrefix...), []byte(job+"/")...)
	return &LevelStore{db: l.db, prefix: prefix}
}

// LevelStore is the checkpoint key/value view of a single job
type LevelStore struct {
	db     *leveldb.DB
	prefix []byte
}

func (s *LevelStore) key(name string) []byte {
	return append(append([]byte(nil), s.prefix...), name...)
}

// Get returns the value stored under key, reporting false when absent
func (s *LevelStore) Get(_ context.Context, key string) (string, bool, error) {
	value, err := s.db.Get(s.key(key), nil)
	if err == leveldb.ErrNotFound {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return string(value), true, nil
}

// Set stores value under key with a synced write
func (s *LevelStore) Set(_ context.Context, key, value string) error {
	if err := s.db.Put(s.key(key), []byte(value), syncWrite); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// ClearAll removes every key under the job prefix in one batch
func (s *LevelStore) ClearAll(_ context.Context) error {
	iter := s.db.NewIterator(util.BytesPrefix(s.prefix), nil)
	batch := new(leveldb.Batch)
	for iter.Next() {
		batch.Delete(append([]byte(nil), iter.Key()...))
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		return fmt.Errorf("failed to scan checkpoint keys: %w", err)
	}

	if err := s.db.Write(batch, syncWrite); err != nil {
		return fmt.Errorf("failed to clear checkpoint: %w", err)
	}
	return nil
}
