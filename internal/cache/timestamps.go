package cache

import (
	"encoding/binary"
	"errors"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketTimestamps = []byte("block_timestamps")

// TimestampStore persists block timestamps keyed by block number, so repeated
// day-boundary searches and log fetches avoid header calls.
type TimestampStore struct {
	db *bolt.DB
}

// OpenTimestampStore opens (and creates when missing) the Bolt file at path.
func OpenTimestampStore(path string) (*TimestampStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketTimestamps)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &TimestampStore{db: db}, nil
}

func (s *TimestampStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Get returns the cached timestamp for block.
func (s *TimestampStore) Get(block uint64) (uint64, bool, error) {
	var ts uint64
	var ok bool
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketTimestamps).Get(blockKey(block))
		if raw == nil {
			return nil
		}
		if len(raw) != 8 {
			return errors.New("corrupt timestamp entry")
		}
		ts = binary.BigEndian.Uint64(raw)
		ok = true
		return nil
	})
	return ts, ok, err
}

// Put stores the timestamp for block.
func (s *TimestampStore) Put(block, ts uint64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], ts)
		return tx.Bucket(bucketTimestamps).Put(blockKey(block), buf[:])
	})
}

// Len returns the number of cached entries.
func (s *TimestampStore) Len() (int, error) {
	var n int
	err := s.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(bucketTimestamps).Stats().KeyN
		return nil
	})
	return n, err
}

func blockKey(block uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, block)
	return key
}
