// Package bolt wraps bbolt with JSON document helpers used by the
// docwallet repository.
package bolt

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

// ErrKeyNotFound is returned when a key is absent from a bucket.
var ErrKeyNotFound = errors.New("key not found")

// DB wraps a bbolt database with helper methods.
type DB struct {
	*bolt.DB
}

// Open opens or creates a bbolt database.
func Open(path string) (*DB, error) {
	boltDB, err := bolt.Open(path, 0600, &bolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &DB{boltDB}, nil
}

// CreateBuckets creates every named bucket if it does not exist.
func (db *DB) CreateBuckets(names ...string) error {
	return db.Update(func(tx *bolt.Tx) error {
		for _, name := range names {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", name, err)
			}
		}
		return nil
	})
}

// PutJSON stores a value as JSON in the specified bucket.
func (db *DB) PutJSON(bucket, key string, value interface{}) error {
	return db.Update(func(tx *bolt.Tx) error {
		return PutJSONTx(tx, bucket, key, value)
	})
}

// GetJSON retrieves a value as JSON from the specified bucket.
func (db *DB) GetJSON(bucket, key string, value interface{}) error {
	return db.View(func(tx *bolt.Tx) error {
		return GetJSONTx(tx, bucket, key, value)
	})
}

// Delete removes a key from the specified bucket.
func (db *DB) Delete(bucket, key string) error {
	return db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("bucket not found: %s", bucket)
		}
		return b.Delete([]byte(key))
	})
}

// List returns all keys in the specified bucket.
func (db *DB) List(bucket string) ([]string, error) {
	var keys []string

	err := db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("bucket not found: %s", bucket)
		}

		return b.ForEach(func(k, v []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})

	return keys, err
}

// ForEachJSON iterates over all values in a bucket, unmarshaling each
// into a fresh value produced by newValue.
func (db *DB) ForEachJSON(bucket string, newValue func() interface{}, fn func(key string, value interface{}) error) error {
	return db.View(func(tx *bolt.Tx) error {
		return ForEachJSONTx(tx, bucket, newValue, fn)
	})
}

// NextSequence returns a monotonically increasing counter for a bucket.
// Used to order append-only rows.
func (db *DB) NextSequence(bucket string) (uint64, error) {
	var seq uint64
	err := db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("bucket not found: %s", bucket)
		}
		var err error
		seq, err = b.NextSequence()
		return err
	})
	return seq, err
}

// PutJSONTx stores a value as JSON inside an open transaction. Repository
// operations that must change several records atomically compose these
// transaction-level helpers under one Update.
func PutJSONTx(tx *bolt.Tx, bucket, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	b := tx.Bucket([]byte(bucket))
	if b == nil {
		return fmt.Errorf("bucket not found: %s", bucket)
	}
	return b.Put([]byte(key), data)
}

// GetJSONTx retrieves a JSON value inside an open transaction.
func GetJSONTx(tx *bolt.Tx, bucket, key string, value interface{}) error {
	b := tx.Bucket([]byte(bucket))
	if b == nil {
		return fmt.Errorf("bucket not found: %s", bucket)
	}

	data := b.Get([]byte(key))
	if data == nil {
		return fmt.Errorf("%w: %s/%s", ErrKeyNotFound, bucket, key)
	}

	return json.Unmarshal(data, value)
}

// DeleteTx removes a key inside an open transaction.
func DeleteTx(tx *bolt.Tx, bucket, key string) error {
	b := tx.Bucket([]byte(bucket))
	if b == nil {
		return fmt.Errorf("bucket not found: %s", bucket)
	}
	return b.Delete([]byte(key))
}

// ForEachJSONTx iterates a bucket inside an open transaction.
func ForEachJSONTx(tx *bolt.Tx, bucket string, newValue func() interface{}, fn func(key string, value interface{}) error) error {
	b := tx.Bucket([]byte(bucket))
	if b == nil {
		return fmt.Errorf("bucket not found: %s", bucket)
	}

	return b.ForEach(func(k, v []byte) error {
		value := newValue()
		if err := json.Unmarshal(v, value); err != nil {
			return fmt.Errorf("failed to unmarshal %s: %w", k, err)
		}
		return fn(string(k), value)
	})
}

// NextSequenceTx advances a bucket sequence inside an open transaction.
func NextSequenceTx(tx *bolt.Tx, bucket string) (uint64, error) {
	b := tx.Bucket([]byte(bucket))
	if b == nil {
		return 0, fmt.Errorf("bucket not found: %s", bucket)
	}
	return b.NextSequence()
}
