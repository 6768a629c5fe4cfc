package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	bolt "go.etcd.io/bbolt"

	"github.com/taylored/runnerd/pkg/types"
)

var bucketRunners = []byte("runners")

// BoltStore implements Store using BoltDB.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (or creates) the journal under dataDir.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, "runnerd.db")

	db, err := bolt.Open(dbPath, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketRunners)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create runners bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// PutRunner upserts a record keyed by session id.
func (s *BoltStore) PutRunner(record *types.RunnerRecord) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRunners)
		data, err := json.Marshal(record)
		if err != nil {
			return err
		}
		return b.Put([]byte(record.SessionID), data)
	})
}

// GetRunner returns the journaled record for sessionID.
func (s *BoltStore) GetRunner(sessionID string) (*types.RunnerRecord, error) {
	var record types.RunnerRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRunners)
		data := b.Get([]byte(sessionID))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &record)
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// ListRunners returns every journaled record.
func (s *BoltStore) ListRunners() ([]*types.RunnerRecord, error) {
	var records []*types.RunnerRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRunners)
		return b.ForEach(func(k, v []byte) error {
			var record types.RunnerRecord
			if err := json.Unmarshal(v, &record); err != nil {
				return err
			}
			records = append(records, &record)
			return nil
		})
	})
	return records, err
}

// DeleteRunner removes the record for sessionID. Deleting a missing record
// is not an error.
func (s *BoltStore) DeleteRunner(sessionID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRunners).Delete([]byte(sessionID))
	})
}
