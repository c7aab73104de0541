package storage

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/forgemesh/nodeagent/pkg/security"
	"github.com/forgemesh/nodeagent/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var bucketCompletions = []byte("completed_containers")

// BoltStore is a CompletionStore backed by a single-file bbolt database,
// the same embedded-KV pattern the teacher uses for its cluster state
// store, trimmed to the one bucket this package needs. Records are sealed
// under the cluster encryption key before being written to disk, so a
// stolen data directory doesn't reveal which containers this node has run.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (creating if absent) the completion-tombstone
// database under dataDir.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "nodeagent-completions.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open completion store: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketCompletions)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create completion bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Close closes the underlying database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

type completionRecord struct {
	Tombstoned bool `json:"tombstoned"`
}

// Tombstone records id as reported-complete and no longer replayable.
func (s *BoltStore) Tombstone(id types.ContainerID) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketCompletions)
		data, err := json.Marshal(completionRecord{Tombstoned: true})
		if err != nil {
			return fmt.Errorf("marshal completion record: %w", err)
		}
		sealed, err := security.Encrypt(data)
		if err != nil {
			return fmt.Errorf("seal completion record: %w", err)
		}
		return b.Put([]byte(id.String()), sealed)
	})
}

// IsTombstoned reports whether id was already recorded complete.
func (s *BoltStore) IsTombstoned(id types.ContainerID) (bool, error) {
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketCompletions)
		sealed := b.Get([]byte(id.String()))
		if sealed == nil {
			return nil
		}
		data, err := security.Decrypt(sealed)
		if err != nil {
			return fmt.Errorf("open completion record: %w", err)
		}
		var rec completionRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return fmt.Errorf("unmarshal completion record: %w", err)
		}
		found = rec.Tombstoned
		return nil
	})
	return found, err
}

var _ CompletionStore = (*BoltStore)(nil)
