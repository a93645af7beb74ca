package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"

	"traceview/internal/types"
)

var (
	bucketUIState = []byte("ui_state")
	keyUIState    = []byte("state")
)

// UIStateStore persists dashboard preferences across runs.
type UIStateStore interface {
	Load(ctx context.Context) (types.UIState, error)
	Save(ctx context.Context, state types.UIState) error
	Close() error
}

type bboltUIStateStore struct {
	db *bolt.DB
}

func NewUIStateStore(path string) (UIStateStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("state db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketUIState)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &bboltUIStateStore{db: db}, nil
}

func (s *bboltUIStateStore) Load(ctx context.Context) (types.UIState, error) {
	var state types.UIState
	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketUIState)
		if bucket == nil {
			return nil
		}
		raw := bucket.Get(keyUIState)
		if len(raw) == 0 {
			return nil
		}
		return json.Unmarshal(raw, &state)
	})
	if err != nil {
		return types.UIState{}, err
	}
	return state, nil
}

func (s *bboltUIStateStore) Save(ctx context.Context, state types.UIState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(bucketUIState)
		if err != nil {
			return err
		}
		return bucket.Put(keyUIState, raw)
	})
}

func (s *bboltUIStateStore) Close() error {
	return s.db.Close()
}
