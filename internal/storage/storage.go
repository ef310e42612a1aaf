// Package storage provides persistent data storage for the recommender.
// It uses BoltDB as the underlying storage engine to keep labeled training
// examples and the history of training runs.
//
// Examples are grouped by source name so a store can hold several data sets
// side by side; runs are keyed by start time for range queries.
package storage

import (
	"encoding/binary"
	"fmt"
	"path/filepath"
	"time"

	"workout-recommender/internal/ml"

	"github.com/goccy/go-json"
	"go.etcd.io/bbolt"
)

const (
	examplesBucket = "examples" // labeled training examples
	runsBucket     = "runs"     // training run history
)

// DBFile is the database file name inside the data directory.
const DBFile = "recommender-data.db"

// Store provides persistent storage using BoltDB.
type Store struct {
	db *bbolt.DB
}

// New opens (or creates) the database in dataPath and makes sure all buckets exist.
func New(dataPath string) (*Store, error) {
	dbPath := filepath.Join(dataPath, DBFile)

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(examplesBucket)); err != nil {
			return fmt.Errorf("create examples bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(runsBucket)); err != nil {
			return fmt.Errorf("create runs bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// StoreExamples appends examples under source in a single transaction. Each
// source owns a nested bucket keyed by sequence, so iteration returns
// examples in insertion order and sources never share keys.
func (s *Store) StoreExamples(source string, examples []ml.TrainingExample) error {
	if source == "" {
		return fmt.Errorf("store examples: empty source name")
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.Bucket([]byte(examplesBucket)).CreateBucketIfNotExists([]byte(source))
		if err != nil {
			return fmt.Errorf("create source bucket %s: %w", source, err)
		}
		for i, ex := range examples {
			data, err := json.Marshal(ex)
			if err != nil {
				return fmt.Errorf("marshal example %d: %w", i, err)
			}
			seq, err := b.NextSequence()
			if err != nil {
				return fmt.Errorf("next sequence: %w", err)
			}
			if err := b.Put(sequenceKey(seq), data); err != nil {
				return fmt.Errorf("put example %d: %w", i, err)
			}
		}
		return nil
	})
}

// GetExamples returns every example stored under source, oldest first.
func (s *Store) GetExamples(source string) ([]ml.TrainingExample, error) {
	var examples []ml.TrainingExample
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := sourceBucket(tx, source)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var ex ml.TrainingExample
			if err := json.Unmarshal(v, &ex); err != nil {
				return fmt.Errorf("unmarshal example %s/%d: %w", source, binary.BigEndian.Uint64(k), err)
			}
			examples = append(examples, ex)
			return nil
		})
	})
	return examples, err
}

// CountExamples returns how many examples are stored under source.
func (s *Store) CountExamples(source string) (int, error) {
	n := 0
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := sourceBucket(tx, source)
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// DeleteExamples removes every example stored under source.
func (s *Store) DeleteExamples(source string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if sourceBucket(tx, source) == nil {
			return nil
		}
		if err := tx.Bucket([]byte(examplesBucket)).DeleteBucket([]byte(source)); err != nil {
			return fmt.Errorf("delete examples %s: %w", source, err)
		}
		return nil
	})
}

func sourceBucket(tx *bbolt.Tx, source string) *bbolt.Bucket {
	if source == "" {
		return nil
	}
	return tx.Bucket([]byte(examplesBucket)).Bucket([]byte(source))
}

func sequenceKey(seq uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, seq)
	return k
}
