package storage

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.etcd.io/bbolt"
)

// TrainingRun records the outcome of one training invocation.
type TrainingRun struct {
	ID               string        `json:"id"`
	BundleID         string        `json:"bundle_id"`
	Source           string        `json:"source"`
	StartedAt        time.Time     `json:"started_at"`
	Duration         time.Duration `json:"duration"`
	TrainingRows     int           `json:"training_rows"`
	HoldoutRows      int           `json:"holdout_rows"`
	Accuracy         float64       `json:"accuracy"`
	BaselineAccuracy float64       `json:"baseline_accuracy"`
	ModelPath        string        `json:"model_path"`
	Version          string        `json:"version,omitempty"`
}

// StoreRun saves a run; an ID is assigned when empty.
func (s *Store) StoreRun(run *TrainingRun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(runsBucket))

		data, err := json.Marshal(run)
		if err != nil {
			return fmt.Errorf("marshal run: %w", err)
		}
		return b.Put(runKey(run.StartedAt, run.ID), data)
	})
}

// GetRuns returns runs started within [start, end], oldest first.
func (s *Store) GetRuns(start, end time.Time) ([]TrainingRun, error) {
	var runs []TrainingRun

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(runsBucket)).Cursor()
		startKey := []byte(fmt.Sprintf("%020d", start.UnixNano()))
		endKey := []byte(fmt.Sprintf("%020d", end.UnixNano()))

		for k, v := c.Seek(startKey); k != nil && string(k[:20]) <= string(endKey); k, v = c.Next() {
			var run TrainingRun
			if err := json.Unmarshal(v, &run); err != nil {
				continue // skip malformed records
			}
			runs = append(runs, run)
		}
		return nil
	})

	return runs, err
}

// LatestRun returns the most recent run, or nil when none is stored.
func (s *Store) LatestRun() (*TrainingRun, error) {
	var run *TrainingRun
	err := s.db.View(func(tx *bbolt.Tx) error {
		_, v := tx.Bucket([]byte(runsBucket)).Cursor().Last()
		if v == nil {
			return nil
		}
		run = &TrainingRun{}
		return json.Unmarshal(v, run)
	})
	if err != nil {
		return nil, fmt.Errorf("latest run: %w", err)
	}
	return run, nil
}

// runKey sorts by start time; the id keeps runs in the same nanosecond apart.
func runKey(startedAt time.Time, id string) []byte {
	return []byte(fmt.Sprintf("%020d_%s", startedAt.UnixNano(), id))
}
