// Package history keeps a small on-disk ledger of past monitor runs.
package history

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/paywatch/pmtproc/internal/report"
)

var bucketRuns = []byte("runs")

// Record summarizes one completed monitor run.
type Record struct {
	Slug       string               `json:"slug"`
	Target     string               `json:"target"`
	HARPath    string               `json:"har_path"`
	StartedAt  time.Time            `json:"started_at"`
	FinishedAt time.Time            `json:"finished_at"`
	StopReason string               `json:"stop_reason"`
	MatchCount int                  `json:"match_count"`
	Domains    []report.DomainCount `json:"domains,omitempty"`
}

// Store is a BoltDB-backed run ledger.
type Store struct {
	db *bolt.DB
}

// Open opens (or creates) the ledger at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketRuns)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create history bucket: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Append stores a run record. Keys are time-ordered so List returns runs
// chronologically.
func (s *Store) Append(rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode run record: %w", err)
	}

	key := []byte(rec.FinishedAt.UTC().Format(time.RFC3339Nano) + "_" + rec.Slug)

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRuns)
		if b == nil {
			return fmt.Errorf("history bucket missing")
		}
		return b.Put(key, data)
	})
}

// List returns all recorded runs in chronological order.
func (s *Store) List() ([]Record, error) {
	var out []Record

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRuns)
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			var rec Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return nil // skip records written by other versions
			}
			out = append(out, rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}
