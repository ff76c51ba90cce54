package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"fileflow/models"

	pebble "github.com/cockroachdb/pebble"
)

const (
	successPrefix = "success/"
	failurePrefix = "failure/"
)

// PebbleStore keeps records on local disk for the record query endpoints.
type PebbleStore struct {
	db *pebble.DB
}

// OpenPebbleStore opens or creates the records database at path.
func OpenPebbleStore(path string) (*PebbleStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open records store: %w", err)
	}
	return &PebbleStore{db: db}, nil
}

func (s *PebbleStore) Name() string { return "pebble" }

func recordKey(r models.ConversionRecord) []byte {
	if r.Succeeded() {
		return []byte(successPrefix + string(r.JobID))
	}
	return []byte(failurePrefix + string(r.JobID))
}

// Write stores r under its outcome prefix.
func (s *PebbleStore) Write(ctx context.Context, r models.ConversionRecord) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	return s.db.Set(recordKey(r), data, pebble.Sync)
}

// Get returns the record of a job, or not_found.
func (s *PebbleStore) Get(id models.JobID) (models.ConversionRecord, error) {
	for _, prefix := range []string{successPrefix, failurePrefix} {
		data, closer, err := s.db.Get([]byte(prefix + string(id)))
		if errors.Is(err, pebble.ErrNotFound) {
			continue
		}
		if err != nil {
			return models.ConversionRecord{}, err
		}
		var r models.ConversionRecord
		err = json.Unmarshal(data, &r)
		closer.Close()
		if err != nil {
			return models.ConversionRecord{}, fmt.Errorf("failed to unmarshal record: %w", err)
		}
		return r, nil
	}
	return models.ConversionRecord{}, models.NewError(models.KindNotFound, "no record for job %s", id)
}

// ListSuccess returns success records, newest first. limit <= 0 means all.
func (s *PebbleStore) ListSuccess(limit int) ([]models.ConversionRecord, error) {
	return s.list(successPrefix, limit)
}

// ListFailures returns failure records, newest first. limit <= 0 means all.
func (s *PebbleStore) ListFailures(limit int) ([]models.ConversionRecord, error) {
	return s.list(failurePrefix, limit)
}

func (s *PebbleStore) list(prefix string, limit int) ([]models.ConversionRecord, error) {
	var out []models.ConversionRecord
	err := s.scan(prefix, func(_ []byte, r models.ConversionRecord) {
		out = append(out, r)
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CompletedAt.After(out[j].CompletedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *PebbleStore) scan(prefix string, fn func(key []byte, r models.ConversionRecord)) error {
	upper := []byte(prefix)
	upper[len(upper)-1]++
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: []byte(prefix), UpperBound: upper})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		var r models.ConversionRecord
		if err := json.Unmarshal(iter.Value(), &r); err != nil {
			continue // skip invalid records
		}
		key := make([]byte, len(iter.Key()))
		copy(key, iter.Key())
		fn(key, r)
	}
	return iter.Error()
}

// CleanupOldRecords removes records completed more than maxAge ago and
// returns how many were removed.
func (s *PebbleStore) CleanupOldRecords(maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)
	var stale [][]byte
	for _, prefix := range []string{successPrefix, failurePrefix} {
		err := s.scan(prefix, func(key []byte, r models.ConversionRecord) {
			if r.CompletedAt.Before(cutoff) {
				stale = append(stale, key)
			}
		})
		if err != nil {
			return 0, err
		}
	}

	batch := s.db.NewBatch()
	defer batch.Close()
	for _, key := range stale {
		if err := batch.Delete(key, nil); err != nil {
			return 0, err
		}
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return 0, fmt.Errorf("failed to delete old records: %w", err)
	}
	return len(stale), nil
}

// CheckHealth performs a basic read against the database.
func (s *PebbleStore) CheckHealth() error {
	_, closer, err := s.db.Get([]byte("__health_check__"))
	if err != nil && !errors.Is(err, pebble.ErrNotFound) {
		return fmt.Errorf("records database health check failed: %w", err)
	}
	if closer != nil {
		closer.Close()
	}
	return nil
}

func (s *PebbleStore) Close() error {
	return s.db.Close()
}
