package registry

import (
	"encoding/json"
	"errors"
	"fmt"

	"fileflow/models"

	pebble "github.com/cockroachdb/pebble"
)

const (
	jobPrefix  = "job/"
	filePrefix = "file/"
)

// Store persists registry state. Writes must be durable before they return.
type Store interface {
	SaveJob(job models.ConversionJob) error
	DeleteJob(id models.JobID) error
	SaveFile(file models.UploadedFile) error
	DeleteFile(id models.FileID) error
	LoadJobs() ([]models.ConversionJob, error)
	LoadFiles() ([]models.UploadedFile, error)
	CheckHealth() error
	Close() error
}

// PebbleStore is a small wrapper around a Pebble DB holding jobs and files
// under separate key prefixes.
type PebbleStore struct {
	DB       *pebble.DB
	DataFile string
}

// OpenPebbleStore opens (or creates) a pebble DB at dataFile.
func OpenPebbleStore(dataFile string) (*PebbleStore, error) {
	db, err := pebble.Open(dataFile, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open registry store: %w", err)
	}
	return &PebbleStore{DB: db, DataFile: dataFile}, nil
}

func (s *PebbleStore) put(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return s.DB.Set([]byte(key), data, pebble.Sync)
}

func (s *PebbleStore) SaveJob(job models.ConversionJob) error {
	return s.put(jobPrefix+string(job.ID), job)
}

func (s *PebbleStore) DeleteJob(id models.JobID) error {
	return s.DB.Delete([]byte(jobPrefix+string(id)), pebble.Sync)
}

func (s *PebbleStore) SaveFile(file models.UploadedFile) error {
	return s.put(filePrefix+string(file.ID), file)
}

func (s *PebbleStore) DeleteFile(id models.FileID) error {
	return s.DB.Delete([]byte(filePrefix+string(id)), pebble.Sync)
}

// scan calls fn with every value stored under prefix.
func (s *PebbleStore) scan(prefix string, fn func(value []byte) error) error {
	iter, err := s.DB.NewIter(&pebble.IterOptions{
		LowerBound: []byte(prefix),
		UpperBound: prefixUpperBound([]byte(prefix)),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		if err := fn(iter.Value()); err != nil {
			return err
		}
	}
	return iter.Error()
}

func (s *PebbleStore) LoadJobs() ([]models.ConversionJob, error) {
	var jobs []models.ConversionJob
	err := s.scan(jobPrefix, func(value []byte) error {
		var job models.ConversionJob
		if err := json.Unmarshal(value, &job); err != nil {
			return nil // Skip invalid records
		}
		jobs = append(jobs, job)
		return nil
	})
	return jobs, err
}

func (s *PebbleStore) LoadFiles() ([]models.UploadedFile, error) {
	var files []models.UploadedFile
	err := s.scan(filePrefix, func(value []byte) error {
		var file models.UploadedFile
		if err := json.Unmarshal(value, &file); err != nil {
			return nil
		}
		files = append(files, file)
		return nil
	})
	return files, err
}

// CheckHealth performs a basic read against the database.
func (s *PebbleStore) CheckHealth() error {
	_, closer, err := s.DB.Get([]byte("__health_check__"))
	if err != nil && !errors.Is(err, pebble.ErrNotFound) {
		return fmt.Errorf("registry health check failed: %w", err)
	}
	if closer != nil {
		closer.Close()
	}
	return nil
}

func (s *PebbleStore) Close() error {
	return s.DB.Close()
}

func prefixUpperBound(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}
