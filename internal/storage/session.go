// Package storage keeps completed run records for the lifetime of one
// process. The backing bbolt file is unique per session and removed on
// Close; nothing survives a restart.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"go.etcd.io/bbolt"

	"apibench/internal/report"
)

const bucketRuns = "runs"

// RunRecord is one archived benchmark run.
type RunRecord struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Report    *report.Report `json:"report"`
}

type SessionStore struct {
	db       *bbolt.DB
	filePath string
}

// NewSessionStore opens a fresh session database under dir (defaults to
// the user's home).
func NewSessionStore(dir string) (*SessionStore, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, errors.Wrap(err, "resolve home dir")
		}
		dir = filepath.Join(home, ".apibench", "sessions")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrap(err, "create session dir")
	}

	path := filepath.Join(dir, fmt.Sprintf("session_%d.db", time.Now().UnixNano()))
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "open session db %s", path)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketRuns))
		return err
	})
	if err != nil {
		db.Close()
		os.Remove(path)
		return nil, errors.Wrap(err, "init session bucket")
	}

	return &SessionStore{db: db, filePath: path}, nil
}

// Close tears the session down, deleting the backing file.
func (s *SessionStore) Close() error {
	if s.db != nil {
		s.db.Close()
	}
	if s.filePath != "" {
		return os.Remove(s.filePath)
	}
	return nil
}

// Path returns the session file location.
func (s *SessionStore) Path() string { return s.filePath }

// Save archives a run record.
func (s *SessionStore) Save(rec RunRecord) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketRuns))
		data, err := json.Marshal(rec)
		if err != nil {
			return errors.Wrap(err, "encode run record")
		}
		return b.Put([]byte(rec.ID), data)
	})
}

// List returns all archived records.
func (s *SessionStore) List() []RunRecord {
	var items []RunRecord
	s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(bucketRuns)).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var rec RunRecord
			if err := json.Unmarshal(v, &rec); err == nil {
				items = append(items, rec)
			}
		}
		return nil
	})
	return items
}

// Get fetches one record by run ID.
func (s *SessionStore) Get(id string) (*RunRecord, error) {
	var rec RunRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket([]byte(bucketRuns)).Get([]byte(id))
		if v == nil {
			return errors.Errorf("run %s not found in session", id)
		}
		return json.Unmarshal(v, &rec)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
