// Package state persists the history of links handed out to the user.
package state

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	// stateDirPerm is the permission mode for the state directory.
	stateDirPerm = fs.FileMode(0o700)

	// stateFilePerm is the permission mode for the state database file.
	stateFilePerm = fs.FileMode(0o600)

	// stateOpenTimeout is the maximum time to wait for the bolt database lock.
	stateOpenTimeout = 5 * time.Second
)

var (
	linksBucket = []byte("links")
	// pathsBucket maps a remote path to the sequence key of its latest link.
	pathsBucket = []byte("link_paths")
)

// Link is one link returned to the user, reused or newly created.
type Link struct {
	OpID        string    `json:"op_id" yaml:"op_id"`
	LocalPath   string    `json:"local_path" yaml:"local_path"`
	RemotePath  string    `json:"remote_path" yaml:"remote_path"`
	URL         string    `json:"url" yaml:"url"`
	Permissions int       `json:"permissions" yaml:"permissions"`
	ExpireDate  string    `json:"expire_date,omitempty" yaml:"expire_date,omitempty"`
	Reused      bool      `json:"reused" yaml:"reused"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
}

// Recorder appends links to a history and trims it. Implemented by *State.
type Recorder interface {
	RecordLink(l Link) error
	PruneLinks(keep int) (int, error)
}

// RecordAndPrune records l and then trims the history to the newest keep
// links. A keep of zero or less disables trimming.
func RecordAndPrune(r Recorder, l Link, keep int) error {
	if err := r.RecordLink(l); err != nil {
		return fmt.Errorf("recording link: %w", err)
	}

	if keep <= 0 {
		return nil
	}

	if _, err := r.PruneLinks(keep); err != nil {
		return fmt.Errorf("pruning link history: %w", err)
	}

	return nil
}

// State wraps a bbolt database for all persistent application state.
type State struct {
	db *bolt.DB
}

// LoadAt opens a state database at the given path, creating it and its
// directory if they do not exist.
func LoadAt(path string) (*State, error) {
	if err := os.MkdirAll(filepath.Dir(path), stateDirPerm); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	db, err := bolt.Open(path, stateFilePerm, &bolt.Options{Timeout: stateOpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("opening state db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(linksBucket); err != nil {
			return err
		}

		_, err := tx.CreateBucketIfNotExists(pathsBucket)

		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing state db: %w", err)
	}

	return &State{db: db}, nil
}

// Close closes the database.
func (s *State) Close() error {
	return s.db.Close()
}

func seqKey(seq uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, seq)

	return k
}

// RecordLink appends l to the history. A zero CreatedAt is set to now.
func (s *State) RecordLink(l Link) error {
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("encoding link: %w", err)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(linksBucket)

		seq, err := b.NextSequence()
		if err != nil {
			return err
		}

		key := seqKey(seq)
		if err := b.Put(key, data); err != nil {
			return err
		}

		return tx.Bucket(pathsBucket).Put([]byte(l.RemotePath), key)
	})
}

// LatestLink returns the most recent link recorded for remotePath, or
// nil if there is none.
func (s *State) LatestLink(remotePath string) (*Link, error) {
	var l *Link

	err := s.db.View(func(tx *bolt.Tx) error {
		key := tx.Bucket(pathsBucket).Get([]byte(remotePath))
		if key == nil {
			return nil
		}

		data := tx.Bucket(linksBucket).Get(key)
		if data == nil {
			return nil
		}

		l = &Link{}

		return json.Unmarshal(data, l)
	})

	return l, err
}

// Links returns up to limit links, newest first. A limit of zero or
// less returns the whole history.
func (s *State) Links(limit int) ([]Link, error) {
	var result []Link

	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(linksBucket).Cursor()

		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(result) >= limit {
				break
			}

			var l Link
			if err := json.Unmarshal(v, &l); err != nil {
				return err
			}

			result = append(result, l)
		}

		return nil
	})

	return result, err
}

// PruneLinks keeps the newest keep links and deletes the rest. Path
// entries pointing at deleted links are removed too.
func (s *State) PruneLinks(keep int) (int, error) {
	removed := 0

	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(linksBucket)

		var stale [][]byte

		c := b.Cursor()
		seen := 0

		for k, _ := c.Last(); k != nil; k, _ = c.Prev() {
			seen++
			if seen > keep {
				stale = append(stale, append([]byte(nil), k...))
			}
		}

		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}

		paths := tx.Bucket(pathsBucket)

		var orphaned [][]byte

		err := paths.ForEach(func(p, key []byte) error {
			if b.Get(key) == nil {
				orphaned = append(orphaned, append([]byte(nil), p...))
			}

			return nil
		})
		if err != nil {
			return err
		}

		for _, p := range orphaned {
			if err := paths.Delete(p); err != nil {
				return err
			}
		}

		removed = len(stale)

		return nil
	})

	return removed, err
}
