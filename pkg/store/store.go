package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/openclaw/launcher/pkg/types"
)

// DB is the deserialised form of the store file. Instances maps instance
// id → record; JSON marshalling keeps the keys sorted, so the on-disk
// artifact is canonical.
type DB struct {
	Instances map[string]types.InstanceRecord `json:"instances"`
}

// Store persists the instance mapping as a JSON file. Read-modify-write
// sections are serialised by an advisory flock on a sidecar lock file; the
// lock file (not the data file) carries the lock so the inode is never
// swapped out from under a waiter by the rename-based write protocol.
type Store struct {
	path     string
	lockPath string
}

// New creates a store backed by the file at path. Parent directories are
// created; the file itself appears on first write.
func New(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	return &Store{
		path:     path,
		lockPath: path + ".lock",
	}, nil
}

// Path returns the store file location.
func (s *Store) Path() string {
	return s.path
}

// Load reads the store without taking the lock. It tolerates a concurrent
// rewrite: a parse failure triggers one reopen-and-retry before giving up.
// A missing, empty or whitespace-only file yields an empty mapping.
func (s *Store) Load() (DB, error) {
	db, err := s.read()
	if err == nil {
		return db, nil
	}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return s.read()
	}
	return db, err
}

func (s *Store) read() (DB, error) {
	db := DB{Instances: map[string]types.InstanceRecord{}}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return db, nil
	}
	if err != nil {
		return db, fmt.Errorf("read store: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return db, nil
	}
	if err := json.Unmarshal(data, &db); err != nil {
		return db, fmt.Errorf("parse store: %w", err)
	}
	if db.Instances == nil {
		db.Instances = map[string]types.InstanceRecord{}
	}
	return db, nil
}

// Update runs fn inside the exclusive section: lock, read, mutate, write.
// The write is all-or-nothing (temp file + rename). If fn returns an
// error the file is left untouched and the error is passed through.
func (s *Store) Update(fn func(db *DB) error) error {
	lock, err := s.acquire()
	if err != nil {
		return err
	}
	defer s.release(lock)

	db, err := s.read()
	if err != nil {
		return err
	}
	if err := fn(&db); err != nil {
		return err
	}
	return s.write(db)
}

// View runs fn under the lock without writing back. Used where a decision
// must not race a concurrent Update but changes nothing.
func (s *Store) View(fn func(db DB) error) error {
	lock, err := s.acquire()
	if err != nil {
		return err
	}
	defer s.release(lock)

	db, err := s.read()
	if err != nil {
		return err
	}
	return fn(db)
}

func (s *Store) acquire() (*os.File, error) {
	f, err := os.OpenFile(s.lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open store lock: %w", err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		f.Close()
		return nil, fmt.Errorf("lock store: %w", err)
	}
	return f, nil
}

func (s *Store) release(f *os.File) {
	unix.Flock(int(f.Fd()), unix.LOCK_UN)
	f.Close()
}

func (s *Store) write(db DB) error {
	data, err := json.MarshalIndent(db, "", "  ")
	if err != nil {
		return fmt.Errorf("encode store: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".instances-*.json")
	if err != nil {
		return fmt.Errorf("create store temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write store: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close store temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace store: %w", err)
	}
	return nil
}
