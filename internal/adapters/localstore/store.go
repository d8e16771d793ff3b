// Package localstore keeps the agent's durable state as one JSON document
// per key in a data directory. Every read-modify-write holds an in-process
// mutex and an advisory file lock, so hook processes started concurrently by
// the page observer never lose each other's updates.
package localstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/natefinch/atomic"
)

// ErrNotFound is returned when a key has never been written.
var ErrNotFound = errors.New("key not found")

const lockRetryDelay = 10 * time.Millisecond

// Store is a directory of JSON documents.
type Store struct {
	dir string

	mu       sync.Mutex
	dataLock *flock.Flock

	txMu   sync.Mutex
	txLock *flock.Flock
}

// Open creates dir if needed and returns a store rooted there.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &Store{
		dir:      dir,
		dataLock: flock.New(filepath.Join(dir, ".data.lock")),
		txLock:   flock.New(filepath.Join(dir, ".transition.lock")),
	}, nil
}

// Dir returns the data directory.
func (s *Store) Dir() string {
	return s.dir
}

// Exclusive runs fn while holding the transition lock. Store operations made
// inside fn use a separate lock and do not deadlock.
func (s *Store) Exclusive(ctx context.Context, fn func(ctx context.Context) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	if err := lockFile(ctx, s.txLock); err != nil {
		return err
	}
	defer func() { _ = s.txLock.Unlock() }()

	return fn(ctx)
}

func (s *Store) lock(ctx context.Context) (func(), error) {
	s.mu.Lock()
	if err := lockFile(ctx, s.dataLock); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	return func() {
		_ = s.dataLock.Unlock()
		s.mu.Unlock()
	}, nil
}

func lockFile(ctx context.Context, fl *flock.Flock) error {
	ok, err := fl.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("failed to lock %s: %w", fl.Path(), err)
	}
	if !ok {
		return fmt.Errorf("failed to lock %s", fl.Path())
	}
	return nil
}

func (s *Store) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

func (s *Store) read(key string, v any) error {
	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return nil
}

func (s *Store) write(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if err := atomic.WriteFile(s.path(key), bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// Get decodes the document stored under key.
func Get[T any](ctx context.Context, s *Store, key string) (T, error) {
	var v T
	unlock, err := s.lock(ctx)
	if err != nil {
		return v, err
	}
	defer unlock()

	err = s.read(key, &v)
	return v, err
}

// Put replaces the document stored under key.
func Put(ctx context.Context, s *Store, key string, v any) error {
	unlock, err := s.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	return s.write(key, v)
}

// Update reads key, lets fn modify it and writes it back atomically.
// found is false when the key did not exist yet. When fn fails nothing is written.
func Update[T any](ctx context.Context, s *Store, key string, fn func(v *T, found bool) error) (T, error) {
	var v T
	unlock, err := s.lock(ctx)
	if err != nil {
		return v, err
	}
	defer unlock()

	found := true
	if err := s.read(key, &v); err != nil {
		if !errors.Is(err, ErrNotFound) {
			return v, err
		}
		found = false
	}

	if err := fn(&v, found); err != nil {
		return v, err
	}
	return v, s.write(key, v)
}

// Delete removes key. Deleting a missing key is not an error.
func Delete(ctx context.Context, s *Store, key string) error {
	unlock, err := s.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	if err := os.Remove(s.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}
