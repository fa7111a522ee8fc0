// Package memory is an in-process storage.Store used in tests and for
// deployments that accept losing state on restart.
package memory

import (
	"context"
	"sync"

	"github.com/GriffinCanCode/focusgate/internal/storage"
)

// Store keeps values in a map guarded by a mutex.
type Store struct {
	mu     sync.Mutex
	data   map[string][]byte
	fail   error
	failN  int
	closed bool
	writes int
}

var _ storage.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{data: make(map[string][]byte)}
}

// Load returns a copy of the stored values.
func (s *Store) Load(ctx context.Context) (map[string][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, storage.ErrClosed
	}
	out := make(map[string][]byte, len(s.data))
	for k, v := range s.data {
		out[k] = append([]byte(nil), v...)
	}
	return out, nil
}

// Apply writes the batch under the lock.
func (s *Store) Apply(ctx context.Context, b storage.Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return storage.ErrClosed
	}
	if s.fail != nil {
		err := s.fail
		if s.failN > 0 {
			s.failN--
			if s.failN == 0 {
				s.fail = nil
			}
		}
		return err
	}

	for _, k := range b.Deletes {
		delete(s.data, k)
	}
	for k, v := range b.Puts {
		s.data[k] = append([]byte(nil), v...)
	}
	s.writes++
	return nil
}

// Close marks the store closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// FailWith makes the next n Apply calls return err. n <= 0 fails until
// FailWith(nil, 0) is called.
func (s *Store) FailWith(err error, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = err
	s.failN = n
}

// Writes counts successful Apply calls.
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// Get returns the raw value for key.
func (s *Store) Get(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok
}

// Seed writes raw values directly, bypassing failure injection.
func (s *Store) Seed(values map[string][]byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range values {
		s.data[k] = v
	}
}
