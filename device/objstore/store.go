package objstore

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// ErrNotFound is returned by Store.Get for a missing object.
var ErrNotFound = errors.New("objstore: object not found")

// Store is the minimal object-store surface the device needs.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
	List(ctx context.Context, prefix string) ([]string, error)
}

// MemStore is an in-process Store. It is safe for concurrent use and
// counts round-trips, which tests use to verify the presence bitmap.
type MemStore struct {
	mu      sync.RWMutex
	objects map[string][]byte

	gets atomic.Uint64
	puts atomic.Uint64
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{objects: make(map[string][]byte)}
}

// Get implements Store.
func (s *MemStore) Get(_ context.Context, key string) ([]byte, error) {
	s.gets.Add(1)
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.objects[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), b...), nil
}

// Put implements Store.
func (s *MemStore) Put(_ context.Context, key string, data []byte) error {
	s.puts.Add(1)
	s.mu.Lock()
	s.objects[key] = append([]byte(nil), data...)
	s.mu.Unlock()
	return nil
}

// List implements Store.
func (s *MemStore) List(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var keys []string
	for k := range s.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Gets returns the number of Get calls served.
func (s *MemStore) Gets() uint64 { return s.gets.Load() }

// Puts returns the number of Put calls served.
func (s *MemStore) Puts() uint64 { return s.puts.Load() }

var _ Store = (*MemStore)(nil)
