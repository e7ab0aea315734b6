package inmemory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/object_store"
)

var ErrInjectedFault = errors.New("injected fault")

// InMemoryObjectStore is a volatile store with switchable faults, used in
// tests and for nodes configured without a data directory.
type InMemoryObjectStore struct {
	mu      sync.RWMutex
	objects map[object_store.Handle][]byte

	failPuts atomic.Bool
	failGets atomic.Bool
	down     atomic.Bool
	writes   atomic.Int64
}

func NewInMemoryObjectStore() *InMemoryObjectStore {
	return &InMemoryObjectStore{objects: make(map[object_store.Handle][]byte)}
}

func (s *InMemoryObjectStore) SetFailPuts(fail bool) { s.failPuts.Store(fail) }
func (s *InMemoryObjectStore) SetFailGets(fail bool) { s.failGets.Store(fail) }

// SetDown makes every call, Health included, fail.
func (s *InMemoryObjectStore) SetDown(down bool) { s.down.Store(down) }

// Writes counts Puts that stored new bytes.
func (s *InMemoryObjectStore) Writes() int64 { return s.writes.Load() }

func (s *InMemoryObjectStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

// Corrupt flips the first byte of a stored object in place.
func (s *InMemoryObjectStore) Corrupt(handle object_store.Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.objects[handle]
	if !ok || len(data) == 0 {
		return false
	}
	data[0] ^= 0xFF
	return true
}

// Drop removes an object without going through Delete.
func (s *InMemoryObjectStore) Drop(handle object_store.Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, handle)
}

func (s *InMemoryObjectStore) Put(ctx context.Context, key string, data []byte) (object_store.Handle, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if key == "" {
		return "", object_store.ErrInvalidKey
	}
	if s.down.Load() || s.failPuts.Load() {
		return "", ErrInjectedFault
	}

	handle := object_store.Handle(key)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[handle]; ok {
		return handle, nil
	}
	stored := make([]byte, len(data))
	copy(stored, data)
	s.objects[handle] = stored
	s.writes.Add(1)
	return handle, nil
}

func (s *InMemoryObjectStore) Get(ctx context.Context, handle object_store.Handle) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.down.Load() || s.failGets.Load() {
		return nil, ErrInjectedFault
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[handle]
	if !ok {
		return nil, object_store.ErrObjectNotFound
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (s *InMemoryObjectStore) Exists(ctx context.Context, handle object_store.Handle) bool {
	if ctx.Err() != nil || s.down.Load() {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[handle]
	return ok
}

func (s *InMemoryObjectStore) Delete(ctx context.Context, handle object_store.Handle) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.down.Load() {
		return ErrInjectedFault
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[handle]; !ok {
		return object_store.ErrObjectNotFound
	}
	delete(s.objects, handle)
	return nil
}

func (s *InMemoryObjectStore) Health(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.down.Load() {
		return object_store.ErrStoreUnavailable
	}
	return nil
}

var _ object_store.ObjectStore = (*InMemoryObjectStore)(nil)
