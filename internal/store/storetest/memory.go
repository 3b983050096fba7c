// Package storetest provides an in-memory store.DocumentStore for tests.
package storetest

import (
	"context"
	"fmt"
	"sync"

	"github.com/gauthierbraillon/feedtriage/internal/store"
)

// MemoryStore is a store.DocumentStore kept in memory. Error fields and hooks
// let tests inject failures; counters record how the store was used.
type MemoryStore struct {
	mu    sync.Mutex
	files []store.File
	data  map[string][]byte
	next  int

	// ListErr, CreateErr and ReadErr, when set, are returned by the matching call.
	ListErr   error
	CreateErr error
	ReadErr   error

	// BeforeList runs at the start of every List, outside the store lock.
	BeforeList func()
	// OnWrite runs for every Write, outside the store lock, before the data is
	// stored. A non-nil return fails the write.
	OnWrite func(id string, data []byte) error

	Lists, Creates, Reads, Writes int
	inFlight, maxInFlight         int
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

// Seed adds a document with the given name and content and returns its ID.
func (m *MemoryStore) Seed(name string, content []byte) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addLocked(name, content)
}

func (m *MemoryStore) addLocked(name string, content []byte) string {
	m.next++
	id := fmt.Sprintf("doc-%d", m.next)
	m.files = append(m.files, store.File{ID: id, Name: name, Size: int64(len(content))})
	m.data[id] = append([]byte(nil), content...)
	return id
}

// List implements store.DocumentStore. Like a remote call, it fails once ctx
// is done.
func (m *MemoryStore) List(ctx context.Context) ([]store.File, error) {
	if m.BeforeList != nil {
		m.BeforeList()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Lists++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	return append([]store.File(nil), m.files...), nil
}

// Create implements store.DocumentStore.
func (m *MemoryStore) Create(_ context.Context, name, _ string) (store.File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Creates++
	if m.CreateErr != nil {
		return store.File{}, m.CreateErr
	}
	id := m.addLocked(name, nil)
	return store.File{ID: id, Name: name}, nil
}

// Read implements store.DocumentStore.
func (m *MemoryStore) Read(_ context.Context, id string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Reads++
	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	content, ok := m.data[id]
	if !ok {
		return nil, store.ErrDocumentNotFound
	}
	return append([]byte(nil), content...), nil
}

// Write implements store.DocumentStore.
func (m *MemoryStore) Write(_ context.Context, id string, content []byte) error {
	m.mu.Lock()
	m.Writes++
	m.inFlight++
	if m.inFlight > m.maxInFlight {
		m.maxInFlight = m.inFlight
	}
	hook := m.OnWrite
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.inFlight--
		m.mu.Unlock()
	}()

	if hook != nil {
		if err := hook(id, content); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[id]; !ok {
		return store.ErrDocumentNotFound
	}
	m.data[id] = append([]byte(nil), content...)
	for i := range m.files {
		if m.files[i].ID == id {
			m.files[i].Size = int64(len(content))
		}
	}
	return nil
}

// Content returns the stored content of a document.
func (m *MemoryStore) Content(id string) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.data[id]...)
}

// Files returns the documents currently in the store.
func (m *MemoryStore) Files() []store.File {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]store.File(nil), m.files...)
}

// WriteCount returns the number of Write calls so far.
func (m *MemoryStore) WriteCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Writes
}

// MaxConcurrentWrites returns the highest number of writes ever in flight at once.
func (m *MemoryStore) MaxConcurrentWrites() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxInFlight
}
