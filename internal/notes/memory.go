package notes

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"ingester-go/internal/ingest"
)

// MemoryStore is an in-memory implementation of ingest.NoteStore, useful for testing.
// This implementation is safe for concurrent use.
type MemoryStore struct {
	mu    sync.RWMutex
	files map[string][]byte // vault-relative path -> content
}

// NewMemoryStore creates an empty in-memory vault.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{files: make(map[string][]byte)}
}

func (m *MemoryStore) Root() string { return "memory://vault" }

func (m *MemoryStore) Exists(rel string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.files[rel]
	return ok, nil
}

func (m *MemoryStore) WriteAsset(name string, r io.Reader) (string, error) {
	if err := checkName(name); err != nil {
		return "", err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read asset: %w", err)
	}
	rel := ingest.AssetsDir + "/" + name
	m.Put(rel, data)
	return rel, nil
}

func (m *MemoryStore) WritePage(name string, body string) (string, error) {
	if err := checkName(name); err != nil {
		return "", err
	}
	rel := ingest.PagesDir + "/" + name + ".md"
	m.Put(rel, []byte(body))
	return rel, nil
}

func (m *MemoryStore) AppendJournal(day time.Time, block string) (string, error) {
	rel := ingest.JournalsDir + "/" + ingest.JournalName(day)

	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.files[rel]
	if ok && len(current) > 0 {
		m.files[rel] = append(append(append([]byte{}, current...), '\n'), block...)
	} else {
		m.files[rel] = []byte(block)
	}
	return rel, nil
}

func (m *MemoryStore) Remove(rel string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, rel)
	return nil
}

// Put stores data at rel, overwriting anything there.
func (m *MemoryStore) Put(rel string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[rel] = append([]byte{}, data...)
}

// Get returns the content at rel.
func (m *MemoryStore) Get(rel string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.files[rel]
	return data, ok
}

// Paths lists every stored path in sorted order.
func (m *MemoryStore) Paths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	paths := make([]string, 0, len(m.files))
	for p := range m.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Compile-time check that MemoryStore implements ingest.NoteStore
var _ ingest.NoteStore = (*MemoryStore)(nil)
