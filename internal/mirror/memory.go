package mirror

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
)

// MemoryRemote keeps objects in memory. Safe for concurrent use.
type MemoryRemote struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
}

type memoryObject struct {
	checksum string
	data     []byte
}

func NewMemoryRemote() *MemoryRemote {
	return &MemoryRemote{objects: make(map[string]memoryObject)}
}

func (m *MemoryRemote) List(context.Context) ([]Object, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Object, 0, len(m.objects))
	for key, obj := range m.objects {
		out = append(out, Object{Key: key, Checksum: obj.checksum, Size: int64(len(obj.data))})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *MemoryRemote) Put(_ context.Context, key, checksum string, r io.Reader, size int64) error {
	if err := checkKey(key); err != nil {
		return err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read object: %w", err)
	}
	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = memoryObject{checksum: checksum, data: data}
	return nil
}

func (m *MemoryRemote) Get(_ context.Context, key string, w io.Writer) error {
	m.mu.RLock()
	obj, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	if _, err := io.Copy(w, bytes.NewReader(obj.data)); err != nil {
		return fmt.Errorf("failed to write object: %w", err)
	}
	return nil
}

// Raw returns the stored bytes for key, for inspecting what a push uploaded.
func (m *MemoryRemote) Raw(key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	return obj.data, ok
}

func (m *MemoryRemote) ValidateSetup(context.Context) error {
	return nil
}

var _ Remote = (*MemoryRemote)(nil)
