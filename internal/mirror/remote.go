package mirror

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

// ErrNotFound is returned by Remote.Get for a key that was never stored.
var ErrNotFound = errors.New("object not found")

// Object describes one mirrored file. Checksum is the hex SHA-256 of the
// plaintext, so encrypted objects can be compared with local files.
type Object struct {
	Key      string
	Checksum string
	Size     int64
}

// Remote is a flat key/object store the vault is mirrored to. Keys are
// slash-separated paths relative to the vault root.
type Remote interface {
	// List returns every object under the remote root.
	List(ctx context.Context) ([]Object, error)

	// Put stores size bytes read from r under key, replacing any previous object.
	Put(ctx context.Context, key, checksum string, r io.Reader, size int64) error

	// Get writes the stored bytes for key to w.
	Get(ctx context.Context, key string, w io.Writer) error

	// ValidateSetup verifies that the remote is reachable and writable.
	ValidateSetup(ctx context.Context) error
}

// checkKey rejects keys that would escape the vault root when pulled.
func checkKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return fmt.Errorf("invalid object key %q", key)
	}
	if path.Clean(key) != key {
		return fmt.Errorf("invalid object key %q", key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." || part == "." {
			return fmt.Errorf("invalid object key %q", key)
		}
	}
	return nil
}
