package mirror

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const checksumSuffix = ".sha256"

// FileSystemRemote mirrors into a directory tree, e.g. a mounted backup
// disk. Each object sits at its key with a sidecar holding the plaintext checksum:
//
//	<root>/
//	  pages/foo.md
//	  pages/foo.md.sha256
type FileSystemRemote struct {
	root string
}

func NewFileSystemRemote(root string) (*FileSystemRemote, error) {
	if root == "" {
		return nil, fmt.Errorf("filesystem remote requires a root")
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create remote root: %w", err)
	}
	return &FileSystemRemote{root: root}, nil
}

func (r *FileSystemRemote) List(ctx context.Context) ([]Object, error) {
	var out []Object
	err := filepath.WalkDir(r.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		name := d.Name()
		if strings.HasSuffix(name, checksumSuffix) || strings.HasPrefix(name, ".tmp-") {
			return nil
		}

		rel, err := filepath.Rel(r.root, p)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("stat %s: %w", p, err)
		}
		sum, err := os.ReadFile(p + checksumSuffix)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("reading checksum for %s: %w", rel, err)
		}
		out = append(out, Object{
			Key:      filepath.ToSlash(rel),
			Checksum: strings.TrimSpace(string(sum)),
			Size:     info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing remote: %w", err)
	}
	return out, nil
}

func (r *FileSystemRemote) Put(_ context.Context, key, checksum string, src io.Reader, size int64) error {
	if err := checkKey(key); err != nil {
		return err
	}
	dest := filepath.Join(r.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := writeFileAtomic(dest, src, size, 0644); err != nil {
		return err
	}
	return writeFileAtomic(dest+checksumSuffix, strings.NewReader(checksum+"\n"), int64(len(checksum)+1), 0644)
}

func (r *FileSystemRemote) Get(_ context.Context, key string, w io.Writer) error {
	if err := checkKey(key); err != nil {
		return err
	}
	f, err := os.Open(filepath.Join(r.root, filepath.FromSlash(key)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%s: %w", key, ErrNotFound)
		}
		return fmt.Errorf("failed to open object: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to read object: %w", err)
	}
	return nil
}

func (r *FileSystemRemote) ValidateSetup(context.Context) error {
	info, err := os.Stat(r.root)
	if err != nil {
		return fmt.Errorf("remote root not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("remote root is not a directory: %s", r.root)
	}
	tmp, err := os.CreateTemp(r.root, ".tmp-check-*")
	if err != nil {
		return fmt.Errorf("remote root not writable: %w", err)
	}
	tmp.Close()
	return os.Remove(tmp.Name())
}

// writeFileAtomic writes r to destPath via a temp file in the same directory
// and a rename, failing if the byte count differs from expectedSize.
func writeFileAtomic(destPath string, r io.Reader, expectedSize int64, mode fs.FileMode) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if expectedSize >= 0 && written != expectedSize {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", expectedSize, written)
	}
	if err := os.Chmod(tmpPath, mode); err != nil {
		return fmt.Errorf("failed to set mode: %w", err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

var _ Remote = (*FileSystemRemote)(nil)
