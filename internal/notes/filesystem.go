package notes

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ingester-go/internal/ingest"
)

// Permissions is applied to every file the store writes. Owner changes are
// skipped unless both UID and GID are set.
type Permissions struct {
	FileMode os.FileMode
	DirMode  os.FileMode
	UID      *int
	GID      *int
}

// DefaultPermissions leaves ownership alone.
func DefaultPermissions() Permissions {
	return Permissions{FileMode: 0644, DirMode: 0755}
}

// FileSystemStore is the Logseq vault on disk:
//
//	<root>/
//	  journals/<YYYY-MM-DD>.md
//	  pages/<name>.md
//	  assets/<file>
type FileSystemStore struct {
	root  string
	perms Permissions
}

// NewFileSystemStore opens the vault rooted at root. The root must exist;
// the three layout directories are created when missing.
func NewFileSystemStore(root string, perms Permissions) (*FileSystemStore, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("vault root not accessible: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("vault root is not a directory: %s", root)
	}
	if perms.FileMode == 0 {
		perms.FileMode = 0644
	}
	if perms.DirMode == 0 {
		perms.DirMode = 0755
	}

	for _, dir := range []string{ingest.JournalsDir, ingest.PagesDir, ingest.AssetsDir} {
		if err := os.MkdirAll(filepath.Join(root, dir), perms.DirMode); err != nil {
			return nil, fmt.Errorf("failed to create %s directory: %w", dir, err)
		}
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving vault root: %w", err)
	}
	return &FileSystemStore{root: abs, perms: perms}, nil
}

func (s *FileSystemStore) Root() string {
	return s.root
}

// Exists reports whether a file is present at the vault-relative path rel.
func (s *FileSystemStore) Exists(rel string) (bool, error) {
	_, err := os.Stat(s.abs(rel))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("stat %s: %w", rel, err)
}

func (s *FileSystemStore) WriteAsset(name string, r io.Reader) (string, error) {
	if err := checkName(name); err != nil {
		return "", err
	}
	rel := ingest.AssetsDir + "/" + name
	if err := s.writeFile(s.abs(rel), r); err != nil {
		return "", err
	}
	return rel, nil
}

func (s *FileSystemStore) WritePage(name string, body string) (string, error) {
	if err := checkName(name); err != nil {
		return "", err
	}
	rel := ingest.PagesDir + "/" + name + ".md"
	if err := s.writeFile(s.abs(rel), strings.NewReader(body)); err != nil {
		return "", err
	}
	return rel, nil
}

// AppendJournal adds block to the day's journal, separated from existing
// content by a newline.
func (s *FileSystemStore) AppendJournal(day time.Time, block string) (string, error) {
	rel := ingest.JournalsDir + "/" + ingest.JournalName(day)
	path := s.abs(rel)

	current, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("reading journal: %w", err)
	}

	var buf bytes.Buffer
	if len(current) > 0 {
		buf.Write(current)
		buf.WriteString("\n")
	}
	buf.WriteString(block)

	if err := s.writeFile(path, &buf); err != nil {
		return "", err
	}
	return rel, nil
}

func (s *FileSystemStore) Remove(rel string) error {
	clean := filepath.Clean(filepath.FromSlash(rel))
	if rel == "" || filepath.IsAbs(clean) || clean == "." || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return fmt.Errorf("invalid vault path %q", rel)
	}
	if err := os.Remove(s.abs(rel)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing %s: %w", rel, err)
	}
	return nil
}

func (s *FileSystemStore) abs(rel string) string {
	return filepath.Join(s.root, filepath.FromSlash(rel))
}

// writeFile writes data from r to destPath using atomic write (temp file + rename),
// then applies the configured permissions.
func (s *FileSystemStore) writeFile(destPath string, r io.Reader) error {
	// Create temp file in the same directory to ensure atomic rename works
	dir := filepath.Dir(destPath)
	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
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

	if _, err := io.Copy(tmpFile, r); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Chmod(tmpPath, s.perms.FileMode); err != nil {
		return fmt.Errorf("setting file mode: %w", err)
	}
	if s.perms.UID != nil && s.perms.GID != nil {
		if err := os.Chown(tmpPath, *s.perms.UID, *s.perms.GID); err != nil {
			return fmt.Errorf("setting file owner: %w", err)
		}
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

// checkName rejects names that would escape their layout directory.
func checkName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid vault file name %q", name)
	}
	return nil
}

// Compile-time check that FileSystemStore implements ingest.NoteStore
var _ ingest.NoteStore = (*FileSystemStore)(nil)
