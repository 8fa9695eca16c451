package mirror

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// Encryptor seals plaintext before it is uploaded.
type Encryptor interface {
	Encrypt(r io.Reader, w io.Writer) error
}

// Decryptor opens objects sealed by the matching Encryptor.
type Decryptor interface {
	Decrypt(r io.Reader, w io.Writer) error
}

type Options struct {
	// Ignore holds extra globs on top of the defaults and the vault's ignore file.
	Ignore []string

	// Encryptor enables encryption at rest. Unlock must then be set as well;
	// it is called at most once, on the first pull that needs it.
	Encryptor Encryptor
	Unlock    func() (Decryptor, error)

	// FileMode and DirMode apply to pulled files; zero means 0644 and 0755.
	FileMode fs.FileMode
	DirMode  fs.FileMode

	Logger *slog.Logger
}

// Report summarizes one Pull or Push.
type Report struct {
	Transferred int
	Unchanged   int
	Bytes       int64
}

// Mirror copies the vault to and from a Remote. Files are compared by the
// SHA-256 of their plaintext; only differing files move. Nothing is ever
// deleted on either side.
type Mirror struct {
	root   string
	remote Remote
	ignore *IgnoreMatcher
	opts   Options
	logger *slog.Logger
	dec    Decryptor
}

func New(root string, remote Remote, opts Options) (*Mirror, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("vault root not accessible: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("vault root is not a directory: %s", root)
	}
	if opts.Encryptor != nil && opts.Unlock == nil {
		return nil, fmt.Errorf("encryption enabled without an unlock function")
	}

	extra, err := ParseIgnoreFile(filepath.Join(root, IgnoreFileName))
	if err != nil {
		return nil, err
	}
	if opts.FileMode == 0 {
		opts.FileMode = 0644
	}
	if opts.DirMode == 0 {
		opts.DirMode = 0755
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Mirror{
		root:   root,
		remote: remote,
		ignore: NewIgnoreMatcher(append(append([]string{}, opts.Ignore...), extra...)),
		opts:   opts,
		logger: logger,
	}, nil
}

// Push uploads every local file whose checksum differs from the remote copy.
func (m *Mirror) Push(ctx context.Context) (Report, error) {
	var report Report

	remote, err := m.remoteIndex(ctx)
	if err != nil {
		return report, err
	}
	files, err := FindFiles(ctx, m.root, m.ignore)
	if err != nil {
		return report, err
	}

	for _, f := range files {
		sum, err := FileChecksum(f.Path)
		if err != nil {
			return report, fmt.Errorf("checksum %s: %w", f.Key, err)
		}
		if obj, ok := remote[f.Key]; ok && obj.Checksum == sum {
			report.Unchanged++
			continue
		}

		body, err := m.seal(f.Path)
		if err != nil {
			return report, fmt.Errorf("preparing %s: %w", f.Key, err)
		}
		if err := m.remote.Put(ctx, f.Key, sum, bytes.NewReader(body), int64(len(body))); err != nil {
			return report, fmt.Errorf("pushing %s: %w", f.Key, err)
		}
		m.logger.Debug("pushed", "key", f.Key, "bytes", len(body))
		report.Transferred++
		report.Bytes += int64(len(body))
	}

	m.logger.Info("push complete", "pushed", report.Transferred, "unchanged", report.Unchanged)
	return report, nil
}

// Pull downloads every remote object whose checksum differs from the local file.
func (m *Mirror) Pull(ctx context.Context) (Report, error) {
	var report Report

	objects, err := m.remote.List(ctx)
	if err != nil {
		return report, fmt.Errorf("listing remote: %w", err)
	}

	for _, obj := range objects {
		if m.ignore.Match(obj.Key) {
			continue
		}
		if err := checkKey(obj.Key); err != nil {
			return report, err
		}
		dest := filepath.Join(m.root, filepath.FromSlash(obj.Key))

		local, err := FileChecksum(dest)
		switch {
		case err == nil && obj.Checksum != "" && local == obj.Checksum:
			report.Unchanged++
			continue
		case err != nil && !errors.Is(err, fs.ErrNotExist):
			return report, fmt.Errorf("checksum %s: %w", obj.Key, err)
		}

		var raw bytes.Buffer
		if err := m.remote.Get(ctx, obj.Key, &raw); err != nil {
			return report, fmt.Errorf("pulling %s: %w", obj.Key, err)
		}
		plain, err := m.open(raw.Bytes())
		if err != nil {
			return report, fmt.Errorf("opening %s: %w", obj.Key, err)
		}
		if obj.Checksum != "" && checksumBytes(plain) != obj.Checksum {
			return report, fmt.Errorf("pulling %s: checksum mismatch", obj.Key)
		}

		if err := os.MkdirAll(filepath.Dir(dest), m.opts.DirMode); err != nil {
			return report, fmt.Errorf("creating directory for %s: %w", obj.Key, err)
		}
		if err := writeFileAtomic(dest, bytes.NewReader(plain), int64(len(plain)), m.opts.FileMode); err != nil {
			return report, fmt.Errorf("writing %s: %w", obj.Key, err)
		}
		m.logger.Debug("pulled", "key", obj.Key, "bytes", len(plain))
		report.Transferred++
		report.Bytes += int64(len(plain))
	}

	m.logger.Info("pull complete", "pulled", report.Transferred, "unchanged", report.Unchanged)
	return report, nil
}

func (m *Mirror) remoteIndex(ctx context.Context) (map[string]Object, error) {
	objects, err := m.remote.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing remote: %w", err)
	}
	index := make(map[string]Object, len(objects))
	for _, obj := range objects {
		index[obj.Key] = obj
	}
	return index, nil
}

func (m *Mirror) seal(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if m.opts.Encryptor == nil {
		return io.ReadAll(f)
	}
	var sealed bytes.Buffer
	if err := m.opts.Encryptor.Encrypt(f, &sealed); err != nil {
		return nil, err
	}
	return sealed.Bytes(), nil
}

func (m *Mirror) open(raw []byte) ([]byte, error) {
	if m.opts.Encryptor == nil {
		return raw, nil
	}
	if m.dec == nil {
		dec, err := m.opts.Unlock()
		if err != nil {
			return nil, fmt.Errorf("unlocking key: %w", err)
		}
		m.dec = dec
	}
	var plain bytes.Buffer
	if err := m.dec.Decrypt(bytes.NewReader(raw), &plain); err != nil {
		return nil, err
	}
	return plain.Bytes(), nil
}
