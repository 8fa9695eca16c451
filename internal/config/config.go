package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

const (
	DefaultKindleSender = "do-not-reply@amazon.com"
	DefaultIMAPPort     = 993
	DefaultFileMode     = "0644"
	DefaultDirMode      = "0755"
)

// Config represents the main configuration for ingester.
type Config struct {
	BaseDir string `toml:"base_dir"`
	LogDir  string `toml:"log_dir"`
	// SyncDir holds the Logseq graph under SyncDir/logseq.
	SyncDir     string            `toml:"sync_dir"`
	Permissions PermissionsConfig `toml:"permissions"`
	Mail        MailConfig        `toml:"mail"`
	Kindle      KindleConfig      `toml:"kindle"`
	Journal     JournalConfig     `toml:"journal"`
	Atlassian   AtlassianConfig   `toml:"atlassian"`
	Mirror      MirrorConfig      `toml:"mirror"`
	Encryption  EncryptionConfig  `toml:"encryption"`
	Database    DatabaseConfig    `toml:"database"`
}

// PermissionsConfig is applied to every file the notes store writes.
// Modes are octal strings. UID and GID are only applied when both are set.
type PermissionsConfig struct {
	FileMode string `toml:"file_mode"`
	DirMode  string `toml:"dir_mode"`
	UID      *int   `toml:"uid,omitempty"`
	GID      *int   `toml:"gid,omitempty"`
}

// MailConfig selects where mail is read from.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type MailConfig struct {
	Type string `toml:"type"` // "imap" (default) or "mbox"

	// IMAP-specific fields (only used when Type == "imap")
	IMAPHost               string `toml:"imap_host,omitempty"`
	IMAPPort               int    `toml:"imap_port,omitempty"`
	IMAPUsername           string `toml:"imap_username,omitempty"`
	IMAPPassword           string `toml:"imap_password,omitempty"`
	IMAPMailbox            string `toml:"imap_mailbox,omitempty"`
	IMAPPlaintext          bool   `toml:"imap_plaintext,omitempty"`
	IMAPInsecureSkipVerify bool   `toml:"imap_insecure_skip_verify,omitempty"`

	// Mbox-specific fields (only used when Type == "mbox")
	MboxPath string `toml:"mbox_path,omitempty"`
}

type KindleConfig struct {
	Sender string `toml:"sender"`
}

type JournalConfig struct {
	// Sender is the self-addressed alias whose mails become journal blocks.
	Sender string `toml:"sender"`
}

type AtlassianConfig struct {
	Host  string `toml:"host"`
	Email string `toml:"email"`
	Token string `toml:"token"`
}

// MirrorConfig describes the remote the vault is mirrored to.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
// An empty Type disables mirroring.
type MirrorConfig struct {
	Type    string   `toml:"type"` // "", "filesystem", "s3" or "memory"
	Encrypt bool     `toml:"encrypt"`
	Ignore  []string `toml:"ignore"`

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSRoot string `toml:"fs_root,omitempty"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket          string `toml:"s3_bucket,omitempty"`
	S3Prefix          string `toml:"s3_prefix,omitempty"`
	S3Region          string `toml:"s3_region,omitempty"`
	S3Endpoint        string `toml:"s3_endpoint,omitempty"`
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty"`
}

// Enabled reports whether a mirror remote is configured.
func (m MirrorConfig) Enabled() bool {
	return m.Type != ""
}

// EncryptionConfig holds paths to the age key pair used for mirror encryption.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "age" (default) or "test"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// DatabaseConfig represents configuration for the run ledger.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// NewConfig creates a new Config rooted at baseDir with default paths and settings.
func NewConfig(baseDir, syncDir string) *Config {
	return &Config{
		BaseDir: baseDir,
		LogDir:  filepath.Join(baseDir, "log"),
		SyncDir: syncDir,
		Permissions: PermissionsConfig{
			FileMode: DefaultFileMode,
			DirMode:  DefaultDirMode,
		},
		Mail: MailConfig{
			Type:     "imap",
			IMAPPort: DefaultIMAPPort,
		},
		Kindle: KindleConfig{Sender: DefaultKindleSender},
		Mirror: MirrorConfig{
			Ignore: []string{".git/**", "logseq/bak/**", "**/.DS_Store"},
		},
		Encryption: EncryptionConfig{
			Type:           "age",
			PublicKeyPath:  filepath.Join(baseDir, "keys", "ingester.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "ingester.key"),
		},
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "db"),
		},
	}
}

// VaultDir returns the root of the Logseq graph.
func (c *Config) VaultDir() string {
	return filepath.Join(c.SyncDir, "logseq")
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to path with owner-only permissions, since it
// may carry credentials.
func writeToFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
