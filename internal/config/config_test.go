package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func intPtr(v int) *int { return &v }

func TestManager_ReadWrite_RoundTrip(t *testing.T) {
	original := NewConfig("/home/user/.local/share/ingester", "/srv/sync")
	original.Permissions.UID = intPtr(1000)
	original.Permissions.GID = intPtr(1000)
	original.Mail.IMAPHost = "imap.gmail.com"
	original.Mail.IMAPUsername = "me@gmail.com"
	original.Journal.Sender = "me+logseq@gmail.com"
	original.Atlassian = AtlassianConfig{Host: "https://example.atlassian.net", Email: "me@example.com", Token: "t"}
	original.Mirror.Type = "s3"
	original.Mirror.S3Bucket = "notes"
	original.Mirror.S3Region = "eu-west-1"
	original.Mirror.Encrypt = true

	var buf bytes.Buffer
	m := &Manager{}

	if err := m.Write(&buf, original); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if got.BaseDir != original.BaseDir {
		t.Errorf("BaseDir = %q, want %q", got.BaseDir, original.BaseDir)
	}
	if got.SyncDir != original.SyncDir {
		t.Errorf("SyncDir = %q, want %q", got.SyncDir, original.SyncDir)
	}
	if got.Permissions.UID == nil || *got.Permissions.UID != 1000 {
		t.Errorf("Permissions.UID = %v, want 1000", got.Permissions.UID)
	}
	if got.Mail.IMAPPort != DefaultIMAPPort {
		t.Errorf("Mail.IMAPPort = %d, want %d", got.Mail.IMAPPort, DefaultIMAPPort)
	}
	if got.Journal.Sender != original.Journal.Sender {
		t.Errorf("Journal.Sender = %q, want %q", got.Journal.Sender, original.Journal.Sender)
	}
	if got.Atlassian != original.Atlassian {
		t.Errorf("Atlassian = %+v, want %+v", got.Atlassian, original.Atlassian)
	}
	if got.Mirror.Type != "s3" || got.Mirror.S3Bucket != "notes" || !got.Mirror.Encrypt {
		t.Errorf("Mirror = %+v", got.Mirror)
	}
	if len(got.Mirror.Ignore) != len(original.Mirror.Ignore) {
		t.Errorf("Mirror.Ignore = %v, want %v", got.Mirror.Ignore, original.Mirror.Ignore)
	}
	if got.Database != original.Database {
		t.Errorf("Database = %+v, want %+v", got.Database, original.Database)
	}
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("/data/ingester", "/sync")

	if cfg.LogDir != "/data/ingester/log" {
		t.Errorf("LogDir = %q", cfg.LogDir)
	}
	if cfg.VaultDir() != "/sync/logseq" {
		t.Errorf("VaultDir() = %q", cfg.VaultDir())
	}
	if cfg.Kindle.Sender != DefaultKindleSender {
		t.Errorf("Kindle.Sender = %q", cfg.Kindle.Sender)
	}
	if cfg.Encryption.PublicKeyPath != "/data/ingester/keys/ingester.pub" {
		t.Errorf("Encryption.PublicKeyPath = %q", cfg.Encryption.PublicKeyPath)
	}
	if cfg.Database.DataDir != "/data/ingester/db" {
		t.Errorf("Database.DataDir = %q", cfg.Database.DataDir)
	}
	if cfg.Mirror.Enabled() {
		t.Error("Mirror.Enabled() = true for a fresh config")
	}
}

func TestInit(t *testing.T) {
	t.Run("creates new config", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "ingester.toml")
		if err := Init(path, NewConfig("/base", "/sync")); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("config file not created: %v", err)
		}
		if info.Mode().Perm() != 0600 {
			t.Errorf("config mode = %o, want 600", info.Mode().Perm())
		}
	})

	t.Run("refuses to overwrite", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "ingester.toml")
		if err := os.WriteFile(path, []byte("existing"), 0600); err != nil {
			t.Fatal(err)
		}
		if err := Init(path, NewConfig("/base", "/sync")); err == nil {
			t.Error("Init() expected error for existing file")
		}
	})
}

func TestReadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ingester.toml")
	content := `
base_dir = "/base"
log_dir = "/base/log"
sync_dir = "/sync"

[mail]
type = "mbox"
mbox_path = "/exports/all.mbox"

[database]
type = "memory"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := ReadFromFile(path)
	if err != nil {
		t.Fatalf("ReadFromFile() error = %v", err)
	}
	if cfg.Mail.Type != "mbox" || cfg.Mail.MboxPath != "/exports/all.mbox" {
		t.Errorf("Mail = %+v", cfg.Mail)
	}
	if cfg.Database.Type != "memory" {
		t.Errorf("Database.Type = %q", cfg.Database.Type)
	}

	if _, err := ReadFromFile(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("ReadFromFile() expected error for missing file")
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"IMAP_HOST":       "imap.example.com",
		"IMAP_PORT":       "1143",
		"IMAP_USERNAME":   "me",
		"IMAP_PASSWORD":   "pw",
		"ATLASSIAN_HOST":  "https://x.atlassian.net",
		"ATLASSIAN_EMAIL": "me@x.com",
		"ATLASSIAN_TOKEN": "tok",
		"SYNC_DIR":        "/env/sync",
	}
	cfg := NewConfig("/base", "/file/sync")
	if err := cfg.ApplyEnv(func(k string) string { return env[k] }); err != nil {
		t.Fatalf("ApplyEnv() error = %v", err)
	}

	if cfg.Mail.IMAPHost != "imap.example.com" || cfg.Mail.IMAPPort != 1143 {
		t.Errorf("Mail = %+v", cfg.Mail)
	}
	if cfg.Mail.IMAPUsername != "me" || cfg.Mail.IMAPPassword != "pw" {
		t.Errorf("Mail credentials = %+v", cfg.Mail)
	}
	if cfg.Atlassian.Token != "tok" {
		t.Errorf("Atlassian = %+v", cfg.Atlassian)
	}
	if cfg.SyncDir != "/env/sync" {
		t.Errorf("SyncDir = %q", cfg.SyncDir)
	}

	t.Run("empty env keeps file values", func(t *testing.T) {
		cfg := NewConfig("/base", "/file/sync")
		if err := cfg.ApplyEnv(func(string) string { return "" }); err != nil {
			t.Fatal(err)
		}
		if cfg.SyncDir != "/file/sync" {
			t.Errorf("SyncDir = %q", cfg.SyncDir)
		}
	})

	t.Run("bad port", func(t *testing.T) {
		cfg := NewConfig("/base", "/sync")
		err := cfg.ApplyEnv(func(k string) string {
			if k == "IMAP_PORT" {
				return "imaps"
			}
			return ""
		})
		if err == nil || !strings.Contains(err.Error(), "IMAP_PORT") {
			t.Errorf("ApplyEnv() error = %v, want IMAP_PORT error", err)
		}
	})
}
