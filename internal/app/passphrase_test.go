package app

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestPassphraseReader_Env(t *testing.T) {
	p := &PassphraseReader{
		Getenv: func(k string) string {
			if k == PassphraseEnv {
				return "hunter2"
			}
			return ""
		},
	}

	got, err := p.Read(true)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got != "hunter2" {
		t.Errorf("Read() = %q, want %q", got, "hunter2")
	}
}

func TestPassphraseReader_NotATerminal(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "stdin"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	p := &PassphraseReader{Getenv: func(string) string { return "" }, In: f}
	if _, err := p.Read(false); !errors.Is(err, ErrNoPassphrase) {
		t.Errorf("Read() error = %v, want ErrNoPassphrase", err)
	}

	p.In = nil
	if _, err := p.Read(false); !errors.Is(err, ErrNoPassphrase) {
		t.Errorf("Read() with nil stdin error = %v, want ErrNoPassphrase", err)
	}
}
