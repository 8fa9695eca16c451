package app

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// PassphraseEnv overrides the interactive passphrase prompt.
const PassphraseEnv = "INGESTER_PASSPHRASE"

// ErrNoPassphrase is returned when no passphrase is set and stdin is not a terminal.
var ErrNoPassphrase = errors.New("no passphrase: set " + PassphraseEnv + " or run from a terminal")

// PassphraseReader obtains the key passphrase from the environment or a prompt.
type PassphraseReader struct {
	Getenv func(string) string
	In     *os.File
	Out    io.Writer
}

// NewPassphraseReader reads from the process environment and stdin, prompting on stderr.
func NewPassphraseReader() *PassphraseReader {
	return &PassphraseReader{Getenv: os.Getenv, In: os.Stdin, Out: os.Stderr}
}

// Read returns the passphrase. With confirm set the prompt asks twice and
// the two entries must match.
func (p *PassphraseReader) Read(confirm bool) (string, error) {
	if v := p.Getenv(PassphraseEnv); v != "" {
		return v, nil
	}
	if p.In == nil || !term.IsTerminal(int(p.In.Fd())) {
		return "", ErrNoPassphrase
	}

	pass, err := p.prompt("Passphrase: ")
	if err != nil {
		return "", err
	}
	if pass == "" {
		return "", fmt.Errorf("passphrase is empty")
	}
	if !confirm {
		return pass, nil
	}

	again, err := p.prompt("Confirm passphrase: ")
	if err != nil {
		return "", err
	}
	if again != pass {
		return "", fmt.Errorf("passphrases do not match")
	}
	return pass, nil
}

func (p *PassphraseReader) prompt(label string) (string, error) {
	fmt.Fprint(p.Out, label)
	b, err := term.ReadPassword(int(p.In.Fd()))
	fmt.Fprintln(p.Out)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return strings.TrimRight(string(b), "\r\n"), nil
}
