package encryption

import (
	"bytes"
	"fmt"
	"io"
)

// testMagic marks objects sealed by TestEncryptor.
var testMagic = []byte("INGSEAL\x00")

// TestEncryptor frames data with a fixed header and reverses the bytes, so
// sealed output never equals the plaintext but needs no keys.
type TestEncryptor struct {
	// Passphrase, when set, is the only passphrase Unlock accepts.
	Passphrase string
}

var _ Encryptor = (*TestEncryptor)(nil)

func NewTestEncryptor() *TestEncryptor {
	return &TestEncryptor{}
}

func (e *TestEncryptor) Setup(string) error { return nil }

func (e *TestEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("reading plaintext: %w", err)
	}
	if _, err := w.Write(testMagic); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	if _, err := w.Write(reversed(data)); err != nil {
		return fmt.Errorf("writing body: %w", err)
	}
	return nil
}

func (e *TestEncryptor) Unlock(passphrase string) (DecryptionContext, error) {
	if e.Passphrase != "" && passphrase != e.Passphrase {
		return nil, fmt.Errorf("incorrect passphrase")
	}
	return testDecryptor{}, nil
}

func (e *TestEncryptor) IsConfigured() bool { return true }

type testDecryptor struct{}

func (testDecryptor) Decrypt(r io.Reader, w io.Writer) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("reading ciphertext: %w", err)
	}
	if !bytes.HasPrefix(data, testMagic) {
		return fmt.Errorf("invalid test encryption header")
	}
	if _, err := w.Write(reversed(data[len(testMagic):])); err != nil {
		return fmt.Errorf("writing plaintext: %w", err)
	}
	return nil
}

func reversed(b []byte) []byte {
	out := make([]byte, len(b))
	for i, c := range b {
		out[len(b)-1-i] = c
	}
	return out
}
