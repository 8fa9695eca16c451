package encryption

import "io"

// Encryptor seals mirror objects. Encrypting needs only the public key;
// decrypting needs the private key, unlocked once per run with the passphrase.
type Encryptor interface {
	// Setup generates the key pair, run by `ingester keys init`.
	Setup(passphrase string) error

	// Encrypt reads plaintext from r and writes ciphertext to w.
	Encrypt(r io.Reader, w io.Writer) error

	// Unlock decrypts the private key. A wrong passphrase is an error.
	Unlock(passphrase string) (DecryptionContext, error)

	// IsConfigured reports whether both key files exist.
	IsConfigured() bool
}

// DecryptionContext holds an unlocked private key in memory only.
type DecryptionContext interface {
	Decrypt(r io.Reader, w io.Writer) error
}
