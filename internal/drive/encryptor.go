package drive

import "io"

// Encryptor seals blob content at rest.
// Encryption needs only the public key. Decryption needs a passphrase to unlock
// the private key, which yields a DecryptionContext for the session.
type Encryptor interface {
	// Setup generates a key pair, writes the public key in plaintext and the
	// private key sealed with passphrase. Called by `drive keys init`.
	Setup(passphrase string) error

	// Encrypt reads plaintext from r and writes ciphertext to w.
	Encrypt(r io.Reader, w io.Writer) error

	// Unlock opens the private key with passphrase.
	// Returns an error if the passphrase is wrong.
	Unlock(passphrase string) (DecryptionContext, error)

	// IsConfigured reports whether both key files exist.
	IsConfigured() bool
}

// DecryptionContext holds an unlocked private key in memory only.
type DecryptionContext interface {
	Decrypt(r io.Reader, w io.Writer) error
}
