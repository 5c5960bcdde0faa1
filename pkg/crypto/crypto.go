// Package crypto provides the cryptographic primitives keyvault builds on:
// PBKDF2-HMAC-SHA256 key derivation, AES-256-GCM authenticated encryption,
// constant-time comparison, and secure memory wiping.
//
// # Security Features
//
//   - AES-256-GCM authenticated encryption
//   - PBKDF2-HMAC-SHA256 key derivation (100,000 iterations, per policy)
//   - Cryptographically secure random salt/nonce generation
//   - Constant-time tag comparison
//   - Secure memory wiping for sensitive data
//
// # Example Usage
//
//	salt := make([]byte, SaltLength)
//	rand.Read(salt)
//	key := crypto.Derive([]byte("password"), salt)
//
//	ciphertext, nonce, err := crypto.Encrypt(key, plaintext)
//	plaintext, err := crypto.Decrypt(key, ciphertext, nonce)
//
//	crypto.SecureWipe(key)
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/crypto/pbkdf2"
)

// KDF parameters. Iterations is a floor, never a ceiling: callers that
// persist a higher count (see pkg/verifier) must honor what they stored,
// not this constant, so that raising it later doesn't break old vaults.
const (
	// Iterations is the minimum PBKDF2 round count. MUST NOT be lowered.
	Iterations = 100_000

	// SaltLength is the length of KDF salts in bytes.
	SaltLength = 16

	// KeyLength is the length of derived encryption keys in bytes (256 bits).
	KeyLength = 32

	// NonceLength is the length of GCM nonces in bytes (96 bits).
	NonceLength = 12

	// TagLength is the length of the GCM authentication tag in bytes.
	TagLength = 16
)

// Sentinel errors returned by crypto functions.
var (
	// ErrInvalidKeyLength indicates the key is not 32 bytes.
	ErrInvalidKeyLength = errors.New("crypto: invalid key length, must be 32 bytes")

	// ErrInvalidNonceLength indicates the nonce is not 12 bytes.
	ErrInvalidNonceLength = errors.New("crypto: invalid nonce length, must be 12 bytes")

	// ErrDecryptionFailed indicates decryption or authentication tag verification failed.
	ErrDecryptionFailed = errors.New("crypto: decryption failed, authentication tag verification failed")

	// ErrCiphertextTooShort indicates the ciphertext is shorter than the GCM tag.
	ErrCiphertextTooShort = errors.New("crypto: ciphertext too short")
)

// Derive derives a 256-bit key from a password using PBKDF2-HMAC-SHA256 at
// the fixed Iterations count. The salt should be SaltLength bytes of
// cryptographically secure random data.
func Derive(password, salt []byte) []byte {
	return DeriveN(password, salt, Iterations)
}

// DeriveN derives a 256-bit key using an explicit iteration count, for
// callers that must honor a count recorded in previously persisted state
// rather than the current Iterations constant.
func DeriveN(password, salt []byte, iterations int) []byte {
	return pbkdf2.Key(password, salt, iterations, KeyLength, sha256.New)
}

// Encrypt encrypts plaintext using AES-256-GCM authenticated encryption.
//
// A cryptographically secure random 12-byte nonce is generated with
// crypto/rand. The authentication tag is appended to the returned
// ciphertext.
func Encrypt(key, plaintext []byte) (ciphertext []byte, nonce []byte, err error) {
	if len(key) != KeyLength {
		return nil, nil, ErrInvalidKeyLength
	}

	gcm, err := newGCM(key)
	if err != nil {
		return nil, nil, err
	}

	nonce = make([]byte, NonceLength)
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, fmt.Errorf("crypto: failed to generate nonce: %w", err)
	}

	ciphertext = gcm.Seal(nil, nonce, plaintext, nil)
	return ciphertext, nonce, nil
}

// EncryptAD is Encrypt with GCM associated data bound into the tag.
func EncryptAD(key, plaintext, ad []byte) (ciphertext []byte, nonce []byte, err error) {
	if len(key) != KeyLength {
		return nil, nil, ErrInvalidKeyLength
	}

	gcm, err := newGCM(key)
	if err != nil {
		return nil, nil, err
	}

	nonce = make([]byte, NonceLength)
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, fmt.Errorf("crypto: failed to generate nonce: %w", err)
	}

	ciphertext = gcm.Seal(nil, nonce, plaintext, ad)
	return ciphertext, nonce, nil
}

// Decrypt decrypts ciphertext using AES-256-GCM, verifying the
// authentication tag before returning plaintext.
func Decrypt(key, ciphertext, nonce []byte) (plaintext []byte, err error) {
	return DecryptAD(key, ciphertext, nonce, nil)
}

// DecryptAD is Decrypt with GCM associated data that must match what was
// passed to EncryptAD.
func DecryptAD(key, ciphertext, nonce, ad []byte) (plaintext []byte, err error) {
	if len(key) != KeyLength {
		return nil, ErrInvalidKeyLength
	}
	if len(nonce) != NonceLength {
		return nil, ErrInvalidNonceLength
	}

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.Overhead() {
		return nil, ErrCiphertextTooShort
	}

	plaintext, err = gcm.Open(nil, nonce, ciphertext, ad)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: failed to create GCM: %w", err)
	}
	return gcm, nil
}

// ConstantTimeEqual reports whether a and b hold the same bytes, in time
// that does not depend on where they first differ. A length mismatch is
// checked (and returns false) before the constant-time pass, since the
// length of a tag or key is not itself secret.
func ConstantTimeEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}

// RandomBytes returns n cryptographically secure random bytes.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("crypto: failed to read random bytes: %w", err)
	}
	return b, nil
}

// SecureWipe overwrites a byte slice with zeros in a way that prevents
// compiler optimization from removing the operation. This is critical for
// securely destroying sensitive data like derived keys.
func SecureWipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
	runtime.KeepAlive(b)
}
