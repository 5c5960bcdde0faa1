// Package sessiontoken persists a vault's unlocked session key to disk so
// a host that cannot hold process memory between invocations — a CLI
// invoked once per command is the common case — doesn't have to re-prompt
// for the master password on every call. The capsule is sealed under a
// random token printed once; without that token the file on disk is
// useless ciphertext.
package sessiontoken

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/keyvault/keyvault/pkg/crypto"
)

// FileName is the capsule's filename, read from the vault directory.
const FileName = "session.json"

var (
	ErrExpired         = errors.New("session token has expired")
	ErrCapsuleNotFound = errors.New("session capsule not found")
	ErrCapsuleInsecure = errors.New("session capsule has insecure permissions")
)

type capsule struct {
	Ciphertext      []byte `json:"ciphertext"`
	Nonce           []byte `json:"nonce"`
	ExpiresAtMillis int64  `json:"expires_at_millis"`
}

// Create seals key under a freshly generated random token and writes the
// capsule to vaultHome/session.json with 0600 permissions. The returned
// token must be kept by the caller (e.g. printed to the terminal, or held
// in an environment variable for the session's lifetime) — it is not
// itself persisted anywhere.
func Create(vaultHome string, key []byte, ttl time.Duration) (token string, err error) {
	tokenKey, err := crypto.RandomBytes(crypto.KeyLength)
	if err != nil {
		return "", fmt.Errorf("sessiontoken: failed to generate token: %w", err)
	}
	defer crypto.SecureWipe(tokenKey)

	ciphertext, nonce, err := crypto.Encrypt(tokenKey, key)
	if err != nil {
		return "", fmt.Errorf("sessiontoken: failed to seal session key: %w", err)
	}

	c := capsule{
		Ciphertext:      ciphertext,
		Nonce:           nonce,
		ExpiresAtMillis: time.Now().Add(ttl).UnixMilli(),
	}
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("sessiontoken: failed to marshal capsule: %w", err)
	}

	path := filepath.Join(vaultHome, FileName)
	if err := os.WriteFile(path, data, 0600); err != nil {
		return "", fmt.Errorf("sessiontoken: failed to write capsule: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(tokenKey), nil
}

// Load opens the capsule at vaultHome/session.json and unseals it with
// token, returning the cached session key. The caller owns the returned
// slice and must wipe it with crypto.SecureWipe once done.
func Load(vaultHome, token string) ([]byte, error) {
	path := filepath.Join(vaultHome, FileName)

	f, err := os.OpenFile(path, os.O_RDONLY|syscall.O_NOFOLLOW, 0)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrCapsuleNotFound
		}
		return nil, fmt.Errorf("sessiontoken: failed to open capsule: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("sessiontoken: failed to stat capsule: %w", err)
	}
	if info.Mode().Perm() != 0600 {
		return nil, ErrCapsuleInsecure
	}

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("sessiontoken: failed to read capsule: %w", err)
	}

	var c capsule
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("sessiontoken: failed to parse capsule: %w", err)
	}

	if time.Now().UnixMilli() > c.ExpiresAtMillis {
		return nil, ErrExpired
	}

	tokenKey, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("sessiontoken: malformed token: %w", err)
	}
	defer crypto.SecureWipe(tokenKey)

	key, err := crypto.Decrypt(tokenKey, c.Ciphertext, c.Nonce)
	if err != nil {
		return nil, fmt.Errorf("sessiontoken: failed to unseal capsule: %w", err)
	}
	return key, nil
}

// Delete removes the capsule, if any. Called on lock so a stale capsule
// never outlives the session it was minted for.
func Delete(vaultHome string) error {
	path := filepath.Join(vaultHome, FileName)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("sessiontoken: failed to delete capsule: %w", err)
	}
	return nil
}
