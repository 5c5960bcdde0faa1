package vault

import (
	"github.com/keyvault/keyvault/pkg/crypto"
)

// Envelope layout, per spec.md §4.3 — all fields are fixed-width except the
// trailing ciphertext, so framing never needs a length prefix:
//
//	magic(2) | version(1) | salt(16) | nonce(12) | ciphertext_and_tag(n+16)
var magic = [2]byte{'K', 'V'}

const version1 = byte(1)

const envelopeHeaderLen = 2 + 1 + crypto.SaltLength + crypto.NonceLength

// entryAD is the (empty) associated data bound into entry envelopes.
var entryAD = []byte{}

// backupAD is the associated data bound into backup envelopes.
var backupAD = []byte("backup:v1")

// sealWithKey builds an envelope using an already-derived key, writing salt
// into the envelope's salt field even though decryption with this function
// family never re-derives from it — see DESIGN.md for why a shared,
// session-cached key still populates a per-envelope salt field.
func sealWithKey(key, salt, plaintext, ad []byte) ([]byte, error) {
	ciphertext, nonce, err := crypto.EncryptAD(key, plaintext, ad)
	if err != nil {
		return nil, err
	}

	env := make([]byte, 0, envelopeHeaderLen+len(ciphertext))
	env = append(env, magic[:]...)
	env = append(env, version1)
	env = append(env, salt...)
	env = append(env, nonce...)
	env = append(env, ciphertext...)
	return env, nil
}

// openWithKey decrypts an envelope using an already-derived key, ignoring
// the embedded salt (the caller is responsible for having derived key from
// the same salt recorded elsewhere, e.g. the vault root's entry salt).
func openWithKey(key, env, ad []byte) (plaintext []byte, err error) {
	salt, nonce, ciphertext, err := parseEnvelope(env)
	if err != nil {
		return nil, err
	}
	_ = salt

	plaintext, derr := crypto.DecryptAD(key, ciphertext, nonce, ad)
	if derr != nil {
		return nil, errAuthFailure
	}
	return plaintext, nil
}

// sealWithPassword derives a fresh key from password and a newly generated
// salt, then seals plaintext. Used by the backup envelope, whose key is
// derived once per export/import rather than cached across a session.
func sealWithPassword(password, plaintext, ad []byte) ([]byte, error) {
	salt, err := crypto.RandomBytes(crypto.SaltLength)
	if err != nil {
		return nil, err
	}
	key := crypto.Derive(password, salt)
	defer crypto.SecureWipe(key)
	return sealWithKey(key, salt, plaintext, ad)
}

// openWithPassword parses the salt out of env, derives the matching key
// from password, and opens it.
func openWithPassword(password, env, ad []byte) (plaintext []byte, err error) {
	salt, nonce, ciphertext, err := parseEnvelope(env)
	if err != nil {
		return nil, err
	}

	key := crypto.Derive(password, salt)
	defer crypto.SecureWipe(key)

	plaintext, derr := crypto.DecryptAD(key, ciphertext, nonce, ad)
	if derr != nil {
		return nil, errAuthFailure
	}
	return plaintext, nil
}

func parseEnvelope(env []byte) (salt, nonce, ciphertext []byte, err error) {
	if len(env) < envelopeHeaderLen+crypto.TagLength {
		return nil, nil, nil, errInvalidEnvelope
	}
	if env[0] != magic[0] || env[1] != magic[1] {
		return nil, nil, nil, errInvalidEnvelope
	}
	if env[2] != version1 {
		return nil, nil, nil, errInvalidEnvelope
	}

	off := 3
	salt = env[off : off+crypto.SaltLength]
	off += crypto.SaltLength
	nonce = env[off : off+crypto.NonceLength]
	off += crypto.NonceLength
	ciphertext = env[off:]
	return salt, nonce, ciphertext, nil
}

// entrySaltOf reports the salt recorded in an entry envelope, used only to
// keep the per-entry salt field meaningful for a future codec revision that
// might derive per-entry keys (see DESIGN.md).
func entrySaltOf(env []byte) ([]byte, error) {
	salt, _, _, err := parseEnvelope(env)
	return salt, err
}
