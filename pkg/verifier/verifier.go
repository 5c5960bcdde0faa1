// Package verifier implements the password verifier: a small, separately
// salted record that lets the vault confirm a candidate master password is
// correct without ever deriving or touching the entry-encryption key.
//
// The verifier's derived tag is never reused as key material elsewhere —
// it is bound to its own salt, distinct from the vault's encryption salt,
// so a verifier compromise cannot be turned into an encryption key and
// vice versa.
package verifier

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/keyvault/keyvault/pkg/crypto"
)

// Stored layout: iterations(4, big-endian) || salt(16) || tag(32).
const (
	saltOffset = 4
	tagOffset  = saltOffset + crypto.SaltLength
	recordLen  = tagOffset + crypto.KeyLength
)

// ErrMalformed indicates a stored verifier record has the wrong shape.
var ErrMalformed = errors.New("verifier: malformed record")

// ErrWrongPassword indicates the candidate password did not match.
var ErrWrongPassword = errors.New("verifier: wrong password")

// Install derives a fresh verifier record for password, generating its own
// random salt and recording the current iteration count so a future
// increase to crypto.Iterations never invalidates an existing vault.
func Install(password []byte) ([]byte, error) {
	salt, err := crypto.RandomBytes(crypto.SaltLength)
	if err != nil {
		return nil, fmt.Errorf("verifier: generating salt: %w", err)
	}
	return installWithSalt(password, salt, crypto.Iterations)
}

func installWithSalt(password, salt []byte, iterations int) ([]byte, error) {
	tag := crypto.DeriveN(password, salt, iterations)
	defer crypto.SecureWipe(tag)

	rec := make([]byte, recordLen)
	binary.BigEndian.PutUint32(rec[:saltOffset], uint32(iterations))
	copy(rec[saltOffset:tagOffset], salt)
	copy(rec[tagOffset:], tag)
	return rec, nil
}

// Verify reports whether password matches the verifier record produced by
// Install, using the iteration count and salt recorded in stored rather
// than the package's current defaults — so raising crypto.Iterations never
// breaks verification of a vault created under a lower count.
func Verify(stored, password []byte) error {
	if len(stored) != recordLen {
		return ErrMalformed
	}

	iterations := int(binary.BigEndian.Uint32(stored[:saltOffset]))
	salt := stored[saltOffset:tagOffset]
	wantTag := stored[tagOffset:]

	gotTag := crypto.DeriveN(password, salt, iterations)
	defer crypto.SecureWipe(gotTag)

	if !crypto.ConstantTimeEqual(gotTag, wantTag) {
		return ErrWrongPassword
	}
	return nil
}
