package vault

import (
	"fmt"

	"github.com/keyvault/keyvault/pkg/crypto"
	"github.com/keyvault/keyvault/pkg/verifier"
)

// ChangePassword re-keys the vault: every entry is decrypted under the
// current session key and re-encrypted under a key derived from
// newPassword, the verifier is reinstalled, and the whole batch commits
// atomically. This is the operation Invariant #2 requires ("Re-keying
// (password change) must re-encrypt every entry atomically") but that
// spec.md §6 never names as its own verb — see DESIGN.md.
func (v *Vault) ChangePassword(oldPassword, newPassword string) error {
	if err := v.requireAuthenticated(); err != nil {
		return err
	}

	if verr := verifier.Verify(v.doc.Verifier, []byte(oldPassword)); verr != nil {
		return ErrBadPassword
	}

	newSalt, err := crypto.RandomBytes(crypto.SaltLength)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIOError, err)
	}
	newKey := crypto.Derive([]byte(newPassword), newSalt)
	defer crypto.SecureWipe(newKey)

	reencrypted := make(map[string]Entry, len(v.doc.Entries))
	err = v.sess.withKey(func(oldKey []byte) error {
		for id, e := range v.doc.Entries {
			pt, oerr := openWithKey(oldKey, e.Ciphertext, entryAD)
			if oerr != nil {
				return ErrVaultCorrupt
			}
			env, serr := sealWithKey(newKey, newSalt, pt, entryAD)
			crypto.SecureWipe(pt)
			if serr != nil {
				return fmt.Errorf("%w: %v", ErrIOError, serr)
			}
			e.Ciphertext = env
			reencrypted[id] = e
		}
		return nil
	})
	if err != nil {
		return err
	}

	newVerifier, err := verifier.Install([]byte(newPassword))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIOError, err)
	}

	v.doc.Entries = reencrypted
	v.doc.Verifier = newVerifier
	v.doc.EntrySalt = newSalt
	v.doc.EntryKDFIterations = crypto.Iterations
	v.sess.open(newKey)

	appendAudit(v.doc, OpPasswordChanged, v.now(), v.currentAuditKey())
	if err := commitDocument(v.path, v.doc); err != nil {
		return err
	}
	return v.idx.rebuild(v.doc.Entries)
}
