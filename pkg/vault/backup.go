package vault

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/keyvault/keyvault/pkg/crypto"
)

// ImportPolicy governs how import(bytes, password, policy) resolves
// advisory service_name collisions (spec.md §4.7).
type ImportPolicy string

const (
	PolicySkipDuplicate ImportPolicy = "skip_duplicate"
	PolicyOverwrite     ImportPolicy = "overwrite"
	PolicyRename         ImportPolicy = "rename"
)

// ImportReport counts the outcome of an import (spec.md §4.7).
type ImportReport struct {
	Inserted   int `json:"inserted"`
	Skipped    int `json:"skipped"`
	Overwritten int `json:"overwritten"`
	Renamed    int `json:"renamed"`
}

// backupEntry is one entry as carried inside a backup payload: plaintext,
// not ciphertext, since the whole payload is sealed under the backup
// envelope instead.
type backupEntry struct {
	ID          string   `json:"id"`
	ServiceName string   `json:"service_name"`
	Plaintext   string   `json:"plaintext"`
	Environment string   `json:"environment"`
	Tags        []string `json:"tags"`
	Domains     []string `json:"domains"`
	Notes       string   `json:"notes"`
	Color       string   `json:"color"`
	Favorite    bool     `json:"favorite"`
	CreatedAt   int64    `json:"created_at"`
	LastUsedAt  *int64   `json:"last_used_at,omitempty"`
	ExpiresAt   *int64   `json:"expires_at,omitempty"`
	UsageCount  int      `json:"usage_count"`
	RateLimit   string   `json:"rate_limit,omitempty"`
}

// backupPayload is the plaintext snapshot sealed inside a backup envelope
// (spec.md §4.7: "{entries_with_plaintext, settings, export_timestamp}").
type backupPayload struct {
	Entries        []backupEntry `json:"entries"`
	Settings       Settings      `json:"settings"`
	ExportTimestamp int64        `json:"export_timestamp"`
}

// Export implements export(backup_password) -> bytes (requires Unlocked).
func (v *Vault) Export(backupPassword string) ([]byte, error) {
	if err := v.requireAuthenticated(); err != nil {
		return nil, err
	}

	payload := backupPayload{
		Settings:        v.doc.Settings,
		ExportTimestamp: v.now(),
	}

	err := v.sess.withKey(func(key []byte) error {
		for _, e := range v.doc.Entries {
			pt, oerr := openWithKey(key, e.Ciphertext, entryAD)
			if oerr != nil {
				return ErrVaultCorrupt
			}
			payload.Entries = append(payload.Entries, backupEntry{
				ID: e.ID, ServiceName: e.ServiceName, Plaintext: string(pt),
				Environment: e.Environment, Tags: e.Tags, Domains: e.Domains,
				Notes: e.Notes, Color: e.Color, Favorite: e.Favorite,
				CreatedAt: e.CreatedAt, LastUsedAt: e.LastUsedAt,
				ExpiresAt: e.ExpiresAt, UsageCount: e.UsageCount, RateLimit: e.RateLimit,
			})
			crypto.SecureWipe(pt)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIOError, err)
	}

	env, err := sealWithPassword([]byte(backupPassword), raw, backupAD)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIOError, err)
	}

	appendAudit(v.doc, OpBackupExported, v.now(), v.currentAuditKey())
	if err := commitDocument(v.path, v.doc); err != nil {
		return nil, err
	}
	return env, nil
}

// Import implements import(bytes, password, policy) -> ImportReport
// (requires Unlocked). Every incoming entry is re-encrypted under the
// current vault's session key before insertion, and the whole batch lands
// in a single atomic commit.
func (v *Vault) Import(data []byte, backupPassword string, policy ImportPolicy) (ImportReport, error) {
	if err := v.requireAuthenticated(); err != nil {
		return ImportReport{}, err
	}

	raw, err := openWithPassword([]byte(backupPassword), data, backupAD)
	if err != nil {
		if errors.Is(err, errInvalidEnvelope) {
			return ImportReport{}, ErrVaultCorrupt
		}
		return ImportReport{}, ErrBadBackupPassword
	}

	var payload backupPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return ImportReport{}, ErrVaultCorrupt
	}

	existingByName := make(map[string]string, len(v.doc.Entries)) // lower(service_name) -> id
	for id, e := range v.doc.Entries {
		existingByName[strings.ToLower(e.ServiceName)] = id
	}

	var report ImportReport
	err = v.sess.withKey(func(key []byte) error {
		for _, be := range payload.Entries {
			existingID, collides := existingByName[strings.ToLower(be.ServiceName)]

			var targetID, serviceName string
			switch {
			case !collides:
				// Preserve the incoming id if it's unique in this vault;
				// otherwise mint a fresh one (spec.md §4.7).
				targetID = be.ID
				if targetID == "" {
					targetID = newEntryID()
				} else if _, taken := v.doc.Entries[targetID]; taken {
					targetID = newEntryID()
				}
				serviceName = be.ServiceName
				report.Inserted++
			case policy == PolicySkipDuplicate:
				report.Skipped++
				continue
			case policy == PolicyOverwrite:
				targetID = existingID
				serviceName = be.ServiceName
				report.Overwritten++
			case policy == PolicyRename:
				targetID = newEntryID()
				serviceName = renameForCollision(be.ServiceName, existingByName)
				report.Renamed++
			default:
				return validationErr("policy", "must be one of skip_duplicate, overwrite, rename")
			}

			env, serr := sealWithKey(key, v.doc.EntrySalt, []byte(be.Plaintext), entryAD)
			if serr != nil {
				return fmt.Errorf("%w: %v", ErrIOError, serr)
			}

			e := Entry{
				ID: targetID, ServiceName: serviceName, Ciphertext: env,
				Environment: be.Environment, Tags: normalizeTags(be.Tags),
				Domains: normalizeDomains(be.Domains), Notes: be.Notes,
				Color: be.Color, Favorite: be.Favorite, CreatedAt: be.CreatedAt,
				LastUsedAt: be.LastUsedAt, ExpiresAt: be.ExpiresAt,
				UsageCount: be.UsageCount, RateLimit: be.RateLimit,
			}
			if e.Color == "" {
				if c, cerr := randomColor(); cerr == nil {
					e.Color = c
				}
			}

			v.doc.Entries[e.ID] = e
			existingByName[strings.ToLower(e.ServiceName)] = e.ID
			if ierr := v.idx.upsert(e); ierr != nil {
				return fmt.Errorf("%w: %v", ErrIOError, ierr)
			}
		}
		return nil
	})
	if err != nil {
		return ImportReport{}, err
	}

	appendAudit(v.doc, OpBackupImported, v.now(), v.currentAuditKey())
	if err := commitDocument(v.path, v.doc); err != nil {
		return ImportReport{}, err
	}
	return report, nil
}

func renameForCollision(name string, existing map[string]string) string {
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s (%d)", name, i)
		if _, taken := existing[strings.ToLower(candidate)]; !taken {
			return candidate
		}
	}
}
