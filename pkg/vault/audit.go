package vault

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/hkdf"
)

// Audit operation tags (spec.md §4.8: "short, stable, machine-readable").
const (
	OpVaultInit         = "vault.initialized"
	OpVaultUnlocked     = "vault.unlocked"
	OpVaultUnlockFailed = "vault.unlock_failed"
	OpVaultLocked       = "vault.locked"
	OpEntryAdded        = "entry.added"
	OpEntryUpdated      = "entry.updated"
	OpEntryDeleted      = "entry.deleted"
	OpEntryUsed         = "entry.used"
	OpPasswordChanged   = "vault.password_changed"
	OpBackupExported    = "backup.exported"
	OpBackupImported    = "backup.imported"
)

// maxAuditRecords is Invariant #4 (spec.md §3): audit_log length <= 1000,
// oldest dropped first.
const maxAuditRecords = 1000

// AuditRecord is one entry in the vault's bounded audit ring. Sequence,
// PrevHMAC and HMAC extend spec.md's literal {action, timestamp} pair with
// a tamper-evidence chain, derived from the session key the way the
// teacher's audit subsystem derives its own HMAC subkey via HKDF. Sequence
// is always set; HMAC is empty for records written with no session key
// (e.g. records written before the first unlock in a freshly initialized
// vault).
type AuditRecord struct {
	Action    string `json:"action"`
	Timestamp int64  `json:"timestamp"`
	Sequence  int64  `json:"seq,omitempty"`
	PrevHMAC  string `json:"prev_hmac,omitempty"`
	HMAC      string `json:"hmac,omitempty"`
}

// auditHMACKey derives the audit chain's HMAC subkey from the session's
// cached entry-encryption key via HKDF-SHA256, domain-separated by the
// "audit-log-v1" info label — the same derive-a-subkey-from-the-session-key
// shape the teacher's own audit logger uses for its HMAC key.
func auditHMACKey(sessionKey []byte) ([]byte, error) {
	r := hkdf.New(sha256.New, sessionKey, nil, []byte("audit-log-v1"))
	key := make([]byte, 32)
	if _, err := r.Read(key); err != nil {
		return nil, fmt.Errorf("vault: deriving audit HMAC key: %w", err)
	}
	return key, nil
}

func auditRecordHMAC(key []byte, rec AuditRecord) string {
	mac := hmac.New(sha256.New, key)
	fmt.Fprintf(mac, "%s|%d|%d|%s", rec.Action, rec.Timestamp, rec.Sequence, rec.PrevHMAC)
	return hex.EncodeToString(mac.Sum(nil))
}

// appendAudit appends a record to doc.AuditLog, chaining it under hmacKey
// when one is available, and trims the ring to maxAuditRecords from the
// head. A nil hmacKey (no unlocked session yet — e.g. the very first
// vault.initialized record) still appends a numbered record, with an empty
// HMAC.
func appendAudit(doc *document, action string, now int64, hmacKey []byte) {
	if !doc.Settings.EnableAuditLog {
		return
	}

	rec := AuditRecord{Action: action, Timestamp: now}
	if n := len(doc.AuditLog); n > 0 {
		rec.Sequence = doc.AuditLog[n-1].Sequence + 1
		rec.PrevHMAC = doc.AuditLog[n-1].HMAC
	} else {
		rec.Sequence = 1
	}
	if hmacKey != nil {
		rec.HMAC = auditRecordHMAC(hmacKey, rec)
	}

	doc.AuditLog = append(doc.AuditLog, rec)
	if len(doc.AuditLog) > maxAuditRecords {
		doc.AuditLog = doc.AuditLog[len(doc.AuditLog)-maxAuditRecords:]
	}
}

// auditTail returns the n most recent records, newest first.
func auditTail(doc *document, n int) []AuditRecord {
	if n <= 0 || len(doc.AuditLog) == 0 {
		return nil
	}
	if n > len(doc.AuditLog) {
		n = len(doc.AuditLog)
	}
	out := make([]AuditRecord, n)
	for i := 0; i < n; i++ {
		out[i] = doc.AuditLog[len(doc.AuditLog)-1-i]
	}
	return out
}
