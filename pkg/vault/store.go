package vault

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FormatVersion is the current on-disk root document version.
const FormatVersion = 1

// document is the Vault root record (spec.md §3). Persistence is a single
// self-describing JSON object; fields this binary doesn't know about are
// round-tripped via extra rather than dropped, the way a forward-compatible
// textual format must behave.
type document struct {
	FormatVersion       int                  `json:"format_version"`
	Initialized         bool                 `json:"initialized"`
	Verifier            []byte               `json:"verifier,omitempty"`
	EntrySalt           []byte               `json:"entry_salt,omitempty"`
	EntryKDFIterations  int                  `json:"entry_kdf_iterations,omitempty"`
	Entries             map[string]Entry     `json:"entries"`
	Settings            Settings             `json:"settings"`
	AuditLog            []AuditRecord        `json:"audit_log"`
	LastActivity        int64                `json:"last_activity"`

	extra map[string]json.RawMessage
}

var knownDocumentKeys = map[string]bool{
	"format_version": true, "initialized": true, "verifier": true,
	"entry_salt": true, "entry_kdf_iterations": true, "entries": true,
	"settings": true, "audit_log": true, "last_activity": true,
}

func newDocument() *document {
	return &document{
		FormatVersion: FormatVersion,
		Entries:       make(map[string]Entry),
		Settings:      DefaultSettings(),
		AuditLog:      nil,
		extra:         make(map[string]json.RawMessage),
	}
}

// MarshalJSON merges the known fields with any preserved unknown ones.
func (d *document) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(d.extra)+8)
	for k, v := range d.extra {
		out[k] = v
	}

	type known struct {
		FormatVersion      int              `json:"format_version"`
		Initialized        bool             `json:"initialized"`
		Verifier           []byte           `json:"verifier,omitempty"`
		EntrySalt          []byte           `json:"entry_salt,omitempty"`
		EntryKDFIterations int              `json:"entry_kdf_iterations,omitempty"`
		Entries            map[string]Entry `json:"entries"`
		Settings           Settings         `json:"settings"`
		AuditLog           []AuditRecord    `json:"audit_log"`
		LastActivity       int64            `json:"last_activity"`
	}
	raw, err := json.Marshal(known{
		FormatVersion:      d.FormatVersion,
		Initialized:        d.Initialized,
		Verifier:           d.Verifier,
		EntrySalt:          d.EntrySalt,
		EntryKDFIterations: d.EntryKDFIterations,
		Entries:            d.Entries,
		Settings:           d.Settings,
		AuditLog:           d.AuditLog,
		LastActivity:       d.LastActivity,
	})
	if err != nil {
		return nil, err
	}

	var knownMap map[string]json.RawMessage
	if err := json.Unmarshal(raw, &knownMap); err != nil {
		return nil, err
	}
	for k, v := range knownMap {
		out[k] = v
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes known fields and preserves the rest in extra.
func (d *document) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	type known struct {
		FormatVersion      int              `json:"format_version"`
		Initialized        bool             `json:"initialized"`
		Verifier           []byte           `json:"verifier,omitempty"`
		EntrySalt          []byte           `json:"entry_salt,omitempty"`
		EntryKDFIterations int              `json:"entry_kdf_iterations,omitempty"`
		Entries            map[string]Entry `json:"entries"`
		Settings           Settings         `json:"settings"`
		AuditLog           []AuditRecord    `json:"audit_log"`
		LastActivity       int64            `json:"last_activity"`
	}
	var k known
	if err := json.Unmarshal(b, &k); err != nil {
		return err
	}

	d.FormatVersion = k.FormatVersion
	d.Initialized = k.Initialized
	d.Verifier = k.Verifier
	d.EntrySalt = k.EntrySalt
	d.EntryKDFIterations = k.EntryKDFIterations
	d.Entries = k.Entries
	if d.Entries == nil {
		d.Entries = make(map[string]Entry)
	}
	d.Settings = k.Settings
	d.AuditLog = k.AuditLog
	d.LastActivity = k.LastActivity

	d.extra = make(map[string]json.RawMessage)
	for key, v := range raw {
		if !knownDocumentKeys[key] {
			d.extra[key] = v
		}
	}
	return nil
}

// loadDocument reads and parses the root document at path. A missing file
// is reported as ErrNotInitialized, matching load() -> Vault | NotFound.
func loadDocument(path string) (*document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotInitialized
		}
		return nil, fmt.Errorf("%w: %v", ErrIOError, err)
	}

	doc := &document{}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVaultCorrupt, err)
	}
	return doc, nil
}

// commitDocument serializes doc to a temp file in dir(path) and renames it
// over path, fsync'ing the temp file first. This is the same
// write-then-rename idiom the teacher uses for its own rewritten files
// (audit log rewrite, backup restore): never leave a half-written root.
func commitDocument(path string, doc *document) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("%w: %v", ErrIOError, err)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIOError, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIOError, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: %v", ErrIOError, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: %v", ErrIOError, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: %v", ErrIOError, err)
	}
	if err := os.Chmod(tmpPath, 0600); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: %v", ErrIOError, err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: %v", ErrIOError, err)
	}
	warnIfInsecurePermissions(path)
	return nil
}
