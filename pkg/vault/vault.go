// Package vault implements keyvault's encrypted vault engine: the
// cryptographic envelope that turns a master password into a
// confidentiality-and-integrity guarantee for a collection of per-entry
// secrets, the locked/unlocked session state machine, and the entry index
// that serves metadata queries without ever touching ciphertext.
package vault

import (
	"fmt"
	"time"

	"github.com/keyvault/keyvault/pkg/crypto"
	"github.com/keyvault/keyvault/pkg/verifier"
)

// autoLockTickInterval is the background poll interval driving auto-lock
// for idle hosts (spec.md §4.5 requires "interval <= 60 s").
const autoLockTickInterval = 30 * time.Second

// Vault is the caller-owned handle over one on-disk store. It replaces the
// ambient "is unlocked" module flag the original design leaned on (see
// DESIGN.md's Open Question notes): every authenticated operation hangs
// off an explicitly constructed Vault rather than a process-wide
// singleton, so a test can freely build several independent vaults in the
// same process.
type Vault struct {
	path string
	doc  *document
	sess *session
	idx  *index

	tickerStarted bool
}

// Option configures a Vault at construction time.
type Option func(*Vault)

// WithClock overrides the wall clock the session uses for activity
// tracking and auto-lock, for deterministic tests (spec.md §8's auto-lock
// property advances "a monotonic clock" rather than sleeping).
func WithClock(clock func() time.Time) Option {
	return func(v *Vault) { v.sess.clock = clock }
}

// New constructs a Vault bound to the root document at path. It does not
// touch disk until Initialize or Unlock is called.
func New(path string, opts ...Option) *Vault {
	v := &Vault{
		path: path,
		sess: newSession(nil),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Path returns the canonical root document location (spec.md §4.4 path()).
func (v *Vault) Path() string { return v.path }

// Close releases background resources (the auto-lock ticker, the entry
// index). Hosts should defer this once they're done with a Vault.
func (v *Vault) Close() {
	v.sess.stopAutoLockTicker()
	v.idx.close()
}

func (v *Vault) now() int64 { return v.sess.nowMillis() }

// Initialize implements initialize(password) (spec.md §3, §6). Only legal
// when no vault exists at path yet.
func (v *Vault) Initialize(password string) error {
	if _, err := loadDocument(v.path); err == nil {
		return ErrAlreadyInitialized
	} else if err != ErrNotInitialized {
		return err
	}

	verifierBytes, err := verifier.Install([]byte(password))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIOError, err)
	}

	salt, err := crypto.RandomBytes(crypto.SaltLength)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIOError, err)
	}

	doc := newDocument()
	doc.Initialized = true
	doc.Verifier = verifierBytes
	doc.EntrySalt = salt
	doc.EntryKDFIterations = crypto.Iterations
	doc.LastActivity = v.now()
	appendAudit(doc, OpVaultInit, v.now(), nil)

	if err := commitDocument(v.path, doc); err != nil {
		return err
	}
	v.doc = doc
	return nil
}

// Unlock implements unlock(password) (spec.md §4.5, §6).
func (v *Vault) Unlock(password string) (entryCount int, err error) {
	doc, err := loadDocument(v.path)
	if err != nil {
		return 0, err
	}
	if !doc.Initialized {
		return 0, ErrNotInitialized
	}

	if verr := verifier.Verify(doc.Verifier, []byte(password)); verr != nil {
		d := v.sess.recordFailedUnlock()
		appendAudit(doc, OpVaultUnlockFailed, v.now(), nil)
		_ = commitDocument(v.path, doc)
		if d > 0 {
			time.Sleep(d)
		}
		return 0, ErrBadPassword
	}
	v.sess.resetFailures()

	key := crypto.DeriveN([]byte(password), doc.EntrySalt, doc.EntryKDFIterations)
	defer crypto.SecureWipe(key)

	idx, err := newIndex()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrIOError, err)
	}
	if err := idx.rebuild(doc.Entries); err != nil {
		idx.close()
		return 0, fmt.Errorf("%w: %v", ErrIOError, err)
	}

	v.doc = doc
	v.idx = idx
	v.sess.open(key)

	if hmacKey := v.currentAuditKey(); hmacKey != nil {
		appendAudit(doc, OpVaultUnlocked, v.now(), hmacKey)
		_ = commitDocument(v.path, doc)
	}

	if !v.tickerStarted {
		v.sess.startAutoLockTicker(autoLockTickInterval, func() int {
			if v.doc == nil {
				return 0
			}
			return v.doc.Settings.AutoLockMinutes
		})
		v.tickerStarted = true
	}

	return len(doc.Entries), nil
}

// Lock implements lock().
func (v *Vault) Lock() error {
	if v.doc != nil && !v.sess.isLocked() {
		appendAudit(v.doc, OpVaultLocked, v.now(), nil)
		_ = commitDocument(v.path, v.doc)
	}
	v.sess.close()
	return nil
}

// ExportSessionKey returns a copy of the currently cached entry-encryption
// key, for a host that needs to persist a session across process restarts
// (see internal/sessiontoken) without holding the master password in
// memory the whole time. The caller owns the returned slice and must wipe
// it with crypto.SecureWipe once done.
func (v *Vault) ExportSessionKey() (key []byte, err error) {
	if err := v.requireAuthenticated(); err != nil {
		return nil, err
	}
	err = v.sess.withKey(func(k []byte) error {
		key = append([]byte(nil), k...)
		return nil
	})
	return key, err
}

// RestoreSession re-opens the vault with an already-derived entry key,
// skipping password verification entirely. Callers must have obtained key
// from a prior ExportSessionKey call against the same vault; passing an
// arbitrary key re-opens the session under the wrong key and every
// subsequent Get/Add call will fail AEAD authentication instead of
// succeeding silently.
func (v *Vault) RestoreSession(key []byte) (entryCount int, err error) {
	doc, err := loadDocument(v.path)
	if err != nil {
		return 0, err
	}
	if !doc.Initialized {
		return 0, ErrNotInitialized
	}

	idx, err := newIndex()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrIOError, err)
	}
	if err := idx.rebuild(doc.Entries); err != nil {
		idx.close()
		return 0, fmt.Errorf("%w: %v", ErrIOError, err)
	}

	v.doc = doc
	v.idx = idx
	v.sess.open(key)

	if !v.tickerStarted {
		v.sess.startAutoLockTicker(autoLockTickInterval, func() int {
			if v.doc == nil {
				return 0
			}
			return v.doc.Settings.AutoLockMinutes
		})
		v.tickerStarted = true
	}

	return len(doc.Entries), nil
}

// Status implements status().
type Status struct {
	Initialized  bool  `json:"initialized"`
	Unlocked     bool  `json:"unlocked"`
	EntryCount   int   `json:"entry_count"`
	LastActivity int64 `json:"last_activity"`
}

func (v *Vault) Status() (Status, error) {
	doc := v.doc
	if doc == nil {
		loaded, err := loadDocument(v.path)
		if err != nil {
			if err == ErrNotInitialized {
				return Status{}, nil
			}
			return Status{}, err
		}
		doc = loaded
	}

	return Status{
		Initialized:  doc.Initialized,
		Unlocked:     !v.sess.isLocked(),
		EntryCount:   len(doc.Entries),
		LastActivity: doc.LastActivity,
	}, nil
}

func (v *Vault) requireAuthenticated() error {
	if v.doc == nil {
		return ErrVaultLocked
	}
	if v.sess.checkAutoLock(v.doc.Settings.AutoLockMinutes) {
		return ErrVaultLocked
	}
	if v.sess.isLocked() {
		return ErrVaultLocked
	}
	v.sess.touchActivity()
	v.doc.LastActivity = v.now()
	return nil
}

// Add implements add(record) -> Ok{id} | Locked | ValidationError.
func (v *Vault) Add(record NewRecord) (id string, err error) {
	if err := v.requireAuthenticated(); err != nil {
		return "", err
	}
	if err := validateNewRecord(record); err != nil {
		return "", err
	}
	if record.Environment == "" {
		record.Environment = EnvProduction
	}

	color, err := randomColor()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrIOError, err)
	}

	err = v.sess.withKey(func(key []byte) error {
		env, serr := sealWithKey(key, v.doc.EntrySalt, []byte(record.Plaintext), entryAD)
		if serr != nil {
			return fmt.Errorf("%w: %v", ErrIOError, serr)
		}

		e := Entry{
			ID:          newEntryID(),
			ServiceName: record.ServiceName,
			Ciphertext:  env,
			Environment: record.Environment,
			Tags:        normalizeTags(record.Tags),
			Domains:     normalizeDomains(record.Domains),
			Notes:       record.Notes,
			Color:       color,
			Favorite:    record.Favorite,
			CreatedAt:   v.now(),
			ExpiresAt:   record.ExpiresAt,
			RateLimit:   record.RateLimit,
		}

		v.doc.Entries[e.ID] = e
		id = e.ID
		return v.idx.upsert(e)
	})
	if err != nil {
		return "", err
	}

	appendAudit(v.doc, OpEntryAdded, v.now(), v.currentAuditKey())
	if err := commitDocument(v.path, v.doc); err != nil {
		return "", err
	}
	return id, nil
}

// Update implements update(id, partial) -> Ok | Locked | NotFound | ValidationError.
func (v *Vault) Update(id string, partial PartialRecord) error {
	if err := v.requireAuthenticated(); err != nil {
		return err
	}

	e, ok := v.doc.Entries[id]
	if !ok {
		return ErrNotFound
	}

	if partial.Environment != nil {
		if !validEnvironments[*partial.Environment] {
			return validationErr("environment", "must be one of production, development, staging, testing")
		}
		e.Environment = *partial.Environment
	}
	if partial.ServiceName != nil {
		if *partial.ServiceName == "" {
			return validationErr("service_name", "must not be empty")
		}
		e.ServiceName = *partial.ServiceName
	}
	if partial.TagsSet {
		e.Tags = normalizeTags(partial.Tags)
	}
	if partial.DomainsSet {
		e.Domains = normalizeDomains(partial.Domains)
	}
	if partial.Notes != nil {
		e.Notes = *partial.Notes
	}
	if partial.Favorite != nil {
		e.Favorite = *partial.Favorite
	}
	if partial.ExpiresAt != nil {
		e.ExpiresAt = *partial.ExpiresAt
	}
	if partial.RateLimit != nil {
		e.RateLimit = *partial.RateLimit
	}

	if partial.Plaintext != nil {
		err := v.sess.withKey(func(key []byte) error {
			env, serr := sealWithKey(key, v.doc.EntrySalt, []byte(*partial.Plaintext), entryAD)
			if serr != nil {
				return fmt.Errorf("%w: %v", ErrIOError, serr)
			}
			e.Ciphertext = env
			return nil
		})
		if err != nil {
			return err
		}
	}

	v.doc.Entries[id] = e
	if err := v.idx.upsert(e); err != nil {
		return fmt.Errorf("%w: %v", ErrIOError, err)
	}

	appendAudit(v.doc, OpEntryUpdated, v.now(), v.currentAuditKey())
	return commitDocument(v.path, v.doc)
}

// Delete implements delete(id) -> Ok | Locked | NotFound.
func (v *Vault) Delete(id string) error {
	if err := v.requireAuthenticated(); err != nil {
		return err
	}
	if _, ok := v.doc.Entries[id]; !ok {
		return ErrNotFound
	}

	delete(v.doc.Entries, id)
	if err := v.idx.remove(id); err != nil {
		return fmt.Errorf("%w: %v", ErrIOError, err)
	}

	appendAudit(v.doc, OpEntryDeleted, v.now(), v.currentAuditKey())
	return commitDocument(v.path, v.doc)
}

// Get implements get(id) -> Ok{entry_with_plaintext} | Locked | NotFound.
func (v *Vault) Get(id string) (EntryWithPlaintext, error) {
	if err := v.requireAuthenticated(); err != nil {
		return EntryWithPlaintext{}, err
	}

	e, ok := v.doc.Entries[id]
	if !ok {
		return EntryWithPlaintext{}, ErrNotFound
	}

	var plaintext []byte
	err := v.sess.withKey(func(key []byte) error {
		pt, oerr := openWithKey(key, e.Ciphertext, entryAD)
		if oerr != nil {
			return ErrVaultCorrupt
		}
		plaintext = pt
		return nil
	})
	if err != nil {
		return EntryWithPlaintext{}, err
	}
	defer crypto.SecureWipe(plaintext)

	return EntryWithPlaintext{EntryView: e.view(), Plaintext: string(plaintext)}, nil
}

// List implements list(filter) -> [EntryView] (requires Unlocked).
func (v *Vault) List(filter ListFilter) ([]EntryView, error) {
	if err := v.requireAuthenticated(); err != nil {
		return nil, err
	}

	ids, err := v.idx.queryIDs(filter, v.now())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIOError, err)
	}
	return v.viewsFor(ids), nil
}

// Search implements search(query) -> [EntryView] (requires Unlocked).
func (v *Vault) Search(query string) ([]EntryView, error) {
	if err := v.requireAuthenticated(); err != nil {
		return nil, err
	}

	ids, err := v.idx.searchIDs(query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIOError, err)
	}
	return v.viewsFor(ids), nil
}

func (v *Vault) viewsFor(ids []string) []EntryView {
	views := make([]EntryView, 0, len(ids))
	for _, id := range ids {
		if e, ok := v.doc.Entries[id]; ok {
			views = append(views, e.view())
		}
	}
	return views
}

// RecordUsage implements record_usage(id, domain) -> Ok | Locked | NotFound.
func (v *Vault) RecordUsage(id, domain string) error {
	if err := v.requireAuthenticated(); err != nil {
		return err
	}

	e, ok := v.doc.Entries[id]
	if !ok {
		return ErrNotFound
	}

	now := v.now()
	e.LastUsedAt = &now
	e.UsageCount++
	e.Domains = unionDomain(e.Domains, domain)

	v.doc.Entries[id] = e
	if err := v.idx.upsert(e); err != nil {
		return fmt.Errorf("%w: %v", ErrIOError, err)
	}

	appendAudit(v.doc, OpEntryUsed, v.now(), v.currentAuditKey())
	return commitDocument(v.path, v.doc)
}

// AuditTail implements audit_tail(n) -> [AuditEntry].
func (v *Vault) AuditTail(n int) ([]AuditRecord, error) {
	if v.doc == nil {
		doc, err := loadDocument(v.path)
		if err != nil {
			return nil, err
		}
		return auditTail(doc, n), nil
	}
	return auditTail(v.doc, n), nil
}

// Settings returns the vault's current settings record.
func (v *Vault) Settings() (Settings, error) {
	if v.doc == nil {
		doc, err := loadDocument(v.path)
		if err != nil {
			return Settings{}, err
		}
		return doc.Settings, nil
	}
	return v.doc.Settings, nil
}

// UpdateSettings validates and persists a new settings record. Requires
// Unlocked, matching every other mutating operation.
func (v *Vault) UpdateSettings(s Settings) error {
	if err := v.requireAuthenticated(); err != nil {
		return err
	}
	if err := validateSettings(s); err != nil {
		return err
	}
	v.doc.Settings = s
	return commitDocument(v.path, v.doc)
}

// currentAuditKey derives the audit HMAC subkey from the live session key,
// or returns nil if the session key can't be borrowed (shouldn't happen
// for a caller that just passed requireAuthenticated).
func (v *Vault) currentAuditKey() []byte {
	var hmacKey []byte
	_ = v.sess.withKey(func(key []byte) error {
		k, err := auditHMACKey(key)
		if err == nil {
			hmacKey = k
		}
		return nil
	})
	return hmacKey
}

// GenerateSecret implements generate_secret(length) -> string.
func (v *Vault) GenerateSecret(length int) (string, error) {
	return GenerateSecret(length)
}

