package vault

import (
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Environment enumerates the values Entry.Environment accepts.
const (
	EnvProduction  = "production"
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvTesting     = "testing"
)

var validEnvironments = map[string]bool{
	EnvProduction:  true,
	EnvDevelopment: true,
	EnvStaging:     true,
	EnvTesting:     true,
}

// colorPalette is the fixed set colors are randomly assigned from at
// creation (spec.md §3, "randomly assigned at creation from a fixed
// palette").
var colorPalette = []string{
	"red", "orange", "amber", "green", "teal", "blue", "indigo", "violet", "pink", "slate",
}

// Entry is one stored secret, as held in the vault root. Ciphertext is the
// opaque envelope produced by the entry codec; it is never surfaced to a
// query result (see EntryView).
type Entry struct {
	ID          string   `json:"id"`
	ServiceName string   `json:"service_name"`
	Ciphertext  []byte   `json:"ciphertext"`
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

// EntryView is an Entry with Ciphertext omitted — safe to hand to any host
// UI without decrypting anything.
type EntryView struct {
	ID          string   `json:"id"`
	ServiceName string   `json:"service_name"`
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

// EntryWithPlaintext is the result of get(id): an EntryView plus the
// decrypted secret, valid only for the duration of the call that produced
// it — the caller owns zeroizing or discarding Plaintext.
type EntryWithPlaintext struct {
	EntryView
	Plaintext string `json:"plaintext"`
}

func (e Entry) view() EntryView {
	return EntryView{
		ID:          e.ID,
		ServiceName: e.ServiceName,
		Environment: e.Environment,
		Tags:        e.Tags,
		Domains:     e.Domains,
		Notes:       e.Notes,
		Color:       e.Color,
		Favorite:    e.Favorite,
		CreatedAt:   e.CreatedAt,
		LastUsedAt:  e.LastUsedAt,
		ExpiresAt:   e.ExpiresAt,
		UsageCount:  e.UsageCount,
		RateLimit:   e.RateLimit,
	}
}

// NewRecord is the caller-supplied payload for add(record).
type NewRecord struct {
	ServiceName string
	Plaintext   string
	Environment string
	Tags        []string
	Domains     []string
	Notes       string
	Favorite    bool
	ExpiresAt   *int64
	RateLimit   string
}

// PartialRecord is the caller-supplied payload for update(id, partial).
// Nil fields are left unchanged; Plaintext, when non-nil, triggers a
// re-seal under the session key.
type PartialRecord struct {
	ServiceName *string
	Plaintext   *string
	Environment *string
	Tags        []string
	TagsSet     bool
	Domains     []string
	DomainsSet  bool
	Notes       *string
	Favorite    *bool
	ExpiresAt   **int64
	RateLimit   *string
}

func newEntryID() string {
	return uuid.NewString()
}

func randomColor() (string, error) {
	idx, err := randomIndex(len(colorPalette))
	if err != nil {
		return "", err
	}
	return colorPalette[idx], nil
}

func normalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func normalizeDomains(domains []string) []string {
	seen := make(map[string]bool, len(domains))
	out := make([]string, 0, len(domains))
	for _, d := range domains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d == "" || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

func unionDomain(domains []string, domain string) []string {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		return domains
	}
	for _, d := range domains {
		if d == domain {
			return domains
		}
	}
	return normalizeDomains(append(append([]string{}, domains...), domain))
}

func validateNewRecord(r NewRecord) error {
	if strings.TrimSpace(r.ServiceName) == "" {
		return validationErr("service_name", "is required")
	}
	if r.Plaintext == "" {
		return validationErr("plaintext", "is required")
	}
	if r.Environment != "" && !validEnvironments[r.Environment] {
		return validationErr("environment", "must be one of production, development, staging, testing")
	}
	if r.ExpiresAt != nil && *r.ExpiresAt < 0 {
		return validationErr("expires_at", "must not be negative")
	}
	return nil
}
