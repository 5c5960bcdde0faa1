// Package importer adapts exports from other password managers into
// keyvault NewRecords. Each competitor format carries more structure per
// item (separate username/password/TOTP/card fields) than a vault Entry
// does (one service_name, one plaintext secret, tags, domains, notes), so
// every parser here picks one field as the entry's Plaintext and folds the
// rest into Notes rather than dropping them.
package importer

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/keyvault/keyvault/pkg/vault"
)

// Source identifies which competitor export format a parser reads.
type Source string

const (
	Source1Password Source = "1password"
	SourceBitwarden  Source = "bitwarden"
	SourceLastPass   Source = "lastpass"
)

// ImportedSecret is one parsed item, already shaped to become a vault
// entry. ServiceName and Plaintext are display text, not a sanitized key —
// the vault has no per-entry key-name constraint beyond "not empty".
type ImportedSecret struct {
	ServiceName string
	Plaintext   string
	Tags        []string
	Domains     []string
	Notes       string
	Favorite    bool
}

// ToNewRecord converts a parsed item into the payload vault.Add expects.
func (s *ImportedSecret) ToNewRecord() vault.NewRecord {
	return vault.NewRecord{
		ServiceName: s.ServiceName,
		Plaintext:   s.Plaintext,
		Tags:        s.Tags,
		Domains:     s.Domains,
		Notes:       s.Notes,
		Favorite:    s.Favorite,
	}
}

// ImportResult is the outcome of parsing one export file.
type ImportResult struct {
	Secrets  []*ImportedSecret
	Warnings []string
	Skipped  []SkippedItem
}

// SkippedItem is an export row/item that produced no usable secret value.
type SkippedItem struct {
	OriginalName string
	Reason       string
}

// Parser parses one competitor export format.
type Parser interface {
	Parse(data []byte, opts ParseOptions) (*ImportResult, error)
	Source() Source
}

// ParseOptions controls parser behavior.
type ParseOptions struct {
	// PreserveCase is not read by any parser; generated fallback names are
	// never lowercased.
	PreserveCase bool
}

// GenerateFallbackName produces a display name for an item whose title is
// empty: the URL's hostname if one exists, otherwise a numbered placeholder.
func GenerateFallbackName(url string, counter int) string {
	if url != "" {
		if host := extractHostname(url); host != "" {
			return host
		}
	}
	return fmt.Sprintf("Imported item %d", counter)
}

func extractHostname(urlStr string) string {
	urlStr = strings.TrimPrefix(urlStr, "https://")
	urlStr = strings.TrimPrefix(urlStr, "http://")
	if idx := strings.Index(urlStr, "/"); idx != -1 {
		urlStr = urlStr[:idx]
	}
	if idx := strings.Index(urlStr, ":"); idx != -1 {
		urlStr = urlStr[:idx]
	}
	return strings.TrimPrefix(urlStr, "www.")
}

// DecodeHTMLEntities decodes the handful of entities LastPass exports may
// contain in free-text fields.
func DecodeHTMLEntities(s string) string {
	s = strings.ReplaceAll(s, "&amp;", "&")
	s = strings.ReplaceAll(s, "&lt;", "<")
	s = strings.ReplaceAll(s, "&gt;", ">")
	s = strings.ReplaceAll(s, "&quot;", "\"")
	s = strings.ReplaceAll(s, "&#39;", "'")
	s = strings.ReplaceAll(s, "&apos;", "'")
	return s
}

// NormalizeValue trims whitespace and applies Unicode NFC normalization, so
// values that render identically but use different combining-character
// sequences become byte-identical.
func NormalizeValue(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// foldExtraFields renders labeled values the vault entry model has no
// dedicated slot for (username, TOTP seed, card number, ...) into a single
// Notes block, in a stable label order.
func foldExtraFields(pairs [][2]string) string {
	var b strings.Builder
	for _, p := range pairs {
		label, value := p[0], p[1]
		if value == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s: %s", label, value)
	}
	return b.String()
}

// GetParser returns a parser for the given source.
func GetParser(source Source) (Parser, error) {
	switch source {
	case Source1Password:
		return &OnePasswordParser{}, nil
	case SourceBitwarden:
		return &BitwardenParser{}, nil
	case SourceLastPass:
		return &LastPassParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported import source: %s", source)
	}
}

// ValidSources returns the names GetParser accepts.
func ValidSources() []string {
	return []string{string(Source1Password), string(SourceBitwarden), string(SourceLastPass)}
}
