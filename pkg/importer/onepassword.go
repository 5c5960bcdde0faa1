package importer

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// OnePasswordParser parses 1Password CSV exports (9 columns):
// Title,Website,Username,Password,OTPAuth,Favorite,Archived,Tags,Notes
type OnePasswordParser struct{}

const (
	op1ColTitle    = "Title"
	op1ColWebsite  = "Website"
	op1ColUsername = "Username"
	op1ColPassword = "Password"
	op1ColOTPAuth  = "OTPAuth"
	op1ColFavorite = "Favorite"
	op1ColTags     = "Tags"
	op1ColNotes    = "Notes"
)

func (p *OnePasswordParser) Source() Source { return Source1Password }

func (p *OnePasswordParser) Parse(data []byte, opts ParseOptions) (*ImportResult, error) {
	result := &ImportResult{Secrets: make([]*ImportedSecret, 0), Warnings: make([]string, 0), Skipped: make([]SkippedItem, 0)}

	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})

	reader := csv.NewReader(bytes.NewReader(data))
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[col] = i
	}
	if _, ok := colIndex[op1ColTitle]; !ok {
		return nil, fmt.Errorf("missing required column: %s", op1ColTitle)
	}

	counter := 1
	rowNum := 1
	for {
		rowNum++
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("row %d: failed to parse: %v", rowNum, err))
			continue
		}
		if len(row) != len(header) {
			result.Warnings = append(result.Warnings, fmt.Sprintf("row %d: column count mismatch (expected %d, got %d)", rowNum, len(header), len(row)))
			continue
		}

		secret, warning := p.parseRow(row, colIndex, &counter)
		if warning != "" {
			result.Warnings = append(result.Warnings, fmt.Sprintf("row %d: %s", rowNum, warning))
		}
		if secret != nil {
			result.Secrets = append(result.Secrets, secret)
		}
	}

	return result, nil
}

func (p *OnePasswordParser) parseRow(row []string, colIndex map[string]int, counter *int) (*ImportedSecret, string) {
	getValue := func(col string) string {
		if idx, ok := colIndex[col]; ok && idx < len(row) {
			return strings.TrimSpace(row[idx])
		}
		return ""
	}

	title := getValue(op1ColTitle)
	website := getValue(op1ColWebsite)
	username := getValue(op1ColUsername)
	password := getValue(op1ColPassword)
	otpAuth := getValue(op1ColOTPAuth)
	tagsStr := getValue(op1ColTags)
	notesField := getValue(op1ColNotes)
	favorite := strings.EqualFold(getValue(op1ColFavorite), "true") || getValue(op1ColFavorite) == "1"

	secret := password
	otpUsedAsSecret, notesUsedAsSecret := false, false
	if secret == "" {
		secret = otpAuth
		otpUsedAsSecret = true
	}
	if secret == "" {
		secret = notesField
		notesUsedAsSecret = true
	}
	if secret == "" {
		return nil, "skipped: no useful data"
	}

	serviceName := NormalizeValue(title)
	if serviceName == "" {
		serviceName = GenerateFallbackName(website, *counter)
		*counter++
	}

	notesFields := [][2]string{{"username", username}}
	if !otpUsedAsSecret {
		notesFields = append(notesFields, [2]string{"totp", otpAuth})
	}
	if !notesUsedAsSecret {
		notesFields = append(notesFields, [2]string{"notes", notesField})
	}
	notes := foldExtraFields(notesFields)

	var tags []string
	if tagsStr != "" {
		for _, t := range strings.Split(tagsStr, ",") {
			if t = strings.TrimSpace(t); t != "" {
				tags = append(tags, t)
			}
		}
	}

	var domains []string
	if website != "" {
		domains = append(domains, extractHostname(website))
	}

	return &ImportedSecret{
		ServiceName: serviceName, Plaintext: secret,
		Tags: tags, Domains: domains, Notes: notes, Favorite: favorite,
	}, ""
}
