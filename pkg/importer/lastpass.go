package importer

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// LastPassParser parses LastPass CSV exports:
// url,username,password,totp,extra,name,grouping,fav
type LastPassParser struct{}

const (
	lpColURL      = "url"
	lpColUsername = "username"
	lpColPassword = "password"
	lpColTOTP     = "totp"
	lpColExtra    = "extra"
	lpColName     = "name"
	lpColGrouping = "grouping"
)

func (p *LastPassParser) Source() Source { return SourceLastPass }

func (p *LastPassParser) Parse(data []byte, opts ParseOptions) (*ImportResult, error) {
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
		colIndex[strings.ToLower(col)] = i
	}
	if _, ok := colIndex[lpColName]; !ok {
		return nil, fmt.Errorf("missing required column: %s", lpColName)
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

func (p *LastPassParser) parseRow(row []string, colIndex map[string]int, counter *int) (*ImportedSecret, string) {
	getValue := func(col string) string {
		if idx, ok := colIndex[col]; ok && idx < len(row) {
			return DecodeHTMLEntities(strings.TrimSpace(row[idx]))
		}
		return ""
	}

	name := getValue(lpColName)
	url := getValue(lpColURL)
	username := getValue(lpColUsername)
	password := getValue(lpColPassword)
	totp := getValue(lpColTOTP)
	extra := getValue(lpColExtra)
	grouping := getValue(lpColGrouping)

	if url == "http://sn" { // LastPass uses this placeholder for Secure Notes
		url = ""
	}

	secret := password
	extraUsedAsSecret := false
	if secret == "" {
		secret = totp
	}
	if secret == "" {
		secret = extra
		extraUsedAsSecret = true
	}
	if secret == "" {
		return nil, "skipped: no useful data"
	}

	serviceName := NormalizeValue(name)
	if serviceName == "" {
		serviceName = GenerateFallbackName(url, *counter)
		*counter++
	}

	notesFields := [][2]string{{"username", username}, {"totp", totp}}
	if !extraUsedAsSecret {
		notesFields = append(notesFields, [2]string{"extra", extra})
	}
	notes := foldExtraFields(notesFields)

	var tags []string
	if grouping != "" {
		tags = append(tags, grouping)
	}
	var domains []string
	if url != "" {
		domains = append(domains, extractHostname(url))
	}

	return &ImportedSecret{ServiceName: serviceName, Plaintext: secret, Tags: tags, Domains: domains, Notes: notes}, ""
}
