package importer

import (
	"encoding/json"
	"fmt"
)

// BitwardenParser parses Bitwarden JSON export files (item type codes 1-4).
type BitwardenParser struct{}

const (
	bitwardenTypeLogin      = 1
	bitwardenTypeSecureNote = 2
	bitwardenTypeCard       = 3
	bitwardenTypeIdentity   = 4
)

type bitwardenExport struct {
	Items   []bitwardenItem   `json:"items"`
	Folders []bitwardenFolder `json:"folders"`
}

type bitwardenFolder struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type bitwardenItem struct {
	Type          int                `json:"type"`
	Name          string             `json:"name"`
	Notes         string             `json:"notes"`
	FolderID      *string            `json:"folderId"`
	CollectionIDs []string           `json:"collectionIds"`
	Login         *bitwardenLogin    `json:"login"`
	Card          *bitwardenCard     `json:"card"`
	Identity      *bitwardenIdentity `json:"identity"`
}

type bitwardenLogin struct {
	URIs     []bitwardenURI `json:"uris"`
	Username string         `json:"username"`
	Password string         `json:"password"`
	TOTP     string         `json:"totp"`
}

type bitwardenURI struct {
	URI string `json:"uri"`
}

type bitwardenCard struct {
	CardholderName string `json:"cardholderName"`
	Number         string `json:"number"`
	ExpMonth       string `json:"expMonth"`
	ExpYear        string `json:"expYear"`
	Code           string `json:"code"`
	Brand          string `json:"brand"`
}

type bitwardenIdentity struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	SSN       string `json:"ssn"`
}

func (p *BitwardenParser) Source() Source { return SourceBitwarden }

func (p *BitwardenParser) Parse(data []byte, opts ParseOptions) (*ImportResult, error) {
	result := &ImportResult{Secrets: make([]*ImportedSecret, 0), Warnings: make([]string, 0), Skipped: make([]SkippedItem, 0)}

	var export bitwardenExport
	if err := json.Unmarshal(data, &export); err != nil {
		return nil, fmt.Errorf("failed to parse Bitwarden JSON: %w", err)
	}

	folderMap := make(map[string]string)
	for _, f := range export.Folders {
		folderMap[f.ID] = f.Name
	}

	counter := 1
	for i := range export.Items {
		item := &export.Items[i]
		secret, warning := p.parseItem(item, folderMap, &counter)
		if warning != "" {
			result.Warnings = append(result.Warnings, fmt.Sprintf("item %d (%s): %s", i+1, item.Name, warning))
		}
		if secret != nil {
			result.Secrets = append(result.Secrets, secret)
		} else if warning == "" {
			result.Skipped = append(result.Skipped, SkippedItem{OriginalName: item.Name, Reason: "no useful data"})
		}
	}

	return result, nil
}

func (p *BitwardenParser) parseItem(item *bitwardenItem, folderMap map[string]string, counter *int) (*ImportedSecret, string) {
	var secret, url string
	var notes string

	switch item.Type {
	case bitwardenTypeLogin:
		if item.Login == nil {
			return nil, ""
		}
		secret = item.Login.Password
		if secret == "" {
			secret = item.Login.TOTP
		}
		if len(item.Login.URIs) > 0 {
			url = item.Login.URIs[0].URI
		}
		notes = foldExtraFields([][2]string{
			{"username", item.Login.Username},
			{"totp", item.Login.TOTP},
			{"notes", item.Notes},
		})
	case bitwardenTypeSecureNote:
		secret = item.Notes
	case bitwardenTypeCard:
		if item.Card == nil {
			return nil, ""
		}
		secret = item.Card.Number
		notes = foldExtraFields([][2]string{
			{"cardholder", item.Card.CardholderName},
			{"exp", item.Card.ExpMonth + "/" + item.Card.ExpYear},
			{"cvv", item.Card.Code},
			{"brand", item.Card.Brand},
			{"notes", item.Notes},
		})
	case bitwardenTypeIdentity:
		if item.Identity == nil {
			return nil, ""
		}
		secret = item.Identity.SSN
		notes = foldExtraFields([][2]string{
			{"name", item.Identity.FirstName + " " + item.Identity.LastName},
			{"username", item.Identity.Username},
			{"email", item.Identity.Email},
			{"notes", item.Notes},
		})
	default:
		return nil, fmt.Sprintf("unsupported item type: %d", item.Type)
	}

	if secret == "" {
		return nil, ""
	}

	name := NormalizeValue(item.Name)
	if name == "" {
		name = GenerateFallbackName(url, *counter)
		*counter++
	}

	var tags []string
	if item.FolderID != nil {
		if folderName, ok := folderMap[*item.FolderID]; ok && folderName != "" {
			tags = append(tags, folderName)
		}
	}
	for _, collID := range item.CollectionIDs {
		if collName, ok := folderMap[collID]; ok && collName != "" {
			tags = append(tags, collName)
		}
	}

	var domains []string
	if url != "" {
		domains = append(domains, extractHostname(url))
	}

	return &ImportedSecret{ServiceName: name, Plaintext: secret, Tags: tags, Domains: domains, Notes: notes}, ""
}
