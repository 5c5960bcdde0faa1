package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/keyvault/keyvault/pkg/vault"
)

// This host exposes the vault as a set of narrow, typed tools. An AI agent
// talking MCP never gets a shell: every tool here is a thin wrapper over
// the public pkg/vault.Vault API, the same API the CLI calls. There is no
// command-execution tool — an agent that
// wants to run something with a secret in its environment does that on
// its own side, outside this process.

type VaultStatusInput struct{}

type VaultStatusOutput struct {
	Initialized bool `json:"initialized"`
	Unlocked    bool `json:"unlocked"`
	EntryCount  int  `json:"entry_count"`
}

func (s *Server) handleVaultStatus(ctx context.Context, req *mcp.CallToolRequest, in VaultStatusInput) (*mcp.CallToolResult, VaultStatusOutput, error) {
	st, err := s.vault.Status()
	if err != nil {
		return nil, VaultStatusOutput{}, err
	}
	return nil, VaultStatusOutput{Initialized: st.Initialized, Unlocked: st.Unlocked, EntryCount: st.EntryCount}, nil
}

type VaultListInput struct {
	Environment  string `json:"environment,omitempty" jsonschema:"filter by environment (production, development, staging, testing)"`
	Tag          string `json:"tag,omitempty"`
	Domain       string `json:"domain,omitempty"`
	FavoriteOnly bool   `json:"favorite_only,omitempty"`
}

type EntrySummary struct {
	ID          string   `json:"id"`
	ServiceName string   `json:"service_name"`
	Environment string   `json:"environment"`
	Tags        []string `json:"tags"`
	Domains     []string `json:"domains"`
	Favorite    bool     `json:"favorite"`
}

type VaultListOutput struct {
	Entries []EntrySummary `json:"entries"`
}

func toSummary(v vault.EntryView) EntrySummary {
	return EntrySummary{
		ID:          v.ID,
		ServiceName: v.ServiceName,
		Environment: v.Environment,
		Tags:        v.Tags,
		Domains:     v.Domains,
		Favorite:    v.Favorite,
	}
}

func (s *Server) handleVaultList(ctx context.Context, req *mcp.CallToolRequest, in VaultListInput) (*mcp.CallToolResult, VaultListOutput, error) {
	filter := vault.ListFilter{
		Environment: in.Environment,
		Tag:         in.Tag,
		Domain:      in.Domain,
	}
	if in.FavoriteOnly {
		filter.Favorite = true
		filter.FavoriteSet = true
	}
	views, err := s.vault.List(filter)
	if err != nil {
		return nil, VaultListOutput{}, err
	}
	out := VaultListOutput{Entries: make([]EntrySummary, 0, len(views))}
	for _, v := range views {
		out.Entries = append(out.Entries, toSummary(v))
	}
	return nil, out, nil
}

type VaultSearchInput struct {
	Query string `json:"query"`
}

type VaultSearchOutput struct {
	Entries []EntrySummary `json:"entries"`
}

func (s *Server) handleVaultSearch(ctx context.Context, req *mcp.CallToolRequest, in VaultSearchInput) (*mcp.CallToolResult, VaultSearchOutput, error) {
	if strings.TrimSpace(in.Query) == "" {
		return nil, VaultSearchOutput{}, fmt.Errorf("query must not be empty")
	}
	views, err := s.vault.Search(in.Query)
	if err != nil {
		return nil, VaultSearchOutput{}, err
	}
	out := VaultSearchOutput{Entries: make([]EntrySummary, 0, len(views))}
	for _, v := range views {
		out.Entries = append(out.Entries, toSummary(v))
	}
	return nil, out, nil
}

type VaultGetMaskedInput struct {
	ID string `json:"id"`
}

type VaultGetMaskedOutput struct {
	EntrySummary
	MaskedSecret string `json:"masked_secret"`
}

func (s *Server) handleVaultGetMasked(ctx context.Context, req *mcp.CallToolRequest, in VaultGetMaskedInput) (*mcp.CallToolResult, VaultGetMaskedOutput, error) {
	entry, err := s.vault.Get(in.ID)
	if err != nil {
		return nil, VaultGetMaskedOutput{}, err
	}
	return nil, VaultGetMaskedOutput{
		EntrySummary: toSummary(entry.EntryView),
		MaskedSecret: maskValue(entry.Plaintext),
	}, nil
}

type VaultGetPlaintextInput struct {
	ID string `json:"id"`
}

type VaultGetPlaintextOutput struct {
	EntrySummary
	Plaintext string `json:"plaintext"`
}

// handleVaultGetPlaintext is the one tool that can hand an agent a live
// secret. It is gated by s.policy: the entry's Environment must clear
// IsEnvironmentAllowed before the plaintext leaves this process.
func (s *Server) handleVaultGetPlaintext(ctx context.Context, req *mcp.CallToolRequest, in VaultGetPlaintextInput) (*mcp.CallToolResult, VaultGetPlaintextOutput, error) {
	entry, err := s.vault.Get(in.ID)
	if err != nil {
		return nil, VaultGetPlaintextOutput{}, err
	}
	if allowed, reason := s.policy.IsEnvironmentAllowed(entry.Environment); !allowed {
		return nil, VaultGetPlaintextOutput{}, fmt.Errorf("denied by policy: %s", reason)
	}
	if err := s.vault.RecordUsage(in.ID, ""); err != nil {
		return nil, VaultGetPlaintextOutput{}, err
	}
	return nil, VaultGetPlaintextOutput{
		EntrySummary: toSummary(entry.EntryView),
		Plaintext:    entry.Plaintext,
	}, nil
}

type VaultAddInput struct {
	ServiceName string   `json:"service_name"`
	Plaintext   string   `json:"plaintext"`
	Environment string   `json:"environment,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Domains     []string `json:"domains,omitempty"`
	Notes       string   `json:"notes,omitempty"`
	Favorite    bool     `json:"favorite,omitempty"`
}

type VaultAddOutput struct {
	ID string `json:"id"`
}

func (s *Server) handleVaultAdd(ctx context.Context, req *mcp.CallToolRequest, in VaultAddInput) (*mcp.CallToolResult, VaultAddOutput, error) {
	id, err := s.vault.Add(vault.NewRecord{
		ServiceName: in.ServiceName,
		Plaintext:   in.Plaintext,
		Environment: in.Environment,
		Tags:        in.Tags,
		Domains:     in.Domains,
		Notes:       in.Notes,
		Favorite:    in.Favorite,
	})
	if err != nil {
		return nil, VaultAddOutput{}, err
	}
	return nil, VaultAddOutput{ID: id}, nil
}

type VaultDeleteInput struct {
	ID string `json:"id"`
}

type VaultDeleteOutput struct {
	Deleted bool `json:"deleted"`
}

func (s *Server) handleVaultDelete(ctx context.Context, req *mcp.CallToolRequest, in VaultDeleteInput) (*mcp.CallToolResult, VaultDeleteOutput, error) {
	if err := s.vault.Delete(in.ID); err != nil {
		return nil, VaultDeleteOutput{}, err
	}
	return nil, VaultDeleteOutput{Deleted: true}, nil
}

type VaultGenerateSecretInput struct {
	Length int `json:"length,omitempty" jsonschema:"default 20"`
}

type VaultGenerateSecretOutput struct {
	Secret string `json:"secret"`
}

func (s *Server) handleVaultGenerateSecret(ctx context.Context, req *mcp.CallToolRequest, in VaultGenerateSecretInput) (*mcp.CallToolResult, VaultGenerateSecretOutput, error) {
	length := in.Length
	if length == 0 {
		length = 20
	}
	secret, err := s.vault.GenerateSecret(length)
	if err != nil {
		return nil, VaultGenerateSecretOutput{}, err
	}
	return nil, VaultGenerateSecretOutput{Secret: secret}, nil
}

type VaultAuditTailInput struct {
	N int `json:"n,omitempty" jsonschema:"default 20"`
}

type VaultAuditTailOutput struct {
	Records []vault.AuditRecord `json:"records"`
}

func (s *Server) handleVaultAuditTail(ctx context.Context, req *mcp.CallToolRequest, in VaultAuditTailInput) (*mcp.CallToolResult, VaultAuditTailOutput, error) {
	n := in.N
	if n == 0 {
		n = 20
	}
	records, err := s.vault.AuditTail(n)
	if err != nil {
		return nil, VaultAuditTailOutput{}, err
	}
	return nil, VaultAuditTailOutput{Records: records}, nil
}

// maskValue redacts a secret for display to anything that hasn't cleared
// the environment-access policy: short secrets disappear entirely, longer
// ones keep a short suffix so a human can recognize "yes, that one" without
// the value itself ever crossing the wire.
func maskValue(v string) string {
	switch {
	case len(v) <= 4:
		return strings.Repeat("*", len(v))
	case len(v) <= 8:
		return strings.Repeat("*", len(v)-2) + v[len(v)-2:]
	default:
		return strings.Repeat("*", len(v)-4) + v[len(v)-4:]
	}
}
