package mcp

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/keyvault/keyvault/pkg/vault"
)

// testServer builds a Server around a freshly initialized, unlocked vault,
// bypassing NewServer's environment-variable password plumbing.
func testServer(t *testing.T) *Server {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vault.json")
	v := vault.New(path)
	if err := v.Initialize("correct horse battery staple"); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if _, err := v.Unlock("correct horse battery staple"); err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}
	return &Server{vault: v, vaultPath: t.TempDir(), policy: DefaultPolicy()}
}

func TestHandleVaultStatus(t *testing.T) {
	s := testServer(t)
	_, out, err := s.handleVaultStatus(context.Background(), nil, VaultStatusInput{})
	if err != nil {
		t.Fatalf("handleVaultStatus() error = %v", err)
	}
	if !out.Initialized || !out.Unlocked {
		t.Errorf("handleVaultStatus() = %+v, want initialized+unlocked", out)
	}
}

func TestHandleVaultAddListGetDelete(t *testing.T) {
	s := testServer(t)
	ctx := context.Background()

	_, addOut, err := s.handleVaultAdd(ctx, nil, VaultAddInput{
		ServiceName: "GitHub", Plaintext: "ghp_abc123", Environment: vault.EnvProduction, Tags: []string{"dev"},
	})
	if err != nil {
		t.Fatalf("handleVaultAdd() error = %v", err)
	}
	if addOut.ID == "" {
		t.Fatal("handleVaultAdd() returned empty ID")
	}

	_, listOut, err := s.handleVaultList(ctx, nil, VaultListInput{})
	if err != nil {
		t.Fatalf("handleVaultList() error = %v", err)
	}
	if len(listOut.Entries) != 1 || listOut.Entries[0].ID != addOut.ID {
		t.Errorf("handleVaultList() = %+v, want one entry matching %s", listOut.Entries, addOut.ID)
	}

	_, maskedOut, err := s.handleVaultGetMasked(ctx, nil, VaultGetMaskedInput{ID: addOut.ID})
	if err != nil {
		t.Fatalf("handleVaultGetMasked() error = %v", err)
	}
	if maskedOut.MaskedSecret == "ghp_abc123" {
		t.Error("handleVaultGetMasked() returned the raw secret, want masked")
	}

	_, delOut, err := s.handleVaultDelete(ctx, nil, VaultDeleteInput{ID: addOut.ID})
	if err != nil {
		t.Fatalf("handleVaultDelete() error = %v", err)
	}
	if !delOut.Deleted {
		t.Error("handleVaultDelete() = false, want true")
	}
}

func TestHandleVaultGetPlaintext_DeniedForProduction(t *testing.T) {
	s := testServer(t)
	ctx := context.Background()

	_, addOut, err := s.handleVaultAdd(ctx, nil, VaultAddInput{
		ServiceName: "Prod DB", Plaintext: "s3cret", Environment: vault.EnvProduction,
	})
	if err != nil {
		t.Fatalf("handleVaultAdd() error = %v", err)
	}

	if _, _, err := s.handleVaultGetPlaintext(ctx, nil, VaultGetPlaintextInput{ID: addOut.ID}); err == nil {
		t.Error("handleVaultGetPlaintext() error = nil, want denial for production environment")
	}
}

func TestHandleVaultGetPlaintext_AllowedForDevelopment(t *testing.T) {
	s := testServer(t)
	ctx := context.Background()

	_, addOut, err := s.handleVaultAdd(ctx, nil, VaultAddInput{
		ServiceName: "Dev DB", Plaintext: "s3cret", Environment: vault.EnvDevelopment,
	})
	if err != nil {
		t.Fatalf("handleVaultAdd() error = %v", err)
	}

	_, out, err := s.handleVaultGetPlaintext(ctx, nil, VaultGetPlaintextInput{ID: addOut.ID})
	if err != nil {
		t.Fatalf("handleVaultGetPlaintext() error = %v", err)
	}
	if out.Plaintext != "s3cret" {
		t.Errorf("handleVaultGetPlaintext() = %q, want %q", out.Plaintext, "s3cret")
	}
}

func TestHandleVaultSearch_EmptyQueryRejected(t *testing.T) {
	s := testServer(t)
	if _, _, err := s.handleVaultSearch(context.Background(), nil, VaultSearchInput{Query: "  "}); err == nil {
		t.Error("handleVaultSearch() error = nil, want rejection of blank query")
	}
}

func TestHandleVaultGenerateSecret(t *testing.T) {
	s := testServer(t)
	_, out, err := s.handleVaultGenerateSecret(context.Background(), nil, VaultGenerateSecretInput{Length: 16})
	if err != nil {
		t.Fatalf("handleVaultGenerateSecret() error = %v", err)
	}
	if len(out.Secret) != 16 {
		t.Errorf("handleVaultGenerateSecret() len = %d, want 16", len(out.Secret))
	}
}

func TestHandleVaultAuditTail(t *testing.T) {
	s := testServer(t)
	ctx := context.Background()
	if _, _, err := s.handleVaultAdd(ctx, nil, VaultAddInput{ServiceName: "X", Plaintext: "y"}); err != nil {
		t.Fatalf("handleVaultAdd() error = %v", err)
	}
	_, out, err := s.handleVaultAuditTail(ctx, nil, VaultAuditTailInput{})
	if err != nil {
		t.Fatalf("handleVaultAuditTail() error = %v", err)
	}
	if len(out.Records) == 0 {
		t.Error("handleVaultAuditTail() returned no records after an add")
	}
}
