// Package mcp implements keyvault's MCP (Model Context Protocol) server:
// the thin host that lets an AI agent call into a vault without ever
// gaining command-execution or raw environment access. Every tool here
// wraps one pkg/vault.Vault method.
package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/keyvault/keyvault/internal/hostlog"
	"github.com/keyvault/keyvault/pkg/vault"
)

// Server is the MCP server for keyvault.
type Server struct {
	server    *mcp.Server
	vault     *vault.Vault
	vaultPath string
	policy    *Policy
}

// ServerOptions configures a Server.
type ServerOptions struct {
	// VaultPath is the path to the vault directory. Defaults to ~/.keyvault.
	VaultPath string

	// Password is the master password. If empty, read from KEYVAULT_PASSWORD.
	Password string
}

// NewServer creates a new MCP server instance, unlocking the vault it serves.
func NewServer(opts *ServerOptions) (*Server, error) {
	if opts == nil {
		opts = &ServerOptions{}
	}

	vaultPath := opts.VaultPath
	if vaultPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		vaultPath = filepath.Join(home, ".keyvault")
	}

	policy, err := LoadPolicy(vaultPath)
	if err != nil {
		if err != ErrPolicyNotFound {
			hostlog.Warnf("failed to load MCP policy, falling back to default: %v", err)
		}
		policy = DefaultPolicy()
	}

	v := vault.New(filepath.Join(vaultPath, "vault.json"))

	password := opts.Password
	if password == "" {
		password = os.Getenv("KEYVAULT_PASSWORD")
		os.Unsetenv("KEYVAULT_PASSWORD")
	}
	if password == "" {
		return nil, fmt.Errorf("no password provided: set KEYVAULT_PASSWORD environment variable")
	}

	if _, err := v.Unlock(password); err != nil {
		return nil, fmt.Errorf("failed to unlock vault: %w", err)
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "keyvault",
			Version: "0.1.0",
		},
		nil,
	)

	s := &Server{
		server:    mcpServer,
		vault:     v,
		vaultPath: vaultPath,
		policy:    policy,
	}

	s.registerTools()

	return s, nil
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "vault_status",
		Description: "Report whether the vault is initialized, unlocked, and how many entries it holds.",
	}, s.handleVaultStatus)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "vault_list",
		Description: "List entries with metadata (service name, environment, tags, domains, favorite). Never returns secret values.",
	}, s.handleVaultList)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "vault_search",
		Description: "Search entries by service name, tag, environment, or notes substring. Never returns secret values.",
	}, s.handleVaultSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "vault_get_masked",
		Description: "Get an entry's metadata plus a masked form of its secret (e.g. '****wxyz'), for confirming identity without exposing the value.",
	}, s.handleVaultGetMasked)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "vault_get_plaintext",
		Description: "Get an entry's decrypted secret. Denied for environments not cleared by the host's MCP access policy (production is always denied).",
	}, s.handleVaultGetPlaintext)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "vault_add",
		Description: "Add a new entry to the vault.",
	}, s.handleVaultAdd)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "vault_delete",
		Description: "Delete an entry from the vault.",
	}, s.handleVaultDelete)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "vault_generate_secret",
		Description: "Generate a random high-entropy secret of the given length, without storing it.",
	}, s.handleVaultGenerateSecret)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "vault_audit_tail",
		Description: "Return the most recent audit log records, newest first.",
	}, s.handleVaultAuditTail)
}

// Run starts the MCP server using stdio transport.
func (s *Server) Run(ctx context.Context) error {
	defer s.vault.Lock()

	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Close locks the vault and releases the server.
func (s *Server) Close() error {
	return s.vault.Lock()
}
