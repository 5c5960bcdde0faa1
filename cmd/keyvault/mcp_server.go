package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/keyvault/keyvault/internal/mcp"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(mcpServerCmd)
}

// mcpServerCmd starts the MCP server that lets an AI agent call into the
// vault without ever gaining command-execution or raw environment access.
var mcpServerCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server for AI-agent tool integration",
	Long: `Starts an MCP server over stdio exposing the vault as a set of narrow
tools (vault_status, vault_list, vault_search, vault_get_masked,
vault_get_plaintext, vault_add, vault_delete, vault_generate_secret,
vault_audit_tail). There is no command-execution tool.

Authentication:
  Set KEYVAULT_PASSWORD before starting the server. It is read once and
  immediately cleared from the environment.

Plaintext access policy:
  vault_get_plaintext is gated by ~/.keyvault/mcp-policy.yaml, which lists
  which entry environments an agent may see plaintext for. Without a
  policy file, only development and testing entries are allowed;
  production is always denied.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMCPServer()
	},
}

func runMCPServer() error {
	server, err := mcp.NewServer(nil)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		cancel()
		server.Close()
	}()

	if err := server.Run(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("MCP server error: %w", err)
	}

	return nil
}
