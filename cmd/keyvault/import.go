package main

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/keyvault/keyvault/pkg/importer"
	"github.com/keyvault/keyvault/pkg/vault"
)

var (
	importSource       string
	importConflictMode string
)

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().StringVar(&importSource, "source", "", "one of bitwarden, lastpass, 1password, or backup (if omitted, a .kvbackup file is treated as backup)")
	importCmd.Flags().StringVar(&importConflictMode, "conflict", string(vault.PolicySkipDuplicate), "for --source backup: skip_duplicate, overwrite, or rename")
}

var importCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Imports entries from a competitor export or a keyvault backup envelope",
	Long: `Imports entries into the vault.

Competitor exports (--source bitwarden|lastpass|1password) are parsed by
pkg/importer into normalized records, then added one at a time through the
ordinary add path — never through the cryptographic core directly.

A keyvault backup envelope (--source backup, produced by "keyvault export")
goes through Vault.Import instead, which re-encrypts every entry under this
vault's session key in one atomic commit.

Examples:
  keyvault import bitwarden_export.json --source bitwarden
  keyvault import lastpass_export.csv --source lastpass
  keyvault import vault.kvbackup --source backup`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		filePath := args[0]

		source := importSource
		if source == "" {
			source = detectImportSource(filePath)
		}

		if err := ensureUnlocked(); err != nil {
			return err
		}
		defer v.Lock()

		if source == "backup" {
			return importBackup(filePath)
		}
		return importCompetitorExport(filePath, importer.Source(source))
	},
}

func detectImportSource(filePath string) string {
	ext := filepath.Ext(filePath)
	if ext == ".kvbackup" {
		return "backup"
	}
	return ""
}

func importBackup(filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read backup file: %w", err)
	}

	fmt.Print("Enter backup password: ")
	password, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	fmt.Println()

	report, err := v.Import(data, string(password), vault.ImportPolicy(importConflictMode))
	if err != nil {
		return fmt.Errorf("failed to import backup: %w", err)
	}

	fmt.Printf("Imported: %d inserted, %d skipped, %d overwritten, %d renamed\n",
		report.Inserted, report.Skipped, report.Overwritten, report.Renamed)
	return nil
}

func importCompetitorExport(filePath string, source importer.Source) error {
	parser, err := importer.GetParser(source)
	if err != nil {
		return fmt.Errorf("unsupported import source %q: %w", source, err)
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read import file: %w", err)
	}

	result, err := parser.Parse(data, importer.ParseOptions{})
	if err != nil {
		return fmt.Errorf("failed to parse import file: %w", err)
	}

	var added, failed int
	for _, secret := range result.Secrets {
		if _, err := v.Add(secret.ToNewRecord()); err != nil {
			fmt.Fprintf(os.Stderr, "failed to add %q: %v\n", secret.ServiceName, err)
			failed++
			continue
		}
		added++
	}

	fmt.Printf("Imported: %d added, %d skipped, %d failed\n", added, len(result.Skipped), failed)
	for _, w := range result.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w)
	}
	return nil
}
