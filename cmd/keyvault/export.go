package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	exportOutput string
	exportForce  bool
)

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file path (default: stdout)")
	exportCmd.Flags().BoolVar(&exportForce, "force", false, "overwrite an existing file without confirmation")
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Exports every entry into a single password-sealed backup envelope",
	Long: `Exports the vault's entire contents — every entry's decrypted secret,
plus settings — into one envelope sealed under a backup password you choose
here (independent of the vault's master password).

Examples:
  keyvault export -o vault.kvbackup
  keyvault export --force -o vault.kvbackup`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureUnlocked(); err != nil {
			return err
		}
		defer v.Lock()

		fmt.Print("Enter backup password: ")
		password1, err := term.ReadPassword(int(syscall.Stdin))
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Println()

		fmt.Print("Confirm backup password: ")
		password2, err := term.ReadPassword(int(syscall.Stdin))
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Println()

		if string(password1) != string(password2) {
			return fmt.Errorf("passwords do not match")
		}

		data, err := v.Export(string(password1))
		if err != nil {
			return fmt.Errorf("failed to export vault: %w", err)
		}

		if exportOutput == "" {
			fmt.Fprint(os.Stderr, "WARNING: this backup decrypts every entry with only the backup password. Store it securely.\n")
			os.Stdout.Write(data)
			return nil
		}

		if err := writeSecureFile(exportOutput, data, exportForce); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Exported vault to %s\n", exportOutput)
		return nil
	},
}

// writeSecureFile writes content to path with 0600 permissions, refusing
// to follow a symlink or silently overwrite an existing file unless force
// is set — the same TOCTOU-safe discipline the teacher's export command
// uses for writing decrypted material to disk.
func writeSecureFile(path string, content []byte, force bool) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}

	sensitivePaths := []string{"/etc/", "/usr/", "/bin/", "/sbin/", "/var/log/", "/var/run/", "/root/"}
	for _, sensitive := range sensitivePaths {
		if strings.HasPrefix(absPath, sensitive) {
			return fmt.Errorf("refusing to write to system directory: %s", absPath)
		}
	}

	if info, err := os.Lstat(absPath); err == nil {
		if info.Mode()&os.ModeSymlink != 0 {
			return fmt.Errorf("refusing to write to symlink: %s", absPath)
		}
		if !force {
			return fmt.Errorf("file already exists: %s (use --force to overwrite)", absPath)
		}
	}

	dir := filepath.Dir(absPath)
	if dir != "." && dir != "/" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !force {
		flags = os.O_WRONLY | os.O_CREATE | os.O_EXCL
	}

	f, err := os.OpenFile(absPath, flags, 0600)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("file already exists: %s (use --force to overwrite)", absPath)
		}
		return fmt.Errorf("failed to create file: %w", err)
	}

	_, writeErr := f.Write(content)
	closeErr := f.Close()
	if writeErr != nil {
		return fmt.Errorf("failed to write file: %w", writeErr)
	}
	return closeErr
}
