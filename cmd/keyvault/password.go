package main

import (
	"errors"
	"fmt"
	"syscall"

	"github.com/keyvault/keyvault/pkg/crypto"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func init() {
	rootCmd.AddCommand(passwordCmd)
	passwordCmd.AddCommand(passwordChangeCmd)
}

// passwordCmd is the parent command for master-password operations.
var passwordCmd = &cobra.Command{
	Use:   "password",
	Short: "Master password operations",
}

// passwordChangeCmd re-encrypts every entry under a new master password.
var passwordChangeCmd = &cobra.Command{
	Use:   "change",
	Short: "Change the master password, re-encrypting every entry",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureUnlocked(); err != nil {
			return err
		}
		defer v.Lock()

		fmt.Print("Enter current password: ")
		currentPassword, err := term.ReadPassword(int(syscall.Stdin))
		defer crypto.SecureWipe(currentPassword)
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Println()

		fmt.Print("Enter new password: ")
		newPassword1, err := term.ReadPassword(int(syscall.Stdin))
		defer crypto.SecureWipe(newPassword1)
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Println()

		fmt.Print("Confirm new password: ")
		newPassword2, err := term.ReadPassword(int(syscall.Stdin))
		defer crypto.SecureWipe(newPassword2)
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Println()

		if string(newPassword1) != string(newPassword2) {
			return errors.New("new passwords do not match")
		}

		if err := v.ChangePassword(string(currentPassword), string(newPassword1)); err != nil {
			return fmt.Errorf("failed to change password: %w", err)
		}

		fmt.Println("Password changed successfully.")
		return nil
	},
}
