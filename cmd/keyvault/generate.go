package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/keyvault/keyvault/pkg/vault"
)

const (
	defaultGenerateLength = 20
	defaultGenerateCount  = 1
	maxGenerateCount      = 100
)

var (
	generateLength int
	generateCount  int
)

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().IntVarP(&generateLength, "length", "l", defaultGenerateLength, "secret length")
	generateCmd.Flags().IntVarP(&generateCount, "count", "n", defaultGenerateCount, "number of secrets to generate")
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generates cryptographically secure random secrets",
	Long: `Generates secrets drawn uniformly from the vault's fixed 64-character
alphabet via rejection sampling, without storing them.

Examples:
  keyvault generate
  keyvault generate -l 32
  keyvault generate -n 5`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if generateCount < 1 || generateCount > maxGenerateCount {
			return fmt.Errorf("count must be between 1 and %d", maxGenerateCount)
		}
		for i := 0; i < generateCount; i++ {
			secret, err := vault.GenerateSecret(generateLength)
			if err != nil {
				return fmt.Errorf("failed to generate secret: %w", err)
			}
			fmt.Println(secret)
		}
		return nil
	},
}
