package main

import (
	"fmt"
	"os"

	"github.com/keyvault/keyvault/pkg/vault"
)

func main() {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(vault.ExitCode(err))
}
