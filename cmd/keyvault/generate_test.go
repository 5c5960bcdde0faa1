package main

import (
	"testing"

	"github.com/keyvault/keyvault/pkg/vault"
)

func TestGenerateCommand(t *testing.T) {
	generateLength = 16
	generateCount = 3
	if generateCount < 1 || generateCount > maxGenerateCount {
		t.Fatalf("generateCount = %d is out of range", generateCount)
	}
	secret, err := vault.GenerateSecret(generateLength)
	if err != nil {
		t.Fatalf("GenerateSecret() error = %v", err)
	}
	if len(secret) != generateLength {
		t.Errorf("GenerateSecret() len = %d, want %d", len(secret), generateLength)
	}
}

func TestGenerateCommandRejectsOutOfRangeCount(t *testing.T) {
	cmd := generateCmd
	origCount := generateCount
	defer func() { generateCount = origCount }()

	generateCount = 0
	if err := cmd.RunE(cmd, nil); err == nil {
		t.Error("RunE() error = nil, want error for count < 1")
	}

	generateCount = maxGenerateCount + 1
	if err := cmd.RunE(cmd, nil); err == nil {
		t.Error("RunE() error = nil, want error for count > max")
	}
}
