package mcp

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadPolicy_NotFound(t *testing.T) {
	tmpDir := t.TempDir()

	_, err := LoadPolicy(tmpDir)
	if err != ErrPolicyNotFound {
		t.Errorf("expected ErrPolicyNotFound, got %v", err)
	}
}

func TestLoadPolicy_Success(t *testing.T) {
	tmpDir := t.TempDir()
	policyPath := filepath.Join(tmpDir, PolicyFileName)

	content := `version: 1
default_action: deny
allowed_environments:
  - development
  - testing
denied_environments:
  - staging
`
	if err := os.WriteFile(policyPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write policy file: %v", err)
	}

	policy, err := LoadPolicy(tmpDir)
	if err != nil {
		t.Fatalf("LoadPolicy failed: %v", err)
	}

	if policy.Version != 1 {
		t.Errorf("expected version 1, got %d", policy.Version)
	}
	if policy.DefaultAction != ActionDeny {
		t.Errorf("expected default_action 'deny', got '%s'", policy.DefaultAction)
	}
	if len(policy.AllowedEnvironments) != 2 {
		t.Errorf("expected 2 allowed environments, got %d", len(policy.AllowedEnvironments))
	}
	if len(policy.DeniedEnvironments) != 1 {
		t.Errorf("expected 1 denied environment, got %d", len(policy.DeniedEnvironments))
	}
}

func TestLoadPolicy_InsecurePermissions(t *testing.T) {
	tmpDir := t.TempDir()
	policyPath := filepath.Join(tmpDir, PolicyFileName)

	content := "version: 1\ndefault_action: deny\n"
	if err := os.WriteFile(policyPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write policy file: %v", err)
	}

	_, err := LoadPolicy(tmpDir)
	if err == nil {
		t.Fatal("expected an error for insecure permissions, got nil")
	}
}

func TestLoadPolicy_UnsupportedVersion(t *testing.T) {
	tmpDir := t.TempDir()
	policyPath := filepath.Join(tmpDir, PolicyFileName)

	content := "version: 2\ndefault_action: deny\n"
	if err := os.WriteFile(policyPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write policy file: %v", err)
	}

	if _, err := LoadPolicy(tmpDir); err == nil {
		t.Fatal("expected an error for unsupported version, got nil")
	}
}

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	if allowed, _ := p.IsEnvironmentAllowed("production"); allowed {
		t.Error("DefaultPolicy() allows production, want always denied")
	}
	if allowed, _ := p.IsEnvironmentAllowed("development"); !allowed {
		t.Error("DefaultPolicy() denies development, want allowed")
	}
	if allowed, _ := p.IsEnvironmentAllowed("staging"); allowed {
		t.Error("DefaultPolicy() allows staging, want denied (not in allow list, default deny)")
	}
}

func TestIsEnvironmentAllowed_ProductionAlwaysDenied(t *testing.T) {
	p := &Policy{Version: 1, DefaultAction: ActionAllow, AllowedEnvironments: []string{"production"}}
	if allowed, _ := p.IsEnvironmentAllowed("production"); allowed {
		t.Error("production must always be denied, even when explicitly allow-listed")
	}
}

func TestIsEnvironmentAllowed_ExplicitDenyWinsOverDefaultAllow(t *testing.T) {
	p := &Policy{Version: 1, DefaultAction: ActionAllow, DeniedEnvironments: []string{"staging"}}
	if allowed, _ := p.IsEnvironmentAllowed("staging"); allowed {
		t.Error("staging is explicitly denied, want denied despite default_action: allow")
	}
	if allowed, _ := p.IsEnvironmentAllowed("testing"); !allowed {
		t.Error("testing is not denied, want allowed under default_action: allow")
	}
}

func TestValidatePolicy(t *testing.T) {
	if err := (&Policy{Version: 1, DefaultAction: ActionDeny}).ValidatePolicy(); err != nil {
		t.Errorf("ValidatePolicy() error = %v, want nil", err)
	}
	if err := (&Policy{Version: 1, DefaultAction: "maybe"}).ValidatePolicy(); err == nil {
		t.Error("ValidatePolicy() error = nil, want error for invalid default_action")
	}
	if err := (&Policy{Version: 2, DefaultAction: ActionDeny}).ValidatePolicy(); err == nil {
		t.Error("ValidatePolicy() error = nil, want error for unsupported version")
	}
}
