package mcp

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"

	"gopkg.in/yaml.v3"
)

// Policy gates which entries an AI-agent tool call may read plaintext for.
// spec.md §1 treats the AI-agent tool server as an external collaborator
// that "only invokes the vault API" — it carries no cryptographic
// authority of its own, so the one thing a host-side policy can usefully
// restrict is which entries, by environment, vault_get_plaintext is willing
// to decrypt for an agent. Production credentials are always denied; by
// default only development and testing entries are handed to an agent.
type Policy struct {
	Version             int      `yaml:"version"`
	DefaultAction       string   `yaml:"default_action"`
	DeniedEnvironments  []string `yaml:"denied_environments"`
	AllowedEnvironments []string `yaml:"allowed_environments"`
}

// PolicyFileName is the name of the policy file, read from the vault directory.
const PolicyFileName = "mcp-policy.yaml"

const (
	ActionAllow = "allow"
	ActionDeny  = "deny"
)

var (
	ErrPolicyNotFound       = errors.New("MCP policy file not found")
	ErrPolicyInsecure       = errors.New("MCP policy file has insecure permissions")
	ErrPolicySymlink        = errors.New("MCP policy file is a symlink")
	ErrPolicyNotOwnedByUser = errors.New("MCP policy file not owned by current user")
)

// defaultDeniedEnvironments is always denied regardless of what the policy
// file says — an agent never gets plaintext for production credentials,
// even when the policy file lists production as allowed.
func defaultDeniedEnvironments() []string {
	return []string{"production"}
}

// LoadPolicy loads the MCP access policy from the vault directory. A
// missing file is reported as ErrPolicyNotFound, not an error the caller
// must treat as fatal — callers fall back to DefaultPolicy().
func LoadPolicy(vaultPath string) (*Policy, error) {
	policyPath := filepath.Join(vaultPath, PolicyFileName)

	f, err := os.OpenFile(policyPath, os.O_RDONLY|syscall.O_NOFOLLOW, 0)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrPolicyNotFound
		}
		if os.IsPermission(err) || errors.Is(err, syscall.ELOOP) {
			return nil, ErrPolicySymlink
		}
		return nil, fmt.Errorf("failed to open policy file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat policy file: %w", err)
	}

	if perm := info.Mode().Perm(); perm != 0600 {
		return nil, fmt.Errorf("%w: %o (expected 0600)", ErrPolicyInsecure, perm)
	}
	if stat, ok := info.Sys().(*syscall.Stat_t); ok && stat.Uid != uint32(os.Getuid()) {
		return nil, ErrPolicyNotOwnedByUser
	}

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}

	var policy Policy
	if err := yaml.Unmarshal(content, &policy); err != nil {
		return nil, fmt.Errorf("failed to parse policy file: %w", err)
	}
	if policy.Version != 1 {
		return nil, fmt.Errorf("unsupported policy version: %d", policy.Version)
	}
	if policy.DefaultAction == "" {
		policy.DefaultAction = ActionDeny
	}
	return &policy, nil
}

// DefaultPolicy denies everything except the environments explicitly named
// safe for agent consumption, used when no mcp-policy.yaml exists.
func DefaultPolicy() *Policy {
	return &Policy{
		Version:             1,
		DefaultAction:       ActionDeny,
		AllowedEnvironments: []string{"development", "testing"},
	}
}

// IsEnvironmentAllowed reports whether vault_get_plaintext may return plaintext for
// an entry whose environment is env.
//   0. defaultDeniedEnvironments() always wins — hardcoded security floor.
//   1. DeniedEnvironments — explicit deny.
//   2. AllowedEnvironments — explicit allow.
//   3. DefaultAction.
func (p *Policy) IsEnvironmentAllowed(env string) (allowed bool, reason string) {
	for _, denied := range defaultDeniedEnvironments() {
		if denied == env {
			return false, fmt.Sprintf("environment '%s' is always denied to agents", env)
		}
	}
	for _, denied := range p.DeniedEnvironments {
		if denied == env {
			return false, fmt.Sprintf("environment '%s' matches denied_environments", env)
		}
	}
	for _, ok := range p.AllowedEnvironments {
		if ok == env {
			return true, ""
		}
	}
	if p.DefaultAction == ActionAllow {
		return true, ""
	}
	return false, fmt.Sprintf("environment '%s' not in allowed_environments", env)
}

func (p *Policy) ValidatePolicy() error {
	if p.Version != 1 {
		return fmt.Errorf("unsupported policy version: %d", p.Version)
	}
	if p.DefaultAction != ActionDeny && p.DefaultAction != ActionAllow {
		return fmt.Errorf("invalid default_action: %s (must be '%s' or '%s')", p.DefaultAction, ActionDeny, ActionAllow)
	}
	return nil
}
