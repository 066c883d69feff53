package config

import (
	"os"
	"path/filepath"

	"github.com/josephgoksu/PlanWing/internal/policy"
)

// GetGlobalConfigDir returns the path to the global configuration directory (~/.planwing).
// It's a variable to allow overriding in tests.
var GetGlobalConfigDir = func() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".planwing"), nil
}

// MemoryBasePath returns the directory of the local store.
// Resolution order (first match wins):
// 1. memory.path from config/env/flag
// 2. Local project directory: .planwing/memory (if exists)
// 3. XDG_DATA_HOME/planwing/memory (if XDG_DATA_HOME is set)
// 4. Global fallback: ~/.planwing/memory
func (c *Config) MemoryBasePath() string {
	if c.Memory.Path != "" {
		return c.Memory.Path
	}

	local := filepath.Join(ProjectDir, "memory")
	if info, err := os.Stat(local); err == nil && info.IsDir() {
		return local
	}

	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "planwing", "memory")
	}

	dir, err := GetGlobalConfigDir()
	if err != nil {
		return filepath.Join(ProjectDir, "memory")
	}
	return filepath.Join(dir, "memory")
}

// PoliciesDir returns the directory holding *.rego role policies.
func (c *Config) PoliciesDir() string {
	if c.Policy.Dir != "" {
		return c.Policy.Dir
	}
	if info, err := os.Stat(ProjectDir); err == nil && info.IsDir() {
		return policy.GetPoliciesPath(ProjectDir)
	}
	dir, err := GetGlobalConfigDir()
	if err != nil {
		return policy.GetPoliciesPath(ProjectDir)
	}
	return policy.GetPoliciesPath(dir)
}
