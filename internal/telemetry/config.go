// Package telemetry sends anonymous, opt-in usage events for PlanWing.
package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ConfigFileName is the name of the consent state file.
const ConfigFileName = "telemetry.json"

// ConsentVersion bumps whenever the consent prompt lists new data. Answers
// given to an older prompt are asked again.
const ConsentVersion = 2

// Config is the stored consent state, kept at <config dir>/telemetry.json.
type Config struct {
	Enabled bool `json:"enabled"`

	// ConsentVersion is the prompt version that was answered, 0 if none.
	ConsentVersion int        `json:"consent_version"`
	AnsweredAt     *time.Time `json:"answered_at,omitempty"`

	// AnonymousID is the PostHog distinct id. It is random and is replaced
	// on every opt-out so that a later opt-in starts a new identity.
	AnonymousID string `json:"anonymous_id"`
}

var (
	stateDir   string
	stateDirMu sync.RWMutex
)

// SetConfigDir moves the consent file to dir. Empty resets to ~/.planwing.
func SetConfigDir(dir string) {
	stateDirMu.Lock()
	stateDir = dir
	stateDirMu.Unlock()
}

// GetConfigPath returns the full path to the consent file.
func GetConfigPath() (string, error) {
	stateDirMu.RLock()
	dir := stateDir
	stateDirMu.RUnlock()
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("locate home directory: %w", err)
		}
		dir = filepath.Join(home, ".planwing")
	}
	return filepath.Join(dir, ConfigFileName), nil
}

// Load reads the consent state. A missing file is an unanswered, disabled
// state with a fresh anonymous id.
func Load() (*Config, error) {
	path, err := GetConfigPath()
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("read telemetry state: %w", err)
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse telemetry state %s: %w", path, err)
		}
	}
	if cfg.AnonymousID == "" {
		cfg.AnonymousID = uuid.NewString()
	}
	return cfg, nil
}

// Save writes the state readable by the owner only.
func (c *Config) Save() error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("encode telemetry state: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

// Enable records an opt-in to the current prompt.
func (c *Config) Enable() {
	c.answer(true)
}

// Disable records an opt-out and drops the anonymous id.
func (c *Config) Disable() {
	if c.Enabled {
		c.AnonymousID = uuid.NewString()
	}
	c.answer(false)
}

func (c *Config) answer(enabled bool) {
	now := time.Now().UTC()
	c.Enabled = enabled
	c.ConsentVersion = ConsentVersion
	c.AnsweredAt = &now
}

// NeedsConsent reports whether the current prompt was never answered.
func (c *Config) NeedsConsent() bool {
	return c.ConsentVersion < ConsentVersion
}

// IsEnabled reports whether events may be sent. An opt-in to an older
// prompt does not count.
func (c *Config) IsEnabled() bool {
	return c.Enabled && !c.NeedsConsent()
}
