package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/josephgoksu/PlanWing/internal/policy"
)

// Starter is the content `planwing init` writes.
type Starter struct {
	BaseURL      string
	ProjectID    int64
	WeekStartDay int
	Telemetry    bool
	// WithPolicy also writes the sample role policy and its tests.
	WithPolicy bool
}

// fileLayout mirrors the YAML keys Load reads.
type fileLayout struct {
	Version   string          `yaml:"version"`
	API       APIConfig       `yaml:"api"`
	Project   ProjectConfig   `yaml:"project"`
	Planner   PlannerConfig   `yaml:"planner"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Log       LogConfig       `yaml:"log"`
}

// WriteResult lists the files written.
type WriteResult struct {
	ConfigFile  string
	PolicyFiles []string
}

// WriteStarter writes <dir>/.planwing.yaml and, optionally, the sample
// policy under <dir>/policies. Existing files are kept unless force is set.
func WriteStarter(fs afero.Fs, dir string, s Starter, force bool) (*WriteResult, error) {
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create config directory: %w", err)
	}

	weekStart := s.WeekStartDay
	if weekStart == 0 {
		weekStart = DefaultWeekStartDay
	}
	layout := fileLayout{
		Version: "1",
		API:     APIConfig{BaseURL: s.BaseURL, Timeout: DefaultTimeout},
		Project: ProjectConfig{ID: s.ProjectID},
		Planner: PlannerConfig{WeekStartDay: weekStart, PageSize: DefaultPageSize},
		Telemetry: TelemetryConfig{
			Enabled: s.Telemetry,
		},
		Log: LogConfig{Level: DefaultLogLevel, Format: DefaultLogFormat},
	}
	cfg := Config{API: layout.API, Project: layout.Project, Planner: layout.Planner, Log: layout.Log}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	data, err := yaml.Marshal(layout)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	data = append([]byte("# PlanWing configuration\n"), data...)

	res := &WriteResult{ConfigFile: filepath.Join(dir, ConfigName+".yaml")}
	if err := writeFile(fs, res.ConfigFile, data, 0600, force); err != nil {
		return nil, err
	}

	if s.WithPolicy {
		policiesDir := policy.GetPoliciesPath(dir)
		if err := fs.MkdirAll(policiesDir, 0755); err != nil {
			return nil, fmt.Errorf("create policies directory: %w", err)
		}
		files := map[string]string{
			policy.DefaultRolePolicyFile:     policy.DefaultRolePolicy,
			policy.DefaultRolePolicyTestFile: policy.DefaultRolePolicyTest,
		}
		for _, name := range []string{policy.DefaultRolePolicyFile, policy.DefaultRolePolicyTestFile} {
			path := filepath.Join(policiesDir, name)
			if err := writeFile(fs, path, []byte(files[name]), 0644, force); err != nil {
				return nil, err
			}
			res.PolicyFiles = append(res.PolicyFiles, path)
		}
	}
	return res, nil
}

// ErrExists is returned when a file exists and force is not set.
type ErrExists struct {
	Path string
}

func (e *ErrExists) Error() string {
	return fmt.Sprintf("%s already exists (use --force to overwrite)", e.Path)
}

func writeFile(fs afero.Fs, path string, data []byte, perm os.FileMode, force bool) error {
	if !force {
		exists, err := afero.Exists(fs, path)
		if err != nil {
			return fmt.Errorf("stat %s: %w", path, err)
		}
		if exists {
			return &ErrExists{Path: path}
		}
	}
	if err := afero.WriteFile(fs, path, data, perm); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
