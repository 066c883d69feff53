package policy

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/spf13/afero"
)

// DefaultPoliciesDir is the default directory for policy files relative to .planwing.
const DefaultPoliciesDir = "policies"

// PolicyFile is one parsed .rego file from the policies directory.
type PolicyFile struct {
	Path    string `json:"path"`
	Name    string `json:"name"` // base name without .rego
	Package string `json:"package,omitempty"`
	Test    bool   `json:"test,omitempty"` // *_test.rego, run by TestRunner only
	Content string `json:"-"`

	module *ast.Module
}

// Loader reads .rego files below a directory through an afero.Fs.
type Loader struct {
	fs      afero.Fs
	baseDir string
}

// NewLoader creates a loader for baseDir.
func NewLoader(fs afero.Fs, baseDir string) *Loader {
	return &Loader{fs: fs, baseDir: baseDir}
}

// Scan parses every .rego file below the base directory, tests included,
// sorted by path. A missing directory yields no files. A file that does not
// parse fails the whole scan so a broken policy can never be skipped
// silently.
func (l *Loader) Scan() ([]*PolicyFile, error) {
	exists, err := afero.DirExists(l.fs, l.baseDir)
	if err != nil {
		return nil, fmt.Errorf("check policies directory: %w", err)
	}
	if !exists {
		return nil, nil
	}

	var paths []string
	err = afero.Walk(l.fs, l.baseDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && strings.HasSuffix(info.Name(), ".rego") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk policies directory: %w", err)
	}
	sort.Strings(paths)

	files := make([]*PolicyFile, 0, len(paths))
	for _, path := range paths {
		f, err := l.parse(path)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}

// LoadAll returns the policies the engine evaluates: every scanned file
// except Rego unit tests.
func (l *Loader) LoadAll() ([]*PolicyFile, error) {
	files, err := l.Scan()
	if err != nil {
		return nil, err
	}
	policies := make([]*PolicyFile, 0, len(files))
	for _, f := range files {
		if f.Test {
			continue
		}
		if !strings.HasPrefix(f.Package, "planwing") {
			slog.Warn("policy package is never queried by the role gate", "file", f.Path, "package", f.Package)
		}
		policies = append(policies, f)
	}
	return policies, nil
}

func (l *Loader) parse(path string) (*PolicyFile, error) {
	content, err := afero.ReadFile(l.fs, path)
	if err != nil {
		return nil, fmt.Errorf("read policy %s: %w", path, err)
	}
	module, err := ast.ParseModule(path, string(content))
	if err != nil {
		return nil, fmt.Errorf("parse policy %s: %w", path, err)
	}
	name := strings.TrimSuffix(filepath.Base(path), ".rego")
	return &PolicyFile{
		Path:    path,
		Name:    name,
		Package: strings.TrimPrefix(module.Package.Path.String(), "data."),
		Test:    strings.HasSuffix(name, "_test"),
		Content: string(content),
		module:  module,
	}, nil
}

// GetPoliciesPath returns the policies directory inside a config directory.
func GetPoliciesPath(configDir string) string {
	return filepath.Join(configDir, DefaultPoliciesDir)
}
