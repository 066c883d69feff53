package policy

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/tester"
	"github.com/open-policy-agent/opa/v1/topdown"
	"github.com/spf13/afero"
)

// Outcome is how a single Rego test ended.
type Outcome string

const (
	OutcomePass  Outcome = "pass"
	OutcomeFail  Outcome = "fail"
	OutcomeError Outcome = "error"
	OutcomeSkip  Outcome = "skip"
)

// testTimeout bounds the whole run.
const testTimeout = 30 * time.Second

// TestResult is one test_ rule, e.g. test_mentor_may_close_week in
// package planwing.policy_test.
type TestResult struct {
	Name     string        `json:"name"`
	Package  string        `json:"package"`
	File     string        `json:"file,omitempty"` // relative to the policies directory
	Outcome  Outcome       `json:"outcome"`
	Error    string        `json:"error,omitempty"`
	Notes    []string      `json:"notes,omitempty"` // trace(...) and print output
	Duration time.Duration `json:"duration"`
}

// TestSummary counts results by outcome.
type TestSummary struct {
	Counts   map[Outcome]int `json:"counts"`
	Total    int             `json:"total"`
	Duration time.Duration   `json:"duration"`
	Results  []*TestResult   `json:"results"`
}

// TestRunner runs the Rego unit tests kept next to the role policies.
type TestRunner struct {
	fs          afero.Fs
	policiesDir string
	filter      string
}

// NewTestRunner creates a runner for policiesDir.
func NewTestRunner(fs afero.Fs, policiesDir string) *TestRunner {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &TestRunner{fs: fs, policiesDir: policiesDir}
}

// Only restricts the run to tests whose full name matches the regular
// expression pattern.
func (r *TestRunner) Only(pattern string) *TestRunner {
	r.filter = pattern
	return r
}

// Run compiles every policy and test file together and runs the tests.
func (r *TestRunner) Run(ctx context.Context) (*TestSummary, error) {
	start := time.Now()
	summary := &TestSummary{Counts: map[Outcome]int{}, Results: []*TestResult{}}
	RegisterBuiltins()

	modules, err := r.modules()
	if err != nil {
		return nil, err
	}
	if len(modules) == 0 {
		summary.Duration = time.Since(start)
		return summary, nil
	}

	compiler := ast.NewCompiler()
	compiler.Compile(modules)
	if compiler.Failed() {
		return nil, fmt.Errorf("compile policies: %w", compiler.Errors)
	}

	ch, err := tester.NewRunner().
		SetCompiler(compiler).
		SetModules(modules).
		EnableTracing(true).
		SetTimeout(testTimeout).
		Filter(r.filter).
		RunTests(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("run policy tests: %w", err)
	}

	for raw := range ch {
		res := r.convertResult(raw)
		summary.Counts[res.Outcome]++
		summary.Results = append(summary.Results, res)
	}
	summary.Total = len(summary.Results)
	summary.Duration = time.Since(start)
	return summary, nil
}

func (r *TestRunner) convertResult(raw *tester.Result) *TestResult {
	res := &TestResult{
		Name:     raw.Name,
		Package:  strings.TrimPrefix(raw.Package, "data."),
		Duration: raw.Duration,
	}
	if raw.Location != nil {
		res.File = r.relative(raw.Location.File)
	}
	switch {
	case raw.Skip:
		res.Outcome = OutcomeSkip
	case raw.Error != nil:
		res.Outcome, res.Error = OutcomeError, raw.Error.Error()
	case raw.Fail:
		res.Outcome = OutcomeFail
	default:
		res.Outcome = OutcomePass
	}
	for _, evt := range raw.Trace {
		if evt.Op == topdown.NoteOp && evt.Message != "" {
			res.Notes = append(res.Notes, evt.Message)
		}
	}
	return res
}

// modules keys every parsed file by its path below the policies directory.
func (r *TestRunner) modules() (map[string]*ast.Module, error) {
	files, err := NewLoader(r.fs, r.policiesDir).Scan()
	if err != nil {
		return nil, err
	}
	out := make(map[string]*ast.Module, len(files))
	for _, f := range files {
		out[r.relative(f.Path)] = f.module
	}
	return out, nil
}

func (r *TestRunner) relative(path string) string {
	if rel, err := filepath.Rel(r.policiesDir, path); err == nil {
		return rel
	}
	return path
}

// AllPassed reports whether nothing failed or errored. Skips are fine.
func (s *TestSummary) AllPassed() bool {
	return s.Counts[OutcomeFail] == 0 && s.Counts[OutcomeError] == 0
}

// FormatSummary renders the closing line of 'planwing policy test'.
func (s *TestSummary) FormatSummary() string {
	if s.Total == 0 {
		return "No tests found.\n"
	}
	parts := []string{fmt.Sprintf("%d passed", s.Counts[OutcomePass])}
	for _, o := range []Outcome{OutcomeFail, OutcomeError, OutcomeSkip} {
		if n := s.Counts[o]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, pastTense(o)))
		}
	}
	return fmt.Sprintf("\n%d tests, %s in %s\n", s.Total, strings.Join(parts, ", "), s.Duration.Round(time.Millisecond))
}

func pastTense(o Outcome) string {
	switch o {
	case OutcomeFail:
		return "failed"
	case OutcomeError:
		return "errored"
	case OutcomeSkip:
		return "skipped"
	}
	return "passed"
}
