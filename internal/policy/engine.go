package policy

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/spf13/afero"
)

// DefaultPolicyPackage is the Rego package queried for planner policies.
const DefaultPolicyPackage = "planwing.policy"

// Engine evaluates planner actions against the loaded Rego policies.
// The deny and warn queries are compiled once, on first use, and reused for
// every request; AddPolicy drops the compiled queries.
type Engine struct {
	pkg string

	mu       sync.Mutex
	policies []*PolicyFile
	prepared *preparedRules
}

type preparedRules struct {
	deny rego.PreparedEvalQuery
	warn *rego.PreparedEvalQuery
}

// EngineConfig holds configuration for creating an Engine.
type EngineConfig struct {
	// PoliciesDir is the directory containing .rego policy files.
	PoliciesDir string

	// PolicyPackage defaults to DefaultPolicyPackage.
	PolicyPackage string

	// Fs defaults to the OS filesystem.
	Fs afero.Fs
}

// NewEngine loads policies from the configured directory. A missing
// directory yields an engine that allows every action.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Fs == nil {
		cfg.Fs = afero.NewOsFs()
	}
	var policies []*PolicyFile
	if cfg.PoliciesDir != "" {
		loaded, err := NewLoader(cfg.Fs, cfg.PoliciesDir).LoadAll()
		if err != nil {
			return nil, fmt.Errorf("load policies: %w", err)
		}
		policies = loaded
	}
	e := NewEngineWithPolicies(policies...)
	if cfg.PolicyPackage != "" {
		e.pkg = cfg.PolicyPackage
	}
	return e, nil
}

// NewEngineWithPolicies creates an engine over the given policies.
func NewEngineWithPolicies(policies ...*PolicyFile) *Engine {
	RegisterBuiltins()
	return &Engine{pkg: DefaultPolicyPackage, policies: policies}
}

// PolicyCount returns the number of loaded policies.
func (e *Engine) PolicyCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.policies)
}

// PolicyNames returns the names of all loaded policies.
func (e *Engine) PolicyNames() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	names := make([]string, len(e.policies))
	for i, p := range e.policies {
		names[i] = p.Name
	}
	return names
}

// AddPolicy adds a policy at runtime.
func (e *Engine) AddPolicy(name, content string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.policies = append(e.policies, &PolicyFile{Name: name, Path: name + ".rego", Content: content})
	e.prepared = nil
}

// Evaluate decides whether req may proceed.
//
// Strings produced by the package's deny set block the action; strings from
// the optional warn set are carried on the decision without blocking.
func (e *Engine) Evaluate(ctx context.Context, req Request) (*Decision, error) {
	req = req.normalized()
	decision := &Decision{
		DecisionID:  uuid.NewString(),
		PolicyPath:  e.pkg,
		Action:      req.Action,
		Result:      ResultAllow,
		Input:       req,
		ProjectID:   req.ProjectID,
		SprintID:    req.SprintID,
		WeekID:      req.WeekID,
		EvaluatedAt: time.Now().UTC(),
	}

	rules, err := e.rules(ctx)
	if err != nil {
		return nil, err
	}
	if rules == nil {
		return decision, nil
	}

	violations, err := evalSet(ctx, rules.deny, req)
	if err != nil {
		return nil, fmt.Errorf("query deny rules: %w", err)
	}
	if rules.warn != nil {
		// A broken warn rule never blocks an action.
		decision.Warnings, _ = evalSet(ctx, *rules.warn, req)
	}
	if len(violations) > 0 {
		decision.Result = ResultDeny
		decision.Violations = violations
	}
	return decision, nil
}

// rules compiles the deny and warn queries once. It returns nil when no
// policy is loaded.
func (e *Engine) rules(ctx context.Context) (*preparedRules, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.policies) == 0 {
		return nil, nil
	}
	if e.prepared != nil {
		return e.prepared, nil
	}

	deny, err := e.prepare(ctx, "deny")
	if err != nil {
		return nil, fmt.Errorf("compile deny rules: %w", err)
	}
	rules := &preparedRules{deny: deny}
	if warn, err := e.prepare(ctx, "warn"); err == nil {
		rules.warn = &warn
	}
	e.prepared = rules
	return rules, nil
}

func (e *Engine) prepare(ctx context.Context, rule string) (rego.PreparedEvalQuery, error) {
	opts := []func(*rego.Rego){rego.Query(fmt.Sprintf("data.%s.%s", e.pkg, rule))}
	for _, p := range e.policies {
		opts = append(opts, rego.Module(p.Path, p.Content))
	}
	return rego.New(opts...).PrepareForEval(ctx)
}

// evalSet runs a set-generating rule and collects its string members.
// An undefined rule yields no members.
func evalSet(ctx context.Context, q rego.PreparedEvalQuery, req Request) ([]string, error) {
	rs, err := q.Eval(ctx, rego.EvalInput(req))
	if err != nil {
		if strings.Contains(err.Error(), "undefined") {
			return nil, nil
		}
		return nil, err
	}
	var out []string
	for _, result := range rs {
		for _, expr := range result.Expressions {
			set, ok := expr.Value.([]any)
			if !ok {
				continue
			}
			for _, item := range set {
				if s, ok := item.(string); ok {
					out = append(out, s)
				}
			}
		}
	}
	return out, nil
}

// ValidatePolicy checks that content compiles.
func ValidatePolicy(content string) error {
	RegisterBuiltins()
	_, err := rego.New(
		rego.Query("data"),
		rego.Module("validation.rego", content),
	).PrepareForEval(context.Background())
	if err != nil {
		return fmt.Errorf("invalid policy: %w", err)
	}
	return nil
}
