package policy

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
)

// RuleEvaluator evaluates CEL approval predicates so an account can express
// bespoke satisfaction conditions beyond plain thresholds, e.g.
//
//	total_weight >= threshold && approvals >= 2
//
// Programs are compiled once and cached. Evaluation is fail-closed: any
// compile or runtime error denies.
type RuleEvaluator struct {
	env   *cel.Env
	mu    sync.RWMutex
	cache map[string]cel.Program
}

// NewRuleEvaluator creates an evaluator with the standard approval
// environment.
func NewRuleEvaluator() (*RuleEvaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("total_weight", cel.UintType),
		cel.Variable("role_weight", cel.UintType),
		cel.Variable("threshold", cel.UintType),
		cel.Variable("role_threshold", cel.UintType),
		cel.Variable("approvals", cel.IntType),
		cel.Variable("role", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return &RuleEvaluator{env: env, cache: make(map[string]cel.Program)}, nil
}

// Satisfied evaluates rule against the current vote state. A false result or
// any error means not satisfied.
func (e *RuleEvaluator) Satisfied(rule string, cfg Config, approvals *Approvals) (bool, error) {
	prg, err := e.program(rule)
	if err != nil {
		return false, err
	}
	out, _, err := prg.Eval(map[string]any{
		"total_weight":   approvals.TotalWeight,
		"role_weight":    approvals.RoleWeight,
		"threshold":      cfg.GlobalThreshold,
		"role_threshold": cfg.RoleThreshold(approvals.Role),
		"approvals":      len(approvals.Approved),
		"role":           approvals.Role,
	})
	if err != nil {
		return false, fmt.Errorf("rule evaluation failed: %w", err)
	}
	allowed, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("rule %q did not evaluate to a boolean", rule)
	}
	return allowed, nil
}

func (e *RuleEvaluator) program(rule string) (cel.Program, error) {
	e.mu.RLock()
	prg, ok := e.cache[rule]
	e.mu.RUnlock()
	if ok {
		return prg, nil
	}

	ast, issues := e.env.Compile(rule)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule %q: %w", rule, issues.Err())
	}
	prg, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to build program for rule %q: %w", rule, err)
	}

	e.mu.Lock()
	e.cache[rule] = prg
	e.mu.Unlock()
	return prg, nil
}
