package authz

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/cel-go/cel"
)

// HookTimeout bounds a single pre/post-authorize hook evaluation, per
// spec §4.1. A hook that does not return within this window is treated
// as a failure and the engine fails closed.
const HookTimeout = 250 * time.Millisecond

// HookStage distinguishes where in the authorize pipeline a hook runs.
type HookStage string

const (
	StagePreAuthorize  HookStage = "pre_authorize"
	StagePostAuthorize HookStage = "post_authorize"
)

// Hook is a named CEL expression evaluated against the authorize input.
// A hook must evaluate to a bool; false blocks the authorization.
type Hook struct {
	Name  string
	Stage HookStage
	Expr  string
}

// HookEvaluator compiles and caches CEL programs for the configured hook
// set, mirroring the teacher's CELPolicyEvaluator compile-and-cache
// pattern (pkg/governance/policy_evaluator_cel.go).
type HookEvaluator struct {
	env      *cel.Env
	mu       sync.RWMutex
	prgCache map[string]cel.Program
	hooks    map[HookStage][]Hook
}

// NewHookEvaluator builds an evaluator whose CEL environment exposes the
// authorize pipeline's input variables: intent, profile, context.
func NewHookEvaluator(hooks []Hook) (*HookEvaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("intent", cel.DynType),
		cel.Variable("profile", cel.DynType),
		cel.Variable("context", cel.DynType),
	)
	if err != nil {
		return nil, fmt.Errorf("authz: failed to build CEL environment: %w", err)
	}
	byStage := make(map[HookStage][]Hook)
	for _, h := range hooks {
		byStage[h.Stage] = append(byStage[h.Stage], h)
	}
	return &HookEvaluator{env: env, prgCache: make(map[string]cel.Program), hooks: byStage}, nil
}

// HookResult is the per-hook outcome surfaced in Decision.Reasoning.
type HookResult struct {
	Name    string
	Passed  bool
	Err     error
	Timeout bool
}

// Run evaluates every hook registered for a stage against the given
// input, short-circuiting on the first failure (fail-closed) but always
// returning the full set of results evaluated so far for audit.
func (h *HookEvaluator) Run(ctx context.Context, stage HookStage, input map[string]any) ([]HookResult, bool) {
	hooks := h.hooks[stage]
	results := make([]HookResult, 0, len(hooks))
	for _, hook := range hooks {
		res := h.runOne(ctx, hook, input)
		results = append(results, res)
		if !res.Passed {
			return results, false
		}
	}
	return results, true
}

func (h *HookEvaluator) runOne(ctx context.Context, hook Hook, input map[string]any) HookResult {
	hookCtx, cancel := context.WithTimeout(ctx, HookTimeout)
	defer cancel()

	type outcome struct {
		passed bool
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		prg, err := h.program(hook.Expr)
		if err != nil {
			done <- outcome{false, err}
			return
		}
		out, _, err := prg.Eval(input)
		if err != nil {
			done <- outcome{false, err}
			return
		}
		passed, ok := out.Value().(bool)
		if !ok {
			done <- outcome{false, fmt.Errorf("authz: hook %q did not return bool", hook.Name)}
			return
		}
		done <- outcome{passed, nil}
	}()

	select {
	case o := <-done:
		return HookResult{Name: hook.Name, Passed: o.passed, Err: o.err}
	case <-hookCtx.Done():
		return HookResult{Name: hook.Name, Passed: false, Timeout: true, Err: hookCtx.Err()}
	}
}

func (h *HookEvaluator) program(expr string) (cel.Program, error) {
	h.mu.RLock()
	prg, ok := h.prgCache[expr]
	h.mu.RUnlock()
	if ok {
		return prg, nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if prg, ok = h.prgCache[expr]; ok {
		return prg, nil
	}
	ast, issues := h.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("authz: compile hook expression: %w", issues.Err())
	}
	prg, err := h.env.Program(ast, cel.InterruptCheckFrequency(100), cel.CostLimit(10000))
	if err != nil {
		return nil, fmt.Errorf("authz: build hook program: %w", err)
	}
	h.prgCache[expr] = prg
	return prg, nil
}
