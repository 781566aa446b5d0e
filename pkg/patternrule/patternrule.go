// Package patternrule is an additive, operator-authored manipulative-
// pattern rule engine supplementing the two built-in transition
// heuristics (loop, forced-flow). Rules are CEL expressions evaluated
// only over observed transition history and drift-event fields — never
// over visual or bounds attributes — honoring the constraint against
// inferring intent from visual appearance alone.
package patternrule

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/greywatch/driftwatch/pkg/transition"
)

// Rule is a single named, compiled detection expression.
type Rule struct {
	Name        string
	Description string
	Expression  string
	program     cel.Program
}

// Engine holds the compiled CEL environment and registered rules. It is
// empty by default: rules are optional, and the two required heuristics
// in transition.Checker run regardless of anything registered here.
type Engine struct {
	mu    sync.RWMutex
	env   *cel.Env
	rules []*Rule
}

// NewEngine builds a CEL environment exposing "history" (a list of
// transition records projected to maps) and "flow" (the flattened screen
// sequence) as the only variables a rule may reference.
func NewEngine() (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Variable("history", cel.ListType(cel.MapType(cel.StringType, cel.DynType))),
		cel.Variable("flow", cel.ListType(cel.StringType)),
	)
	if err != nil {
		return nil, fmt.Errorf("patternrule: new env: %w", err)
	}
	return &Engine{env: env}, nil
}

// Register compiles expr and adds it to the engine under name. Compilation
// happens once, at registration time; Evaluate only runs the compiled
// program.
func (e *Engine) Register(name, description, expr string) error {
	ast, issues := e.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("patternrule: compile %q: %w", name, issues.Err())
	}
	prg, err := e.env.Program(ast)
	if err != nil {
		return fmt.Errorf("patternrule: program %q: %w", name, err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = append(e.rules, &Rule{Name: name, Description: description, Expression: expr, program: prg})
	return nil
}

// Match is a rule that evaluated true against the current history.
type Match struct {
	Rule        string
	Description string
}

// Evaluate runs every registered rule against the given history and
// flattened flow, returning every rule whose expression evaluates truthy.
// A rule whose expression errors at runtime is skipped, not fatal to the
// others.
func (e *Engine) Evaluate(history []transition.Record, flow []string) []Match {
	e.mu.RLock()
	rules := append([]*Rule(nil), e.rules...)
	e.mu.RUnlock()
	if len(rules) == 0 {
		return nil
	}

	historyVar := make([]map[string]any, len(history))
	for i, r := range history {
		historyVar[i] = map[string]any{"from": r.From, "to": r.To, "timestamp": r.Timestamp}
	}
	flowVar := make([]any, len(flow))
	for i, s := range flow {
		flowVar[i] = s
	}

	var matches []Match
	for _, r := range rules {
		out, _, err := r.program.Eval(map[string]any{"history": historyVar, "flow": flowVar})
		if err != nil {
			continue
		}
		if b, ok := out.Value().(bool); ok && b {
			matches = append(matches, Match{Rule: r.Name, Description: r.Description})
		}
	}
	return matches
}

// Rules returns a snapshot of the registered rule names and descriptions.
func (e *Engine) Rules() []Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Rule, len(e.rules))
	for i, r := range e.rules {
		out[i] = Rule{Name: r.Name, Description: r.Description, Expression: r.Expression}
	}
	return out
}
