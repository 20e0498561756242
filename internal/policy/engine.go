// Package policy decides which navigation items an auth state may open.
package policy

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/rego"

	"github.com/csbedford/picklematch/internal/domain"
)

// Decision is the outcome for one navigation item.
type Decision string

const (
	DecisionAllow  Decision = "allow"
	DecisionLocked Decision = "locked"
	DecisionHidden Decision = "hidden"
)

// Input is the document evaluated by the policy.
type Input struct {
	Item          string `json:"item"`
	Authenticated bool   `json:"authenticated"`
	Role          string `json:"role,omitempty"`
}

// Engine is the OPA policy engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine creates a new policy engine with the given policy content.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.nav_policy.decision"),
		rego.Module("nav_policy.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// Evaluate returns the decision for a single item. Items the policy says
// nothing about are locked.
func (e *Engine) Evaluate(ctx context.Context, input Input) (Decision, error) {
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return "", fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return DecisionLocked, nil
	}

	s, ok := results[0].Expressions[0].Value.(string)
	if !ok {
		return "", fmt.Errorf("unexpected policy result type %T", results[0].Expressions[0].Value)
	}
	switch d := Decision(s); d {
	case DecisionAllow, DecisionLocked, DecisionHidden:
		return d, nil
	default:
		return "", fmt.Errorf("unknown policy decision %q", s)
	}
}

// MenuEntry is a navigation item as shown to the user.
type MenuEntry struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Locked bool   `json:"locked"`
}

// Menu evaluates every navigation item against state, dropping hidden ones.
func (e *Engine) Menu(ctx context.Context, state domain.AuthState) ([]MenuEntry, error) {
	input := Input{Authenticated: state.Authenticated()}
	if state.Profile != nil && input.Authenticated {
		input.Role = string(state.Profile.Role)
	}

	menu := make([]MenuEntry, 0, len(NavItems))
	for _, item := range NavItems {
		input.Item = item.ID
		d, err := e.Evaluate(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("nav item %s: %w", item.ID, err)
		}
		if d == DecisionHidden {
			continue
		}
		menu = append(menu, MenuEntry{ID: item.ID, Label: item.Label, Locked: d == DecisionLocked})
	}
	return menu, nil
}
