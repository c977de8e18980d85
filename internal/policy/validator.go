// Package policy renders the IAM documents attached to the pipeline role
// and validates them against a rego guardrail before they ever reach
// terraform. The guardrail is the privilege-containment backstop: the role
// must carry the deny override and must not reach beyond its own state
// bucket and lock table.
package policy

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/open-policy-agent/opa/rego"
	"github.com/open-policy-agent/opa/storage/inmem"
)

//go:embed guardrail.rego
var guardrailContent string

type Validator struct{}

type ValidationResult struct {
	Allowed    bool     `json:"allowed"`
	Violations []string `json:"violations,omitempty"`
}

func NewValidator() (*Validator, error) {
	// Compile once up front so a syntax error in the embedded rule fails
	// construction rather than the first validation.
	_, err := rego.New(
		rego.Query("data.iamguard.allow"),
		rego.Module("guardrail.rego", guardrailContent),
	).PrepareForEval(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to prepare guardrail query: %w", err)
	}
	return &Validator{}, nil
}

// ValidatePolicy evaluates the rendered role policy JSON against the
// guardrail, scoped to the expected bucket and lock table names.
func (v *Validator) ValidatePolicy(policyJSON, bucket, lockTable string) (*ValidationResult, error) {
	ctx := context.Background()

	var document map[string]interface{}
	if err := json.Unmarshal([]byte(policyJSON), &document); err != nil {
		return nil, fmt.Errorf("policy document is not valid JSON: %w", err)
	}

	store := inmem.NewFromObject(map[string]interface{}{
		"bucket":     bucket,
		"lock_table": lockTable,
	})

	query, err := rego.New(
		rego.Query("data.iamguard.violations"),
		rego.Module("guardrail.rego", guardrailContent),
		rego.Store(store),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare guardrail query with data: %w", err)
	}

	results, err := query.Eval(ctx, rego.EvalInput(document))
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate guardrail: %w", err)
	}

	if len(results) == 0 {
		return &ValidationResult{
			Allowed:    false,
			Violations: []string{"guardrail evaluation returned no results"},
		}, nil
	}

	raw, ok := results[0].Expressions[0].Value.([]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected guardrail result type %T", results[0].Expressions[0].Value)
	}

	var violations []string
	for _, entry := range raw {
		if msg, ok := entry.(string); ok {
			violations = append(violations, msg)
		}
	}

	return &ValidationResult{
		Allowed:    len(violations) == 0,
		Violations: violations,
	}, nil
}
