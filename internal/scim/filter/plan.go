package filter

import (
	"strings"

	"github.com/pranems/SCIMServer-sub002/internal/domain"
	"github.com/pranems/SCIMServer-sub002/internal/scim/policy"
)

// Plan is the split of a filter between the store and the in-memory
// evaluator. Exactly one of Pushdown and Residual is set for a non-empty
// filter: either the whole filter reduced to an indexed equality, or the
// store returns the full tenant candidate set and Residual runs over it.
type Plan struct {
	Pushdown *domain.StorePredicate
	Residual Expr
}

// PlanQuery inspects a filter AST and decides whether it can be answered
// by a single indexed equality in the store. Only a lone eq Compare on an
// attribute the policy table marks as indexed qualifies; compound filters,
// the textual and ordering operators, value paths, and extension paths all
// fall back to full-scan plus evaluation.
//
// Pushing just eq is a deliberate cost trade-off: provisioning clients
// overwhelmingly look resources up by identifier, and the exact in-memory
// evaluator stays the reference semantics for everything else.
func PlanQuery(e Expr, pol *policy.Table) Plan {
	cmp, ok := e.(*Compare)
	if !ok || cmp.Op != OpEq {
		return Plan{Residual: e}
	}
	if strings.ContainsAny(cmp.Path, ".:") {
		return Plan{Residual: e}
	}
	value, ok := cmp.Value.(string)
	if !ok {
		return Plan{Residual: e}
	}
	col, ok := pol.Indexed(cmp.Path)
	if !ok {
		return Plan{Residual: e}
	}
	return Plan{Pushdown: &domain.StorePredicate{
		Column: col,
		Value:  pol.NormalizeIdentifier(cmp.Path, value),
	}}
}
