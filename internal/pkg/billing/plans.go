package billing

import (
	"strings"

	"github.com/lovetextforher/lovetext/internal/pkg/entitlements"
)

// PlanResolver maps provider price references to internal plans. Unknown
// refs resolve to PlanNone so a misconfigured or superseded price never
// grants entitlement it should not.
type PlanResolver struct {
	refs map[string]entitlements.Plan
}

// NewPlanResolver builds a resolver from the configured price refs. Empty
// refs are skipped.
func NewPlanResolver(trialRef, basicRef, plusRef string) *PlanResolver {
	refs := make(map[string]entitlements.Plan, 3)
	for ref, plan := range map[string]entitlements.Plan{
		trialRef: entitlements.PlanTrial,
		basicRef: entitlements.PlanBasic,
		plusRef:  entitlements.PlanPlus,
	} {
		if r := strings.TrimSpace(ref); r != "" {
			refs[r] = plan
		}
	}
	return &PlanResolver{refs: refs}
}

// Resolve returns the internal plan for a provider price ref.
func (p *PlanResolver) Resolve(priceRef string) entitlements.Plan {
	if plan, ok := p.refs[strings.TrimSpace(priceRef)]; ok {
		return plan
	}
	return entitlements.PlanNone
}
