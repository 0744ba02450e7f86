package quota

import (
	"fmt"

	"github.com/careerpilot-ke/careerpilot/internal/models"
)

// Unlimited marks a ceiling that is never enforced. Unlimited tiers carry this
// sentinel explicitly rather than a large number.
const Unlimited int64 = -1

// Limits holds the per-tier ceilings for every quota window.
type Limits struct {
	DailyTokens   int64 // Tokens per UTC day across successful requests.
	MonthlyTokens int64 // Tokens per calendar month across successful requests.
	HourlyCalls   int64 // Generation attempts per rolling hour, any status.
}

// DefaultLimits returns the shipped plan-tier quota table.
func DefaultLimits() map[models.PlanTier]Limits {
	return map[models.PlanTier]Limits{
		models.PlanFree:       {DailyTokens: 10_000, MonthlyTokens: 100_000, HourlyCalls: 10},
		models.PlanPayAsYouGo: {DailyTokens: 50_000, MonthlyTokens: 500_000, HourlyCalls: 30},
		models.PlanProMonthly: {DailyTokens: 200_000, MonthlyTokens: 2_000_000, HourlyCalls: 60},
		models.PlanProAnnual:  {DailyTokens: 200_000, MonthlyTokens: 2_500_000, HourlyCalls: 60},
		models.PlanEnterprise: {DailyTokens: Unlimited, MonthlyTokens: Unlimited, HourlyCalls: Unlimited},
	}
}

// DefaultTaskEstimates returns the estimated token cost per task type, used to
// decide whether granting a request would push a window over its ceiling.
func DefaultTaskEstimates() map[models.TaskType]int64 {
	return map[models.TaskType]int64{
		models.TaskExtraction:  1_024,
		models.TaskCVDraft:     3_072,
		models.TaskCoverLetter: 2_048,
		models.TaskValidation:  512,
	}
}

// defaultTaskEstimate covers task types absent from the estimates table.
const defaultTaskEstimate int64 = 2_048

// validateLimits checks the limits table covers every plan tier.
func validateLimits(limits map[models.PlanTier]Limits) error {
	for _, tier := range models.AllPlanTiers() {
		if _, ok := limits[tier]; !ok {
			return fmt.Errorf("quota: missing limits for plan tier %q", tier)
		}
	}
	return nil
}
