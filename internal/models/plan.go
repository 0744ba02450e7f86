package models

import "strings"

// PlanTier identifies a subscription plan level.
type PlanTier string

// Subscription plan tiers, ordered from least to most generous.
const (
	// PlanFree is the default tier for users without an active subscription.
	PlanFree PlanTier = "free"
	// PlanPayAsYouGo is the metered, non-recurring tier.
	PlanPayAsYouGo PlanTier = "pay_as_you_go"
	// PlanProMonthly is the monthly recurring tier.
	PlanProMonthly PlanTier = "pro_monthly"
	// PlanProAnnual is the annual recurring tier.
	PlanProAnnual PlanTier = "pro_annual"
	// PlanEnterprise is the unlimited tier.
	PlanEnterprise PlanTier = "enterprise"
)

// AllPlanTiers lists every known plan tier.
func AllPlanTiers() []PlanTier {
	return []PlanTier{PlanFree, PlanPayAsYouGo, PlanProMonthly, PlanProAnnual, PlanEnterprise}
}

// ParsePlanTier normalizes a raw plan string. Unknown values map to the free tier.
func ParsePlanTier(raw string) PlanTier {
	switch PlanTier(strings.ToLower(strings.TrimSpace(raw))) {
	case PlanPayAsYouGo:
		return PlanPayAsYouGo
	case PlanProMonthly:
		return PlanProMonthly
	case PlanProAnnual:
		return PlanProAnnual
	case PlanEnterprise:
		return PlanEnterprise
	default:
		return PlanFree
	}
}

// Recurring reports whether the tier is a paid recurring subscription.
func (t PlanTier) Recurring() bool {
	switch t {
	case PlanProMonthly, PlanProAnnual, PlanEnterprise:
		return true
	default:
		return false
	}
}

// TaskType categorizes a generation request for routing and quota estimation.
type TaskType string

// Generation task types.
const (
	// TaskExtraction extracts structured fields from a job posting.
	TaskExtraction TaskType = "extraction"
	// TaskCVDraft drafts a tailored CV.
	TaskCVDraft TaskType = "cv_draft"
	// TaskCoverLetter drafts a tailored cover letter.
	TaskCoverLetter TaskType = "cover_letter"
	// TaskValidation checks generated output against a job posting.
	TaskValidation TaskType = "validation"
)

// AllTaskTypes lists every known task type.
func AllTaskTypes() []TaskType {
	return []TaskType{TaskExtraction, TaskCVDraft, TaskCoverLetter, TaskValidation}
}

// KnownTask reports whether the task type is one of the defined categories.
func KnownTask(task TaskType) bool {
	for _, known := range AllTaskTypes() {
		if task == known {
			return true
		}
	}
	return false
}
