// Package modelrouter maps (subscription plan, task type) to a model name.
//
// The policy is a static table built at construction: free and pay-as-you-go
// tiers always get the fast model; paid recurring tiers get the fast model for
// extraction and validation (cheap, latency-sensitive) and the quality model
// for CV drafting and cover letters (value-sensitive). Resolution is total: unknown
// plans fall back to the free tier, unknown tasks to the fast model.
package modelrouter

import (
	"fmt"

	"github.com/careerpilot-ke/careerpilot/internal/models"
)

// Router resolves model names from a static plan/task policy table.
type Router struct {
	fast    string
	quality string
	table   map[models.PlanTier]map[models.TaskType]string
}

// New builds a router from the fast and quality model names of the active
// provider kind.
func New(fast, quality string) *Router {
	table := make(map[models.PlanTier]map[models.TaskType]string, len(models.AllPlanTiers()))
	for _, tier := range models.AllPlanTiers() {
		row := make(map[models.TaskType]string, len(models.AllTaskTypes()))
		for _, task := range models.AllTaskTypes() {
			row[task] = fast
			if tier.Recurring() && (task == models.TaskCVDraft || task == models.TaskCoverLetter) {
				row[task] = quality
			}
		}
		table[tier] = row
	}
	return &Router{fast: fast, quality: quality, table: table}
}

// Resolve returns the model name for a plan and task. It never fails: unknown
// plans resolve as the free tier and unknown tasks as the fast model.
func (r *Router) Resolve(plan models.PlanTier, task models.TaskType) string {
	row, ok := r.table[plan]
	if !ok {
		row = r.table[models.PlanFree]
	}
	if model, ok := row[task]; ok {
		return model
	}
	return r.fast
}

// Validate checks the policy table covers every plan/task pair. Run at
// startup so a missing entry is a boot failure, not a runtime fallback.
func (r *Router) Validate() error {
	if r.fast == "" || r.quality == "" {
		return fmt.Errorf("modelrouter: empty model name (fast=%q quality=%q)", r.fast, r.quality)
	}
	for _, tier := range models.AllPlanTiers() {
		row, ok := r.table[tier]
		if !ok {
			return fmt.Errorf("modelrouter: missing plan tier %q", tier)
		}
		for _, task := range models.AllTaskTypes() {
			if _, ok := row[task]; !ok {
				return fmt.Errorf("modelrouter: missing entry for plan %q task %q", tier, task)
			}
		}
	}
	return nil
}
