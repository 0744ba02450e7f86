package modelrouter

import (
	"testing"

	"github.com/careerpilot-ke/careerpilot/internal/models"
)

func TestResolvePolicy(t *testing.T) {
	router := New("fast-model", "quality-model")

	cases := []struct {
		plan models.PlanTier
		task models.TaskType
		want string
	}{
		{models.PlanFree, models.TaskExtraction, "fast-model"},
		{models.PlanFree, models.TaskCVDraft, "fast-model"},
		{models.PlanPayAsYouGo, models.TaskCoverLetter, "fast-model"},
		{models.PlanProMonthly, models.TaskExtraction, "fast-model"},
		{models.PlanProMonthly, models.TaskValidation, "fast-model"},
		{models.PlanProMonthly, models.TaskCVDraft, "quality-model"},
		{models.PlanProAnnual, models.TaskCoverLetter, "quality-model"},
		{models.PlanEnterprise, models.TaskCVDraft, "quality-model"},
		{models.PlanEnterprise, models.TaskValidation, "fast-model"},
	}
	for _, tc := range cases {
		if got := router.Resolve(tc.plan, tc.task); got != tc.want {
			t.Fatalf("Resolve(%s, %s) = %q, want %q", tc.plan, tc.task, got, tc.want)
		}
	}
}

func TestResolveIsTotal(t *testing.T) {
	router := New("fast-model", "quality-model")

	if got := router.Resolve(models.PlanTier("no-such-plan"), models.TaskExtraction); got != "fast-model" {
		t.Fatalf("unknown plan resolved to %q, want fast model", got)
	}
	if got := router.Resolve(models.PlanProMonthly, models.TaskType("no-such-task")); got != "fast-model" {
		t.Fatalf("unknown task resolved to %q, want fast model", got)
	}
}

func TestValidate(t *testing.T) {
	if errValidate := New("fast-model", "quality-model").Validate(); errValidate != nil {
		t.Fatalf("validate full table: %v", errValidate)
	}
	if errValidate := New("", "quality-model").Validate(); errValidate == nil {
		t.Fatalf("expected empty fast model to fail validation")
	}
}
