package usage

import (
	"context"
	"errors"
	"time"

	"github.com/careerpilot-ke/careerpilot/internal/models"
	"gorm.io/gorm"
)

// Summary aggregates usage over a reporting window.
type Summary struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`

	TotalRequests  int64 `json:"total_requests"`
	TotalTokens    int64 `json:"total_tokens"`
	TotalCostCents int64 `json:"total_cost_cents"`

	ByProvider map[string]Bucket `json:"by_provider"`
	ByTask     map[string]Bucket `json:"by_task"`
	ByStatus   map[string]int64  `json:"by_status"`
}

// Bucket is one aggregation group within a summary.
type Bucket struct {
	Requests  int64 `json:"requests"`
	Tokens    int64 `json:"tokens"`
	CostCents int64 `json:"cost_cents"`
}

// Reporter computes usage summaries for administrators.
type Reporter struct {
	db *gorm.DB
}

// NewReporter constructs a Reporter.
func NewReporter(db *gorm.DB) *Reporter { return &Reporter{db: db} }

// Summarize aggregates usage rows between from and to. Token and cost totals
// count successful generations only; request and status counts cover every
// attempt.
func (r *Reporter) Summarize(ctx context.Context, from, to time.Time) (*Summary, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("usage: reporter not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var rows []models.UsageLog
	if errFind := r.db.WithContext(ctx).
		Where("requested_at >= ? AND requested_at < ?", from, to).
		Find(&rows).Error; errFind != nil {
		return nil, errFind
	}

	summary := &Summary{
		From:       from,
		To:         to,
		ByProvider: map[string]Bucket{},
		ByTask:     map[string]Bucket{},
		ByStatus:   map[string]int64{},
	}
	for i := range rows {
		row := &rows[i]
		summary.TotalRequests++
		summary.ByStatus[row.Status]++

		succeeded := row.Status == models.UsageStatusSuccess || row.Status == models.UsageStatusSuccessFallback

		provider := summary.ByProvider[row.Provider]
		provider.Requests++
		if succeeded {
			provider.Tokens += row.TotalTokens
			provider.CostCents += row.CostCents
		}
		summary.ByProvider[row.Provider] = provider

		task := summary.ByTask[row.TaskType]
		task.Requests++
		if succeeded {
			task.Tokens += row.TotalTokens
			task.CostCents += row.CostCents
		}
		summary.ByTask[row.TaskType] = task

		if succeeded {
			summary.TotalTokens += row.TotalTokens
			summary.TotalCostCents += row.CostCents
		}
	}
	return summary, nil
}
