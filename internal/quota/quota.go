// Package quota enforces per-user token and call ceilings over rolling
// daily, monthly and hourly windows.
//
// Usage for a window is computed by summing usage log rows inside the window,
// never from a stored counter, so it self-corrects if logs are backfilled or
// deleted. Internal errors while computing usage fail open: the request is
// allowed and the error is surfaced only as a logged warning, because
// availability is prioritized over strict quota precision.
package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/careerpilot-ke/careerpilot/internal/models"
	"github.com/careerpilot-ke/careerpilot/internal/subscription"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Quota window identifiers.
const (
	WindowDaily   = "daily"
	WindowMonthly = "monthly"
	WindowHourly  = "hourly"
)

// Warning levels reported by Status.
const (
	LevelOK       = "ok"       // below 50% of the ceiling
	LevelWarning  = "warning"  // 50-80%
	LevelCritical = "critical" // 80-95%
	LevelExceeded = "exceeded" // 95% and above
)

// ExceededError reports a denied quota check and which window was exhausted.
type ExceededError struct {
	Window string // daily, monthly or hourly
	Used   int64
	Limit  int64
}

func (e *ExceededError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("quota: %s limit reached (%d/%d)", e.Window, e.Used, e.Limit)
}

// Manager checks and reports per-user quota state.
type Manager struct {
	db        *gorm.DB
	plans     subscription.PlanSource
	limits    map[models.PlanTier]Limits
	estimates map[models.TaskType]int64
}

// NewManager constructs a quota manager with the default limit tables.
func NewManager(db *gorm.DB, plans subscription.PlanSource) *Manager {
	return &Manager{
		db:        db,
		plans:     plans,
		limits:    DefaultLimits(),
		estimates: DefaultTaskEstimates(),
	}
}

// Validate checks the limit table covers every plan tier. Run at startup.
func (m *Manager) Validate() error {
	if m == nil || m.db == nil {
		return errors.New("quota: manager not initialized")
	}
	return validateLimits(m.limits)
}

// Check reports whether the user may run the task now. A nil return allows
// the request; a *ExceededError denies it. Checks run daily, then monthly,
// then hourly; the order only affects which window the denial names.
func (m *Manager) Check(ctx context.Context, userID uint64, task models.TaskType) error {
	if m == nil || m.db == nil {
		return errors.New("quota: manager not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	plan, errPlan := m.plans.ActivePlan(ctx, userID)
	if errPlan != nil {
		log.WithError(errPlan).Warnf("quota: plan lookup failed, allowing request (user=%d)", userID)
		return nil
	}
	limits, ok := m.limits[plan]
	if !ok {
		limits = m.limits[models.PlanFree]
	}

	estimate := m.estimate(task)
	now := time.Now().UTC()

	for _, window := range []struct {
		name  string
		since time.Time
		limit int64
	}{
		{WindowDaily, dayStart(now), limits.DailyTokens},
		{WindowMonthly, monthStart(now), limits.MonthlyTokens},
	} {
		if window.limit == Unlimited {
			continue
		}
		used, errSum := m.tokensSince(ctx, userID, window.since)
		if errSum != nil {
			log.WithError(errSum).Warnf("quota: %s usage lookup failed, allowing request (user=%d)", window.name, userID)
			return nil
		}
		if used >= window.limit || used+estimate > window.limit {
			return &ExceededError{Window: window.name, Used: used, Limit: window.limit}
		}
	}

	if limits.HourlyCalls != Unlimited {
		calls, errCount := m.callsSince(ctx, userID, now.Add(-time.Hour))
		if errCount != nil {
			log.WithError(errCount).Warnf("quota: hourly call lookup failed, allowing request (user=%d)", userID)
			return nil
		}
		if calls >= limits.HourlyCalls {
			return &ExceededError{Window: WindowHourly, Used: calls, Limit: limits.HourlyCalls}
		}
	}

	return nil
}

// WindowStatus describes utilization of one quota window.
type WindowStatus struct {
	Window    string    `json:"window"`
	Used      int64     `json:"used"`
	Limit     int64     `json:"limit"` // -1 means unlimited
	Remaining int64     `json:"remaining"`
	Percent   float64   `json:"percent"`
	Level     string    `json:"level"`
	ResetsAt  time.Time `json:"resets_at"`
}

// Status reports utilization and warning levels for every window.
func (m *Manager) Status(ctx context.Context, userID uint64) ([]WindowStatus, error) {
	if m == nil || m.db == nil {
		return nil, errors.New("quota: manager not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	plan, errPlan := m.plans.ActivePlan(ctx, userID)
	if errPlan != nil {
		return nil, errPlan
	}
	limits, ok := m.limits[plan]
	if !ok {
		limits = m.limits[models.PlanFree]
	}

	now := time.Now().UTC()

	dailyUsed, errDaily := m.tokensSince(ctx, userID, dayStart(now))
	if errDaily != nil {
		return nil, errDaily
	}
	monthlyUsed, errMonthly := m.tokensSince(ctx, userID, monthStart(now))
	if errMonthly != nil {
		return nil, errMonthly
	}
	hourlyUsed, errHourly := m.callsSince(ctx, userID, now.Add(-time.Hour))
	if errHourly != nil {
		return nil, errHourly
	}

	return []WindowStatus{
		windowStatus(WindowDaily, dailyUsed, limits.DailyTokens, nextDayStart(now)),
		windowStatus(WindowMonthly, monthlyUsed, limits.MonthlyTokens, nextMonthStart(now)),
		windowStatus(WindowHourly, hourlyUsed, limits.HourlyCalls, now.Add(time.Hour)),
	}, nil
}

// estimate returns the token estimate for a task, with a default for unknown tasks.
func (m *Manager) estimate(task models.TaskType) int64 {
	if est, ok := m.estimates[task]; ok {
		return est
	}
	return defaultTaskEstimate
}

// tokensSince sums successful usage tokens from the window start.
func (m *Manager) tokensSince(ctx context.Context, userID uint64, since time.Time) (int64, error) {
	var total int64
	errSum := m.db.WithContext(ctx).
		Model(&models.UsageLog{}).
		Where("user_id = ? AND status = ? AND requested_at >= ?", userID, models.UsageStatusSuccess, since).
		Select("COALESCE(SUM(total_tokens), 0)").
		Scan(&total).Error
	if errSum != nil {
		return 0, errSum
	}
	return total, nil
}

// callsSince counts generation attempts of any status from the window start.
func (m *Manager) callsSince(ctx context.Context, userID uint64, since time.Time) (int64, error) {
	var count int64
	errCount := m.db.WithContext(ctx).
		Model(&models.UsageLog{}).
		Where("user_id = ? AND requested_at >= ?", userID, since).
		Count(&count).Error
	if errCount != nil {
		return 0, errCount
	}
	return count, nil
}

func windowStatus(window string, used, limit int64, resetsAt time.Time) WindowStatus {
	status := WindowStatus{
		Window:   window,
		Used:     used,
		Limit:    limit,
		ResetsAt: resetsAt,
	}
	if limit == Unlimited {
		status.Remaining = Unlimited
		status.Level = LevelOK
		return status
	}
	status.Remaining = limit - used
	if status.Remaining < 0 {
		status.Remaining = 0
	}
	if limit > 0 {
		status.Percent = float64(used) / float64(limit) * 100
	}
	switch {
	case status.Percent >= 95:
		status.Level = LevelExceeded
	case status.Percent >= 80:
		status.Level = LevelCritical
	case status.Percent >= 50:
		status.Level = LevelWarning
	default:
		status.Level = LevelOK
	}
	return status
}

// dayStart returns midnight UTC of the given day.
func dayStart(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// nextDayStart returns the next midnight UTC.
func nextDayStart(now time.Time) time.Time {
	return dayStart(now).AddDate(0, 0, 1)
}

// monthStart returns the first of the calendar month, UTC.
func monthStart(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// nextMonthStart returns the first of the next calendar month, UTC.
func nextMonthStart(now time.Time) time.Time {
	return monthStart(now).AddDate(0, 1, 0)
}
