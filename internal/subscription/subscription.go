// Package subscription resolves a user's active plan tier.
package subscription

import (
	"context"
	"errors"
	"time"

	"github.com/careerpilot-ke/careerpilot/internal/models"
	"gorm.io/gorm"
)

// PlanSource resolves the active plan tier for a user. Users without an
// active subscription resolve to the free tier.
type PlanSource interface {
	ActivePlan(ctx context.Context, userID uint64) (models.PlanTier, error)
}

// Service looks up plan tiers from subscription rows.
type Service struct {
	db *gorm.DB
}

// NewService constructs a Service backed by GORM.
func NewService(db *gorm.DB) *Service { return &Service{db: db} }

// ActivePlan returns the plan tier of the user's newest in-force subscription.
// No subscription, or an expired/cancelled one, resolves to the free tier.
// Tier derivation happens at lookup time so a downgrade takes effect on the
// next operation without any migration.
func (s *Service) ActivePlan(ctx context.Context, userID uint64) (models.PlanTier, error) {
	if s == nil || s.db == nil {
		return models.PlanFree, errors.New("subscription: db not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	now := time.Now().UTC()
	var row models.Subscription
	errFind := s.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, models.SubscriptionStatusActive).
		Where("period_start <= ?", now).
		Where("(period_end IS NULL OR period_end >= ?)", now).
		Order("period_start DESC, id DESC").
		First(&row).Error
	if errors.Is(errFind, gorm.ErrRecordNotFound) {
		return models.PlanFree, nil
	}
	if errFind != nil {
		return models.PlanFree, errFind
	}
	return models.ParsePlanTier(row.PlanTier), nil
}

// Ensure Service implements PlanSource.
var _ PlanSource = (*Service)(nil)
