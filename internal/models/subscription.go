package models

import "time"

// Subscription statuses.
const (
	// SubscriptionStatusActive marks a subscription currently in force.
	SubscriptionStatusActive = "active"
	// SubscriptionStatusCancelled marks a subscription cancelled by the user.
	SubscriptionStatusCancelled = "cancelled"
	// SubscriptionStatusExpired marks a subscription past its period end.
	SubscriptionStatusExpired = "expired"
)

// Subscription records a user's plan purchase and its validity window.
type Subscription struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID uint64 `gorm:"not null;index"`    // Owning user ID.
	User   *User  `gorm:"foreignKey:UserID"` // Associated user record.

	PlanTier string `gorm:"type:text;not null;index"`            // Plan tier identifier.
	Status   string `gorm:"type:text;not null;default:'active'"` // Subscription status.

	PeriodStart time.Time  `gorm:"not null"` // Start of the current billing period.
	PeriodEnd   *time.Time // End of the current billing period; nil for open-ended plans.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// InForce reports whether the subscription is active at the given time.
func (s *Subscription) InForce(now time.Time) bool {
	if s.Status != SubscriptionStatusActive {
		return false
	}
	if s.PeriodEnd != nil && s.PeriodEnd.Before(now) {
		return false
	}
	return !s.PeriodStart.After(now)
}
