package cache

import (
	"time"

	"github.com/careerpilot-ke/careerpilot/internal/models"
)

// Type identifies a cache segment.
type Type string

// Cache types.
const (
	// TypeSystem holds shared, permanent entries such as prompt templates.
	// System entries are never user-scoped and never expire, on any tier.
	TypeSystem Type = "system"
	// TypeSession holds user-scoped short-lived intermediates.
	TypeSession Type = "session"
	// TypeContent holds user-scoped generated output for reuse.
	TypeContent Type = "content"
	// TypeExtraction holds user-scoped job posting extraction results.
	TypeExtraction Type = "extraction"
)

// AllTypes lists every cache type.
func AllTypes() []Type {
	return []Type{TypeSystem, TypeSession, TypeContent, TypeExtraction}
}

// Tier is the caching generosity level derived from a subscription plan.
type Tier string

// Cache tiers.
const (
	TierFree       Tier = "free"
	TierBasic      Tier = "basic"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

// TierForPlan derives the cache tier from a plan tier.
func TierForPlan(plan models.PlanTier) Tier {
	switch plan {
	case models.PlanPayAsYouGo:
		return TierBasic
	case models.PlanProMonthly, models.PlanProAnnual:
		return TierPro
	case models.PlanEnterprise:
		return TierEnterprise
	default:
		return TierFree
	}
}

// ttlTable resolves the default TTL per (tier, type). Zero disables caching
// for that combination. TypeSystem is handled before this table: system
// entries are permanent regardless of tier.
var ttlTable = map[Tier]map[Type]time.Duration{
	TierFree: {
		TypeSession:    0,
		TypeContent:    0,
		TypeExtraction: 0,
	},
	TierBasic: {
		TypeSession:    15 * time.Minute,
		TypeContent:    30 * time.Minute,
		TypeExtraction: 30 * time.Minute,
	},
	TierPro: {
		TypeSession:    30 * time.Minute,
		TypeContent:    2 * time.Hour,
		TypeExtraction: 45 * time.Minute,
	},
	TierEnterprise: {
		TypeSession:    time.Hour,
		TypeContent:    24 * time.Hour,
		TypeExtraction: 2 * time.Hour,
	},
}

// costSavedCents estimates the avoided spend, in cents, of one cache hit per
// type. Each Get reports only this single-retrieval constant; aggregate stats
// multiply it by the historical access count.
var costSavedCents = map[Type]int64{
	TypeSystem:     0,
	TypeSession:    2,
	TypeContent:    5,
	TypeExtraction: 3,
}

// resolveTTL applies the resolution order: explicit caller TTL wins, then the
// tier/type table. permanent means the entry never expires; a zero ttl with
// permanent=false means caching is disabled for the combination.
func resolveTTL(explicit *time.Duration, tier Tier, typ Type) (ttl time.Duration, permanent bool) {
	if explicit != nil {
		return *explicit, false
	}
	if typ == TypeSystem {
		return 0, true
	}
	row, ok := ttlTable[tier]
	if !ok {
		row = ttlTable[TierFree]
	}
	return row[typ], false
}
