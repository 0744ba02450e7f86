// Package cache is the multi-tier, plan-aware result cache that avoids
// repeat LLM spend.
//
// Entries live in the cache_entries table, keyed by (key, type, user).
// Expiry is lazy: a lookup on an expired entry behaves as a miss and deletes
// the row; a periodic sweep may also run, but only for space reclamation.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/careerpilot-ke/careerpilot/internal/models"
	"github.com/careerpilot-ke/careerpilot/internal/subscription"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// contentKeyPromptPrefix bounds how much of the prompt feeds the derived key.
// Near-duplicate prompts may collide; that is accepted to favor hit rate over
// strict uniqueness.
const contentKeyPromptPrefix = 200

// Entry is a cache hit returned to callers.
type Entry struct {
	Payload        json.RawMessage
	Metadata       json.RawMessage
	AccessCount    int64
	CostSavedCents int64 // single-retrieval estimate, not compounded over history
	ExpiresAt      *time.Time
}

// Manager reads and writes plan-aware cache entries.
type Manager struct {
	db    *gorm.DB
	plans subscription.PlanSource
}

// NewManager constructs a cache manager.
func NewManager(db *gorm.DB, plans subscription.PlanSource) *Manager {
	return &Manager{db: db, plans: plans}
}

// ContentKey derives the default cache key for ad hoc content caching: a
// fixed-width hex prefix of SHA-256 over the task type and a bounded prompt
// prefix.
func ContentKey(task models.TaskType, prompt string) string {
	if len(prompt) > contentKeyPromptPrefix {
		prompt = prompt[:contentKeyPromptPrefix]
	}
	sum := sha256.Sum256([]byte(string(task) + ":" + prompt))
	return hex.EncodeToString(sum[:])[:16]
}

// Get looks up an entry. A nil return with nil error is a miss. Expired
// entries are treated as misses and deleted eagerly. Hits mutate the row:
// the access counter is incremented and the last-accessed timestamp refreshed.
func (m *Manager) Get(ctx context.Context, key string, userID *uint64, typ Type) (*Entry, error) {
	if m == nil || m.db == nil {
		return nil, errors.New("cache: manager not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var row models.CacheEntry
	errFind := m.scope(ctx, key, userID, typ).First(&row).Error
	if errors.Is(errFind, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if errFind != nil {
		return nil, errFind
	}

	now := time.Now().UTC()
	if row.Expired(now) {
		if errDelete := m.db.WithContext(ctx).Delete(&models.CacheEntry{}, row.ID).Error; errDelete != nil {
			log.WithError(errDelete).Warnf("cache: delete expired entry failed (key=%s)", key)
		}
		return nil, nil
	}

	if errTouch := m.db.WithContext(ctx).
		Model(&models.CacheEntry{}).
		Where("id = ?", row.ID).
		Updates(map[string]any{
			"access_count":     gorm.Expr("access_count + 1"),
			"last_accessed_at": now,
		}).Error; errTouch != nil {
		log.WithError(errTouch).Warnf("cache: touch entry failed (key=%s)", key)
	}

	return &Entry{
		Payload:        json.RawMessage(row.Payload),
		Metadata:       json.RawMessage(row.Metadata),
		AccessCount:    row.AccessCount + 1,
		CostSavedCents: costSavedCents[typ],
		ExpiresAt:      row.ExpiresAt,
	}, nil
}

// Set stores a payload under (key, type, user). The TTL resolution order is:
// explicit caller TTL, then the (cache tier, type) table, where the tier is
// derived from the user's active plan at call time. A resolved TTL of exactly
// zero is a no-op reporting false rather than a zero-lifetime row.
func (m *Manager) Set(ctx context.Context, key string, payload any, typ Type, userID *uint64, ttl *time.Duration, metadata map[string]any) (bool, error) {
	if m == nil || m.db == nil {
		return false, errors.New("cache: manager not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	tier := TierFree
	if userID != nil {
		plan, errPlan := m.plans.ActivePlan(ctx, *userID)
		if errPlan != nil {
			return false, errPlan
		}
		tier = TierForPlan(plan)
	}

	resolvedTTL, permanent := resolveTTL(ttl, tier, typ)
	if !permanent && resolvedTTL <= 0 {
		return false, nil
	}

	encoded, errMarshal := json.Marshal(payload)
	if errMarshal != nil {
		return false, fmt.Errorf("cache: encode payload: %w", errMarshal)
	}
	var encodedMeta datatypes.JSON
	if len(metadata) > 0 {
		raw, errMeta := json.Marshal(metadata)
		if errMeta != nil {
			return false, fmt.Errorf("cache: encode metadata: %w", errMeta)
		}
		encodedMeta = datatypes.JSON(raw)
	}

	now := time.Now().UTC()
	var expiresAt *time.Time
	if !permanent {
		expiry := now.Add(resolvedTTL)
		expiresAt = &expiry
	}

	scopedUser := userID
	if typ == TypeSystem {
		scopedUser = nil
	}

	var existing models.CacheEntry
	errFind := m.scope(ctx, key, scopedUser, typ).First(&existing).Error
	if errFind == nil {
		errUpdate := m.db.WithContext(ctx).
			Model(&models.CacheEntry{}).
			Where("id = ?", existing.ID).
			Updates(map[string]any{
				"payload":          datatypes.JSON(encoded),
				"metadata":         encodedMeta,
				"expires_at":       expiresAt,
				"last_accessed_at": now,
			}).Error
		if errUpdate != nil {
			return false, errUpdate
		}
		return true, nil
	}
	if !errors.Is(errFind, gorm.ErrRecordNotFound) {
		return false, errFind
	}

	row := models.CacheEntry{
		CacheKey:       key,
		CacheType:      string(typ),
		UserID:         scopedUser,
		Payload:        datatypes.JSON(encoded),
		Metadata:       encodedMeta,
		ExpiresAt:      expiresAt,
		LastAccessedAt: now,
		CreatedAt:      now,
	}
	if errCreate := m.db.WithContext(ctx).Create(&row).Error; errCreate != nil {
		return false, errCreate
	}
	return true, nil
}

// Delete removes an entry. Deleting a missing entry is not an error.
func (m *Manager) Delete(ctx context.Context, key string, userID *uint64, typ Type) error {
	if m == nil || m.db == nil {
		return errors.New("cache: manager not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return m.scope(ctx, key, userID, typ).Delete(&models.CacheEntry{}).Error
}

// CleanupExpired deletes every entry whose expiry has passed and returns the
// number removed. Correctness does not depend on this; it reclaims space.
func (m *Manager) CleanupExpired(ctx context.Context) (int64, error) {
	if m == nil || m.db == nil {
		return 0, errors.New("cache: manager not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	res := m.db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at < ?", time.Now().UTC()).
		Delete(&models.CacheEntry{})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// Stats aggregates cache state across all entries.
type Stats struct {
	TotalEntries   int64            `json:"total_entries"`
	TotalAccesses  int64            `json:"total_accesses"`
	TotalBytes     int64            `json:"total_bytes"`
	AvgTTLMinutes  float64          `json:"avg_ttl_minutes"` // over entries with an expiry only
	ByType         map[string]int64 `json:"by_type"`
	CostSavedCents int64            `json:"cost_saved_cents"` // per-access: constant x access_count
}

// GetStats computes aggregate cache statistics in a single pass per concern.
func (m *Manager) GetStats(ctx context.Context) (*Stats, error) {
	if m == nil || m.db == nil {
		return nil, errors.New("cache: manager not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var rows []models.CacheEntry
	if errFind := m.db.WithContext(ctx).Find(&rows).Error; errFind != nil {
		return nil, errFind
	}

	stats := &Stats{ByType: make(map[string]int64, len(AllTypes()))}
	var ttlTotal time.Duration
	var ttlCount int64
	for _, row := range rows {
		stats.TotalEntries++
		stats.TotalAccesses += row.AccessCount
		stats.TotalBytes += int64(len(row.Payload))
		stats.ByType[row.CacheType]++
		stats.CostSavedCents += costSavedCents[Type(row.CacheType)] * row.AccessCount
		if row.ExpiresAt != nil {
			ttlTotal += row.ExpiresAt.Sub(row.CreatedAt)
			ttlCount++
		}
	}
	if ttlCount > 0 {
		stats.AvgTTLMinutes = ttlTotal.Minutes() / float64(ttlCount)
	}
	return stats, nil
}

// scope builds the composite-key filter; a nil userID matches shared entries.
func (m *Manager) scope(ctx context.Context, key string, userID *uint64, typ Type) *gorm.DB {
	q := m.db.WithContext(ctx).
		Model(&models.CacheEntry{}).
		Where("cache_key = ? AND cache_type = ?", key, string(typ))
	if typ == TypeSystem || userID == nil {
		return q.Where("user_id IS NULL")
	}
	return q.Where("user_id = ?", *userID)
}
