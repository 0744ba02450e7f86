package models

import (
	"time"

	"gorm.io/datatypes"
)

// CacheEntry stores a reusable generation or extraction result.
//
// Entries are keyed by (cache_key, cache_type, user_id); user_id is NULL for
// shared system entries. A nil ExpiresAt means the entry never expires.
// Expired entries are deleted lazily on lookup.
type CacheEntry struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	CacheKey  string  `gorm:"type:text;not null;uniqueIndex:idx_cache_entry_scope"`         // Caller or hash-derived key.
	CacheType string  `gorm:"type:text;not null;uniqueIndex:idx_cache_entry_scope;index"`   // system, session, content or extraction.
	UserID    *uint64 `gorm:"uniqueIndex:idx_cache_entry_scope"`                            // Owning user; NULL for shared entries.

	Payload  datatypes.JSON `gorm:"type:jsonb;not null"` // JSON-serialized cached value.
	Metadata datatypes.JSON `gorm:"type:jsonb"`          // Free-form caller metadata.

	ExpiresAt *time.Time `gorm:"index"` // Expiry timestamp; NULL never expires.

	AccessCount    int64     `gorm:"not null;default:0"`      // Hit counter, incremented on every read.
	LastAccessedAt time.Time `gorm:"not null"`                // Last read timestamp.
	CreatedAt      time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}

// Expired reports whether the entry's expiry has passed at the given time.
func (e *CacheEntry) Expired(now time.Time) bool {
	return e.ExpiresAt != nil && e.ExpiresAt.Before(now)
}
