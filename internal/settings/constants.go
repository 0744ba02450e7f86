package settings

// DB config keys and defaults for settings.
const (
	// FallbackModelKeyPrefix prefixes per-provider fallback model overrides,
	// e.g. "AI_FALLBACK_MODEL_GEMINI".
	FallbackModelKeyPrefix = "AI_FALLBACK_MODEL_"
	// CacheSweepIntervalSecondsKey controls the expired-cache sweep interval.
	CacheSweepIntervalSecondsKey = "CACHE_SWEEP_INTERVAL_SECONDS"
	// DefaultCacheSweepIntervalSeconds is the fallback sweep interval (seconds).
	// The sweep reclaims space only; correctness relies on lazy expiry.
	DefaultCacheSweepIntervalSeconds = 900
	// UsageRetentionDaysKey controls how long usage log rows are kept.
	// Zero or negative disables retention cleanup.
	UsageRetentionDaysKey = "USAGE_RETENTION_DAYS"
	// DefaultUsageRetentionDays is the fallback usage log retention.
	DefaultUsageRetentionDays = 180
)
