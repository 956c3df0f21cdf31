package constants

// Cache read outcomes, also used as metric label values.
const (
	CACHE_OUTCOME_FRESH = "fresh"
	CACHE_OUTCOME_STALE = "stale"
	CACHE_OUTCOME_MISS  = "miss"
)

// Optimistic write outcomes.
const (
	WRITE_OUTCOME_CONFIRMED   = "confirmed"
	WRITE_OUTCOME_ROLLED_BACK = "rolled_back"
	WRITE_OUTCOME_LEFT_STALE  = "left_stale"
)
