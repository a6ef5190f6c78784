package usecase

import "time"

// Cache namespaces. Every write invalidates the namespaces its aggregates
// live under; readers fall back to the store on a miss.
const (
	CacheNamespaceDashboard = "dashboard:"
	CacheNamespaceReport    = "report:"

	// DefaultCacheTTL bounds staleness when invalidation is missed.
	DefaultCacheTTL = 5 * time.Minute
)

// Pagination defaults.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultPageSize
	}
	if limit > MaxPageSize {
		return MaxPageSize
	}
	return limit
}
