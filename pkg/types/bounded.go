package types

// TrimOldest enforces a hard cap on a bounded buffer, dropping the oldest
// entries first. The retained tail is copied to the front of the backing
// array so evicted entries do not stay pinned. Eviction is silent: overload
// loses history, it never applies backpressure.
func TrimOldest[T any](s []T, limit int) []T {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	n := copy(s, s[len(s)-limit:])
	return s[:n]
}
