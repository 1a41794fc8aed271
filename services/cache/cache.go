package cache

import (
	"time"
)

// DefaultRetention is how long a notified listing stays suppressed.
const DefaultRetention = time.Hour

// SeenCache is a time-bounded membership set keyed by listing URL.
// An entry expires on its own once the retention window has passed since insertion.
type SeenCache interface {
	// Has reports whether key was marked within the retention window
	Has(key string) (bool, error)

	// MarkSeen records key with the current time
	MarkSeen(key string) error

	// CheckAndMark atomically marks key and reports whether it was absent before.
	// Two concurrent callers for the same key never both get true.
	CheckAndMark(key string) (bool, error)
}
