package hedge

import "fmt"

// IsAcceptable reports whether a response with the given freshness marker
// satisfies threshold. A nil threshold accepts everything.
//
// A rejected response is correct but serves stale state, e.g. a node that is
// behind in replication. The engine treats it as a provider error.
func IsAcceptable(marker uint64, threshold *uint64) bool {
	if threshold == nil {
		return true
	}
	return marker >= *threshold
}

// staleError describes a response rejected for being behind threshold.
func staleError(marker, threshold uint64) error {
	return fmt.Errorf("%w: min freshness %d, got %d", ErrStaleResponse, threshold, marker)
}
