// Package expiry computes link expiry times and evaluates liveness.
package expiry

import "time"

// DefaultValidity is the validity window, in minutes, used when a caller
// supplies none.
const DefaultValidity = 30

// MaxValidity is the longest accepted validity window, in minutes (100 years).
// It keeps createdAt + validity well inside the range of time.Duration.
const MaxValidity = 100 * 365 * 24 * 60

// Minutes returns validity when it is positive, DefaultValidity when it is
// not, and MaxValidity when it is larger than that.
func Minutes(validity int) int {
	switch {
	case validity <= 0:
		return DefaultValidity
	case validity > MaxValidity:
		return MaxValidity
	}
	return validity
}

// Compute returns the instant a link created at createdAt stops serving
// redirects.
func Compute(createdAt time.Time, validity int) time.Time {
	return createdAt.Add(time.Duration(Minutes(validity)) * time.Minute)
}

// IsExpired reports whether now is strictly past expiry. A request at the
// exact expiry instant is still live.
func IsExpired(expiry, now time.Time) bool {
	return now.After(expiry)
}
