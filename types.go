package auth

import "time"

// RegisterRequest carries everything needed to create an account.
type RegisterRequest struct {
	Username          string
	Password          string
	FirstName         string
	LastName          string
	PrimaryLocationID string
	BirthDate         time.Time
}

// BanInfo is the result of CheckBanStatus, evaluated at call time.
type BanInfo struct {
	Banned bool
	// Until is the ban expiry when Banned is true, zero otherwise. A
	// permanent ban reports the far-future sentinel used by PermanentBan.
	Until time.Time
}

// RevokeFailure records one account that RevokeAllSessions could not clear.
type RevokeFailure struct {
	Username string
	Err      error
}

// RevokeAllResult summarizes a RevokeAllSessions sweep. Per-account store
// failures are collected here rather than aborting the sweep.
type RevokeAllResult struct {
	Revoked int
	Failed  []RevokeFailure
}
