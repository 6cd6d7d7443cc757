package domain

import "time"

// CheckResult is one probe outcome. Results are append-only: the latest
// status of a target is its most recent CheckResult.
type CheckResult struct {
	ID           string    `json:"id"`
	TargetID     string    `json:"target_id"`
	ProxyID      string    `json:"proxy_id,omitempty"`
	Available    bool      `json:"available"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CheckedAt    time.Time `json:"checked_at"`
}

// LatestStatus pairs a target with its most recent result (nil when the
// target was never checked).
type LatestStatus struct {
	Target *Target
	Result *CheckResult
}
