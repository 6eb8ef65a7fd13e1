// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Codesage Contributors

package health

import "time"

// Metrics exposes the current health state of an embedding provider for
// monitoring and operator visibility. All fields are point-in-time snapshots
// safe to serialize to JSON.
type Metrics struct {
	FailureCount  int64      `json:"failure_count"`
	LastFailureAt *time.Time `json:"last_failure_at,omitempty"`
	CooldownUntil *time.Time `json:"cooldown_until,omitempty"`
	Available     bool       `json:"available"`
}

// Check is the outcome of a single readiness probe.
type Check struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}

// Report aggregates readiness checks. Ready is true only when every check
// passed.
type Report struct {
	Ready  bool    `json:"ready"`
	Checks []Check `json:"checks"`
}

// NewReport builds a Report from checks.
func NewReport(checks ...Check) Report {
	r := Report{Ready: true, Checks: checks}
	if r.Checks == nil {
		r.Checks = []Check{}
	}
	for _, c := range checks {
		if !c.OK {
			r.Ready = false
		}
	}
	return r
}
