// Copyright 2026 The Leadboard Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package lead

import "time"

// DefaultGraceDays is the number of whole days a lead without an explicit
// follow-up date may sit in NEW or CONTACTED before it is due.
const DefaultGraceDays = 3

// DefaultSurfaceLimit is how many due leads a board surfaces by name.
const DefaultSurfaceLimit = 5

const dayMillis = int64(24 * time.Hour / time.Millisecond)

// IsFollowUpDue decides whether a lead needs renewed contact at now.
//
// Only NEW and CONTACTED leads are ever due. An explicit follow-up time is
// due once it is at or before now. Otherwise the lead is due after
// graceDays whole days (floored) have passed since creation.
func IsFollowUpDue(status Status, createdAt time.Time, nextFollowupAt *time.Time, graceDays int, now time.Time) bool {
	if !status.Open() {
		return false
	}
	if nextFollowupAt != nil {
		return !nextFollowupAt.After(now)
	}
	return DaysSince(createdAt, now) >= int64(graceDays)
}

// DaysSince returns floor((now - t) / 1 day) at millisecond precision.
func DaysSince(t, now time.Time) int64 {
	return floorDiv(now.Sub(t).Milliseconds(), dayMillis)
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// Rule evaluates follow-up eligibility for a batch of leads.
type Rule struct {
	GraceDays int
	// Limit bounds how many due leads are surfaced; <= 0 means all.
	Limit int
}

// DefaultRule returns the rule with the stock grace period and limit.
func DefaultRule() Rule {
	return Rule{GraceDays: DefaultGraceDays, Limit: DefaultSurfaceLimit}
}

// IsDue applies the rule to a single lead.
func (r Rule) IsDue(l *Lead, now time.Time) bool {
	return IsFollowUpDue(l.Status, l.CreatedAt, l.NextFollowupAt, r.GraceDays, now)
}

// DueList is the outcome of a follow-up pass.
type DueList struct {
	Leads     []*Lead `json:"leads"`
	Remaining int     `json:"remaining"`
	Total     int     `json:"total"`
}

// DueLeads filters leads through the rule using a single now, keeping the
// input order. Leads past the limit are reported in Remaining.
func (r Rule) DueLeads(leads []*Lead, now time.Time) DueList {
	due := make([]*Lead, 0)
	for _, l := range leads {
		if r.IsDue(l, now) {
			due = append(due, l)
		}
	}

	list := DueList{Leads: due, Total: len(due)}
	if r.Limit > 0 && len(due) > r.Limit {
		list.Leads = due[:r.Limit]
		list.Remaining = len(due) - r.Limit
	}
	return list
}
