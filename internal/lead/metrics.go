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

// StatusCounts maps each status, plus CountKeyAll, to a number of leads.
type StatusCounts map[string]int

// ComputeStatusCounts tallies leads per status over the whole set.
// Every status key is present, zero or not.
func ComputeStatusCounts(leads []*Lead) StatusCounts {
	counts := StatusCounts{CountKeyAll: len(leads)}
	for _, s := range orderedStatuses {
		counts[string(s)] = 0
	}
	for _, l := range leads {
		counts[string(l.Status)]++
	}
	return counts
}

// MonthlyStats summarises the leads created in the current calendar month.
type MonthlyStats struct {
	MonthlyTotal          int `json:"monthly_total"`
	ScheduledInMonth      int `json:"scheduled_in_month"`
	ConversionRatePercent int `json:"conversion_rate_percent"`
}

// StartOfMonth returns day 1, 00:00:00 of now's month in now's location.
func StartOfMonth(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
}

// ComputeMonthlyStats counts leads created on or after the start of now's
// month and the share of them that reached APPOINTMENT_SCHEDULED.
// The rate is 0 when no lead was created this month.
func ComputeMonthlyStats(leads []*Lead, now time.Time) MonthlyStats {
	start := StartOfMonth(now)

	var stats MonthlyStats
	for _, l := range leads {
		if l.CreatedAt.Before(start) {
			continue
		}
		stats.MonthlyTotal++
		if l.Status == StatusAppointmentScheduled {
			stats.ScheduledInMonth++
		}
	}
	stats.ConversionRatePercent = percentRoundHalfUp(stats.ScheduledInMonth, stats.MonthlyTotal)
	return stats
}

// percentRoundHalfUp returns round(part/total*100) without floating point.
func percentRoundHalfUp(part, total int) int {
	if total <= 0 {
		return 0
	}
	return (200*part + total) / (2 * total)
}

// FilterByStatus returns the leads matching filter, or all of them when the
// filter is CountKeyAll or empty. Order is preserved.
func FilterByStatus(leads []*Lead, filter string) []*Lead {
	if filter == "" || filter == CountKeyAll {
		return leads
	}
	out := make([]*Lead, 0, len(leads))
	for _, l := range leads {
		if string(l.Status) == filter {
			out = append(out, l)
		}
	}
	return out
}

// ParseFilter validates a board filter value.
func ParseFilter(s string) (string, error) {
	if s == "" || s == CountKeyAll {
		return CountKeyAll, nil
	}
	st, err := ParseStatus(s)
	if err != nil {
		return "", err
	}
	return string(st), nil
}
