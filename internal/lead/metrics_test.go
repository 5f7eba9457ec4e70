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

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func leadsWith(created time.Time, statuses ...Status) []*Lead {
	out := make([]*Lead, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, &Lead{Status: s, CreatedAt: created})
	}
	return out
}

// TestPurpose: Validates that counting an empty set yields every key with zero.
// Scope: Unit Test
// Expected: all five statuses and ALL are present and zero.
// Test Case ID: MET-01
func TestComputeStatusCounts_Empty(t *testing.T) {
	want := StatusCounts{
		"ALL":                   0,
		"NEW":                   0,
		"CONTACTED":             0,
		"APPOINTMENT_SCHEDULED": 0,
		"NOT_RELEVANT":          0,
		"NO_RESPONSE":           0,
	}
	if diff := cmp.Diff(want, ComputeStatusCounts(nil)); diff != "" {
		t.Errorf("ComputeStatusCounts(nil) mismatch (-want +got):\n%s", diff)
	}
}

// TestPurpose: Validates that per-status counts always sum to ALL.
// Scope: Unit Test
// Expected: sum of status counts equals ALL for a range of set sizes.
// Test Case ID: MET-02
func TestComputeStatusCounts_SumEqualsAll(t *testing.T) {
	statuses := Statuses()
	for n := 0; n <= 23; n++ {
		leads := make([]*Lead, 0, n)
		for i := 0; i < n; i++ {
			leads = append(leads, &Lead{Status: statuses[(i*7)%len(statuses)], CreatedAt: refNow})
		}
		counts := ComputeStatusCounts(leads)

		sum := 0
		for _, s := range statuses {
			sum += counts[string(s)]
		}
		assert.Equal(t, n, counts[CountKeyAll])
		assert.Equal(t, counts[CountKeyAll], sum, "n=%d", n)
	}
}

// TestPurpose: Validates the zero-division policy of the conversion rate.
// Scope: Unit Test
// Expected: no lead created this month gives total 0 and rate 0.
// Test Case ID: MET-03
func TestComputeMonthlyStats_NoLeadsThisMonth(t *testing.T) {
	lastMonth := refNow.AddDate(0, -1, 0)
	stats := ComputeMonthlyStats(leadsWith(lastMonth, StatusAppointmentScheduled, StatusNew), refNow)
	assert.Equal(t, MonthlyStats{}, stats)
	assert.Equal(t, MonthlyStats{}, ComputeMonthlyStats(nil, refNow))
}

// TestPurpose: Validates the conversion-rate examples and round-half-up behaviour.
// Scope: Unit Test
// Expected: 3/10 -> 30, 1/3 -> 33, 2/3 -> 67, 1/8 -> 13, 1/2 -> 50.
// Test Case ID: MET-04
func TestComputeMonthlyStats_ConversionRate(t *testing.T) {
	tests := []struct {
		total, scheduled, want int
	}{
		{10, 3, 30},
		{3, 1, 33},
		{3, 2, 67},
		{8, 1, 13},
		{2, 1, 50},
		{4, 4, 100},
		{5, 0, 0},
	}
	for _, tt := range tests {
		var statuses []Status
		for i := 0; i < tt.total; i++ {
			if i < tt.scheduled {
				statuses = append(statuses, StatusAppointmentScheduled)
			} else {
				statuses = append(statuses, StatusContacted)
			}
		}
		stats := ComputeMonthlyStats(leadsWith(refNow.Add(-time.Hour), statuses...), refNow)
		assert.Equal(t, tt.total, stats.MonthlyTotal)
		assert.Equal(t, tt.scheduled, stats.ScheduledInMonth)
		assert.Equal(t, tt.want, stats.ConversionRatePercent, "%d/%d", tt.scheduled, tt.total)
	}
}

// TestPurpose: Validates the month window: inclusive at the first instant of the month, exclusive before it.
// Scope: Unit Test
// Expected: a lead at 00:00:00 on day 1 counts; one a nanosecond earlier does not.
// Test Case ID: MET-05
func TestComputeMonthlyStats_MonthBoundary(t *testing.T) {
	start := StartOfMonth(refNow)
	assert.Equal(t, time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC), start)

	leads := []*Lead{
		{Status: StatusAppointmentScheduled, CreatedAt: start},
		{Status: StatusAppointmentScheduled, CreatedAt: start.Add(-time.Nanosecond)},
	}
	stats := ComputeMonthlyStats(leads, refNow)
	assert.Equal(t, 1, stats.MonthlyTotal)
	assert.Equal(t, 100, stats.ConversionRatePercent)
}

// TestPurpose: Validates that the month window follows the location carried by now.
// Scope: Unit Test
// Expected: a lead created at 23:30 UTC on the last day of February belongs to March in UTC+2.
// Test Case ID: MET-06
func TestComputeMonthlyStats_Location(t *testing.T) {
	jerusalem := time.FixedZone("IST", 2*60*60)
	created := time.Date(2026, time.February, 28, 23, 30, 0, 0, time.UTC)
	leads := []*Lead{{Status: StatusNew, CreatedAt: created}}

	assert.Equal(t, 0, ComputeMonthlyStats(leads, refNow).MonthlyTotal)
	assert.Equal(t, 1, ComputeMonthlyStats(leads, refNow.In(jerusalem)).MonthlyTotal)
}

// TestPurpose: Validates board filtering.
// Scope: Unit Test
// Expected: ALL and empty return every lead; a status returns only matches in order; invalid filters are rejected.
// Test Case ID: MET-07
func TestFilterByStatus(t *testing.T) {
	leads := []*Lead{
		{ID: "1", Status: StatusNew},
		{ID: "2", Status: StatusContacted},
		{ID: "3", Status: StatusNew},
	}
	assert.Len(t, FilterByStatus(leads, CountKeyAll), 3)
	assert.Len(t, FilterByStatus(leads, ""), 3)

	got := FilterByStatus(leads, string(StatusNew))
	assert.Equal(t, []*Lead{leads[0], leads[2]}, got)

	f, err := ParseFilter("")
	assert.NoError(t, err)
	assert.Equal(t, CountKeyAll, f)
	_, err = ParseFilter("WON")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}
