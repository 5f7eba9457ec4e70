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
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidStatus is returned for any status string outside the pipeline.
var ErrInvalidStatus = errors.New("invalid lead status")

// Status is a stage in the lead pipeline.
type Status string

// Pipeline statuses
const (
	StatusNew                  Status = "NEW"
	StatusContacted            Status = "CONTACTED"
	StatusAppointmentScheduled Status = "APPOINTMENT_SCHEDULED"
	StatusNotRelevant          Status = "NOT_RELEVANT"
	StatusNoResponse           Status = "NO_RESPONSE"
)

// CountKeyAll is the aggregate key used by status filters and counts.
// It is never a valid lead status.
const CountKeyAll = "ALL"

var orderedStatuses = []Status{
	StatusNew,
	StatusContacted,
	StatusAppointmentScheduled,
	StatusNotRelevant,
	StatusNoResponse,
}

type statusDisplay struct {
	label   string
	labelHE string
	color   string
}

var displays = map[Status]statusDisplay{
	StatusNew:                  {label: "New", labelHE: "חדש", color: "blue"},
	StatusContacted:            {label: "Contacted", labelHE: "נוצר קשר", color: "orange"},
	StatusAppointmentScheduled: {label: "Appointment scheduled", labelHE: "נקבע תור", color: "green"},
	StatusNotRelevant:          {label: "Not relevant", labelHE: "לא רלוונטי", color: "red"},
	StatusNoResponse:           {label: "No response", labelHE: "אין מענה", color: "gray"},
}

// Statuses returns the pipeline statuses in display order.
func Statuses() []Status {
	out := make([]Status, len(orderedStatuses))
	copy(out, orderedStatuses)
	return out
}

// ParseStatus validates an external status string.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.TrimSpace(s))
	if !st.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	return st, nil
}

// Valid reports whether s is one of the pipeline statuses.
func (s Status) Valid() bool {
	_, ok := displays[s]
	return ok
}

// Label returns the English display label.
func (s Status) Label() string {
	return displays[s].label
}

// LocalizedLabel returns the label for locale, falling back to English.
func (s Status) LocalizedLabel(locale string) string {
	d := displays[s]
	if strings.HasPrefix(strings.ToLower(locale), "he") {
		return d.labelHE
	}
	return d.label
}

// Color returns the display color name.
func (s Status) Color() string {
	return displays[s].color
}

// Open reports whether the lead is still in the active pipeline and
// therefore subject to follow-up.
func (s Status) Open() bool {
	return s == StatusNew || s == StatusContacted
}

func (s Status) String() string {
	return string(s)
}
