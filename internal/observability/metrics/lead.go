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

package metrics

import (
	"context"

	"github.com/leadboard/leadboard/internal/lead"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// LeadRecorder reports lead mutations to both the OTel meter and the
// Prometheus registry. Either side may be nil.
type LeadRecorder struct {
	prom *Registry

	mutations   metric.Int64Counter
	transitions metric.Int64Counter
}

// NewLeadRecorder creates the lead instruments.
func NewLeadRecorder(m *Meter, prom *Registry) (*LeadRecorder, error) {
	r := &LeadRecorder{prom: prom}
	if m == nil {
		return r, nil
	}

	var err error
	if r.mutations, err = m.CreateCounter("leadboard.lead.mutations", "Lead mutations by operation and outcome"); err != nil {
		return nil, err
	}
	if r.transitions, err = m.CreateCounter("leadboard.lead.status_transitions", "Lead status transitions"); err != nil {
		return nil, err
	}
	return r, nil
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordMutation implements lead.Recorder.
func (r *LeadRecorder) RecordMutation(ctx context.Context, op string, err error) {
	if r.mutations != nil {
		r.mutations.Add(ctx, 1, metric.WithAttributes(
			attribute.String("op", op),
			attribute.String("outcome", outcome(err)),
		))
	}
	if r.prom != nil {
		r.prom.mutations.WithLabelValues(op, outcome(err)).Inc()
	}
}

// RecordStatusChange implements lead.Recorder.
func (r *LeadRecorder) RecordStatusChange(ctx context.Context, from, to lead.Status) {
	if r.transitions != nil {
		r.transitions.Add(ctx, 1, metric.WithAttributes(
			attribute.String("from", string(from)),
			attribute.String("to", string(to)),
		))
	}
	if r.prom != nil {
		r.prom.transitions.WithLabelValues(string(from), string(to)).Inc()
	}
}

var _ lead.Recorder = (*LeadRecorder)(nil)
