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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/leadboard/leadboard/internal/audit"
	"github.com/leadboard/leadboard/internal/business"
	"github.com/leadboard/leadboard/internal/id"
	"github.com/leadboard/leadboard/internal/observability/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Mutation operation names reported to the Recorder.
const (
	OpCreate         = "create"
	OpUpdateStatus   = "update_status"
	OpUpdateNotes    = "update_notes"
	OpUpdateFollowUp = "update_followup"
	OpDelete         = "delete"
)

// BusinessResolver resolves businesses for the lead service.
type BusinessResolver interface {
	// GetForOwner resolves a business the caller owns.
	GetForOwner(ctx context.Context, ownerID, businessID string) (*business.Business, error)
	// Get resolves any business; administrative paths only.
	Get(ctx context.Context, businessID string) (*business.Business, error)
}

// Recorder receives lead mutation outcomes for metrics.
type Recorder interface {
	RecordMutation(ctx context.Context, op string, err error)
	RecordStatusChange(ctx context.Context, from, to Status)
}

type nopRecorder struct{}

func (nopRecorder) RecordMutation(context.Context, string, error)    {}
func (nopRecorder) RecordStatusChange(context.Context, Status, Status) {}

// Config tunes the derived views.
type Config struct {
	Rule Rule
	// Location fixes the calendar used for monthly stats. Nil means time.Local.
	Location *time.Location
}

// Service provides lead operations scoped to businesses the caller owns.
type Service struct {
	repo        Repository
	businesses  BusinessResolver
	auditLogger audit.Logger
	recorder    Recorder
	tracer      trace.Tracer
	rule        Rule
	location    *time.Location
	now         func() time.Time
}

// NewService creates a new lead service. A nil recorder disables metrics.
func NewService(repo Repository, businesses BusinessResolver, auditLogger audit.Logger, recorder Recorder, cfg Config) *Service {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		repo:        repo,
		businesses:  businesses,
		auditLogger: auditLogger,
		recorder:    recorder,
		tracer:      otel.Tracer("github.com/leadboard/leadboard/internal/lead"),
		rule:        cfg.Rule,
		location:    loc,
		now:         time.Now,
	}
}

// Rule returns the follow-up rule the service applies.
func (s *Service) Rule() Rule {
	return s.rule
}

// Now returns the current instant in the configured location.
func (s *Service) Now() time.Time {
	return s.now().In(s.location)
}

func (s *Service) start(ctx context.Context, name, businessID string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "lead."+name, trace.WithAttributes(attribute.String("business.id", businessID)))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Create validates the input and stores a new lead in the business.
func (s *Service) Create(ctx context.Context, ownerID, businessID string, in CreateInput) (l *Lead, err error) {
	ctx, span := s.start(ctx, OpCreate, businessID)
	defer func() { endSpan(span, err) }()

	status, err := in.Validate()
	if err != nil {
		return nil, err
	}
	if _, err = s.businesses.GetForOwner(ctx, ownerID, businessID); err != nil {
		return nil, err
	}

	l = &Lead{
		ID:            id.NewUUIDv7(),
		BusinessID:    businessID,
		Name:          in.Name,
		Phone:         in.Phone,
		Instagram:     NullableText(in.Instagram),
		TreatmentType: NullableText(in.TreatmentType),
		Status:        status,
		Notes:         NullableText(in.Notes),
		CreatedAt:     s.now(),
		Revision:      1,
	}

	err = s.repo.Create(ctx, l)
	s.recorder.RecordMutation(ctx, OpCreate, err)
	if err != nil {
		return nil, fmt.Errorf("failed to create lead: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:       audit.TypeLeadCreated,
		BusinessID: businessID,
		ActorID:    ownerID,
		Resource:   "lead",
		Metadata:   map[string]any{audit.AttrLeadID: l.ID, audit.AttrToStatus: string(status)},
	})

	return l, nil
}

// Get returns a single lead of an owned business.
func (s *Service) Get(ctx context.Context, ownerID, businessID, leadID string) (*Lead, error) {
	if _, err := s.businesses.GetForOwner(ctx, ownerID, businessID); err != nil {
		return nil, err
	}
	l, err := s.repo.GetByID(ctx, businessID, leadID)
	if err != nil {
		return nil, fmt.Errorf("failed to get lead: %w", err)
	}
	return l, nil
}

// List returns the leads of an owned business, newest first.
func (s *Service) List(ctx context.Context, ownerID, businessID string) ([]*Lead, error) {
	if _, err := s.businesses.GetForOwner(ctx, ownerID, businessID); err != nil {
		return nil, err
	}
	return s.list(ctx, businessID)
}

func (s *Service) list(ctx context.Context, businessID string) ([]*Lead, error) {
	leads, err := s.repo.ListByBusiness(ctx, businessID)
	if err != nil {
		return nil, fmt.Errorf("failed to list leads: %w", err)
	}
	return leads, nil
}

// UpdateStatus moves a lead to any pipeline status.
func (s *Service) UpdateStatus(ctx context.Context, ownerID, businessID, leadID string, status Status, revision int64) (l *Lead, err error) {
	ctx, span := s.start(ctx, OpUpdateStatus, businessID)
	defer func() { endSpan(span, err) }()

	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	current, err := s.Get(ctx, ownerID, businessID, leadID)
	if err != nil {
		return nil, err
	}

	l, err = s.update(ctx, ownerID, businessID, leadID, OpUpdateStatus, Update{
		Field:    FieldStatus,
		Status:   status,
		Revision: revision,
	})
	if err != nil {
		return nil, err
	}

	s.recorder.RecordStatusChange(ctx, current.Status, l.Status)
	slog.DebugContext(ctx, "lead status changed",
		logger.BusinessID(businessID), logger.LeadID(leadID), logger.Status(string(l.Status)))
	s.auditLogger.Log(ctx, audit.Event{
		Type:       audit.TypeLeadStatusChanged,
		BusinessID: businessID,
		ActorID:    ownerID,
		Resource:   "lead",
		Metadata: map[string]any{
			audit.AttrLeadID:     leadID,
			audit.AttrFromStatus: string(current.Status),
			audit.AttrToStatus:   string(l.Status),
			audit.AttrRevision:   l.Revision,
		},
	})
	return l, nil
}

// UpdateNotes replaces the lead notes. Blank notes clear the field.
func (s *Service) UpdateNotes(ctx context.Context, ownerID, businessID, leadID string, notes *string, revision int64) (l *Lead, err error) {
	ctx, span := s.start(ctx, OpUpdateNotes, businessID)
	defer func() { endSpan(span, err) }()

	if _, err = s.businesses.GetForOwner(ctx, ownerID, businessID); err != nil {
		return nil, err
	}

	var cleaned *string
	if notes != nil {
		cleaned = NullableText(*notes)
	}

	l, err = s.update(ctx, ownerID, businessID, leadID, OpUpdateNotes, Update{
		Field:    FieldNotes,
		Notes:    cleaned,
		Revision: revision,
	})
	if err != nil {
		return nil, err
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:       audit.TypeLeadNotesUpdated,
		BusinessID: businessID,
		ActorID:    ownerID,
		Resource:   "lead",
		Metadata:   map[string]any{audit.AttrLeadID: leadID, audit.AttrRevision: l.Revision},
	})
	return l, nil
}

// UpdateFollowUp sets or clears the explicit next follow-up instant.
func (s *Service) UpdateFollowUp(ctx context.Context, ownerID, businessID, leadID string, at *time.Time, revision int64) (l *Lead, err error) {
	ctx, span := s.start(ctx, OpUpdateFollowUp, businessID)
	defer func() { endSpan(span, err) }()

	if _, err = s.businesses.GetForOwner(ctx, ownerID, businessID); err != nil {
		return nil, err
	}

	l, err = s.update(ctx, ownerID, businessID, leadID, OpUpdateFollowUp, Update{
		Field:          FieldFollowUp,
		NextFollowupAt: at,
		Revision:       revision,
	})
	if err != nil {
		return nil, err
	}

	meta := map[string]any{audit.AttrLeadID: leadID, audit.AttrRevision: l.Revision}
	if at != nil {
		meta["next_followup_at"] = at.UTC().Format(time.RFC3339)
	}
	s.auditLogger.Log(ctx, audit.Event{
		Type:       audit.TypeLeadFollowUpSet,
		BusinessID: businessID,
		ActorID:    ownerID,
		Resource:   "lead",
		Metadata:   meta,
	})
	return l, nil
}

func (s *Service) update(ctx context.Context, ownerID, businessID, leadID, op string, upd Update) (*Lead, error) {
	l, err := s.repo.Update(ctx, businessID, leadID, upd)
	s.recorder.RecordMutation(ctx, op, err)
	if err != nil {
		if errors.Is(err, ErrRevisionConflict) {
			slog.WarnContext(ctx, "lead update rejected",
				logger.Operation(op), logger.BusinessID(businessID), logger.LeadID(leadID), logger.Error(err))
		}
		if upd.Revision > 0 {
			s.auditLogger.Log(ctx, audit.Event{
				Type:       audit.TypeLeadUpdateRejected,
				BusinessID: businessID,
				ActorID:    ownerID,
				Resource:   "lead",
				Metadata: map[string]any{
					audit.AttrLeadID:   leadID,
					audit.AttrRevision: upd.Revision,
					audit.AttrReason:   err.Error(),
				},
			})
		}
		return nil, fmt.Errorf("failed to update lead: %w", err)
	}
	return l, nil
}

// Delete permanently removes a lead.
func (s *Service) Delete(ctx context.Context, ownerID, businessID, leadID string) (err error) {
	ctx, span := s.start(ctx, OpDelete, businessID)
	defer func() { endSpan(span, err) }()

	if _, err = s.businesses.GetForOwner(ctx, ownerID, businessID); err != nil {
		return err
	}

	err = s.repo.Delete(ctx, businessID, leadID)
	s.recorder.RecordMutation(ctx, OpDelete, err)
	if err != nil {
		return fmt.Errorf("failed to delete lead: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:       audit.TypeLeadDeleted,
		BusinessID: businessID,
		ActorID:    ownerID,
		Resource:   "lead",
		Metadata:   map[string]any{audit.AttrLeadID: leadID},
	})
	return nil
}

// Board is the derived view of one business.
type Board struct {
	Business    *business.Business `json:"business"`
	Filter      string             `json:"filter"`
	Leads       []*Lead            `json:"leads"`
	Counts      StatusCounts       `json:"counts"`
	Monthly     MonthlyStats       `json:"monthly"`
	FollowUp    *DueList           `json:"follow_up,omitempty"`
	GeneratedAt time.Time          `json:"generated_at"`
}

// Board builds the business board. Counts and monthly stats always cover
// every lead; the follow-up list is only produced for the ALL filter.
func (s *Service) Board(ctx context.Context, ownerID, businessID, filter string) (*Board, error) {
	filter, err := ParseFilter(filter)
	if err != nil {
		return nil, err
	}
	b, err := s.businesses.GetForOwner(ctx, ownerID, businessID)
	if err != nil {
		return nil, err
	}
	leads, err := s.list(ctx, businessID)
	if err != nil {
		return nil, err
	}

	now := s.Now()
	board := &Board{
		Business:    b,
		Filter:      filter,
		Leads:       FilterByStatus(leads, filter),
		Counts:      ComputeStatusCounts(leads),
		Monthly:     ComputeMonthlyStats(leads, now),
		GeneratedAt: now,
	}
	if filter == CountKeyAll {
		due := s.rule.DueLeads(leads, now)
		board.FollowUp = &due
	}
	return board, nil
}

// FollowUps returns the due list for an owned business.
func (s *Service) FollowUps(ctx context.Context, ownerID, businessID string) (DueList, time.Time, error) {
	if _, err := s.businesses.GetForOwner(ctx, ownerID, businessID); err != nil {
		return DueList{}, time.Time{}, err
	}
	leads, err := s.list(ctx, businessID)
	if err != nil {
		return DueList{}, time.Time{}, err
	}
	now := s.Now()
	due := s.rule.DueLeads(leads, now)
	slog.DebugContext(ctx, "follow-ups evaluated", logger.BusinessID(businessID), logger.DueCount(due.Total))
	return due, now, nil
}

// FollowUpsForBusiness evaluates the due list without an ownership check.
// It backs administrative tooling that runs outside a user session; an
// unknown business yields business.ErrBusinessNotFound.
func (s *Service) FollowUpsForBusiness(ctx context.Context, businessID string) (DueList, time.Time, error) {
	if _, err := s.businesses.Get(ctx, businessID); err != nil {
		return DueList{}, time.Time{}, err
	}
	leads, err := s.list(ctx, businessID)
	if err != nil {
		return DueList{}, time.Time{}, err
	}
	now := s.Now()
	due := s.rule.DueLeads(leads, now)
	slog.DebugContext(ctx, "follow-ups evaluated", logger.BusinessID(businessID), logger.DueCount(due.Total))
	return due, now, nil
}
