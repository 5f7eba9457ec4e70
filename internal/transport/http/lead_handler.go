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

package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/leadboard/leadboard/internal/business"
	"github.com/leadboard/leadboard/internal/lead"
)

const dateOnly = "2006-01-02"

var errInvalidFollowUp = errors.New("next_followup_at must be RFC3339, YYYY-MM-DD or null")

// LeadView is a lead decorated with its display and contact helpers.
type LeadView struct {
	*lead.Lead
	StatusLabel     string     `json:"status_label"`
	StatusColor     string     `json:"status_color"`
	CreatedRelative string     `json:"created_relative"`
	FollowUpDue     bool       `json:"follow_up_due"`
	Links           lead.Links `json:"links"`
}

// DueListView is the follow-up list as rendered by the API.
type DueListView struct {
	Leads     []LeadView `json:"leads"`
	Remaining int        `json:"remaining"`
	Total     int        `json:"total"`
}

// BoardView is the business board as rendered by the API.
type BoardView struct {
	Business    *business.Business `json:"business"`
	Filter      string             `json:"filter"`
	Leads       []LeadView         `json:"leads"`
	Counts      lead.StatusCounts  `json:"counts"`
	Monthly     lead.MonthlyStats  `json:"monthly"`
	FollowUp    *DueListView       `json:"follow_up,omitempty"`
	GeneratedAt time.Time          `json:"generated_at"`
}

func (h *Handler) leadView(l *lead.Lead, now time.Time) LeadView {
	return LeadView{
		Lead:            l,
		StatusLabel:     l.Status.LocalizedLabel(h.language),
		StatusColor:     l.Status.Color(),
		CreatedRelative: lead.RelativeTime(l.CreatedAt, now),
		FollowUpDue:     h.leadService.Rule().IsDue(l, now),
		Links:           lead.ContactLinks(l),
	}
}

func (h *Handler) leadViews(leads []*lead.Lead, now time.Time) []LeadView {
	out := make([]LeadView, 0, len(leads))
	for _, l := range leads {
		out = append(out, h.leadView(l, now))
	}
	return out
}

func (h *Handler) dueListView(d lead.DueList, now time.Time) *DueListView {
	return &DueListView{
		Leads:     h.leadViews(d.Leads, now),
		Remaining: d.Remaining,
		Total:     d.Total,
	}
}

func (h *Handler) scope(r *http.Request) (ownerID, businessID, leadID string) {
	return GetUserID(r.Context()), chi.URLParam(r, "businessID"), chi.URLParam(r, "leadID")
}

// ListLeads lists leads of a business, optionally filtered by status
// @Summary List Leads
// @Tags Leads
// @Produce json
// @Security CookieAuth
// @Param businessID path string true "Business ID"
// @Param status query string false "Status filter (ALL or a pipeline status)"
// @Success 200 {array} LeadView
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /businesses/{businessID}/leads [get]
func (h *Handler) ListLeads(w http.ResponseWriter, r *http.Request) {
	filter, err := lead.ParseFilter(r.URL.Query().Get("status"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	ownerID, businessID, _ := h.scope(r)
	leads, err := h.leadService.List(r.Context(), ownerID, businessID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, h.leadViews(lead.FilterByStatus(leads, filter), h.leadService.Now()))
}

// CreateLeadRequest represents lead creation data
type CreateLeadRequest struct {
	Name          string `json:"name" example:"Noa"`
	Phone         string `json:"phone" example:"+972 50-123-4567"`
	Instagram     string `json:"instagram,omitempty" example:"@noa"`
	TreatmentType string `json:"treatment_type,omitempty" example:"Facial"`
	Notes         string `json:"notes,omitempty"`
	Status        string `json:"status,omitempty" example:"NEW"`
}

// CreateLead adds a lead to a business
// @Summary Create Lead
// @Tags Leads
// @Accept json
// @Produce json
// @Security CookieAuth
// @Security CSRFToken
// @Param businessID path string true "Business ID"
// @Param request body CreateLeadRequest true "Lead Data"
// @Success 201 {object} LeadView
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /businesses/{businessID}/leads [post]
func (h *Handler) CreateLead(w http.ResponseWriter, r *http.Request) {
	var req CreateLeadRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ownerID, businessID, _ := h.scope(r)
	l, err := h.leadService.Create(r.Context(), ownerID, businessID, lead.CreateInput{
		Name:          req.Name,
		Phone:         req.Phone,
		Instagram:     req.Instagram,
		TreatmentType: req.TreatmentType,
		Notes:         req.Notes,
		Status:        req.Status,
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, h.leadView(l, h.leadService.Now()))
}

// GetLead returns one lead
// @Summary Get Lead
// @Tags Leads
// @Produce json
// @Security CookieAuth
// @Param businessID path string true "Business ID"
// @Param leadID path string true "Lead ID"
// @Success 200 {object} LeadView
// @Failure 404 {object} map[string]string
// @Router /businesses/{businessID}/leads/{leadID} [get]
func (h *Handler) GetLead(w http.ResponseWriter, r *http.Request) {
	ownerID, businessID, leadID := h.scope(r)
	l, err := h.leadService.Get(r.Context(), ownerID, businessID, leadID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, h.leadView(l, h.leadService.Now()))
}

// DeleteLead permanently removes a lead
// @Summary Delete Lead
// @Tags Leads
// @Security CookieAuth
// @Security CSRFToken
// @Param businessID path string true "Business ID"
// @Param leadID path string true "Lead ID"
// @Success 204
// @Failure 404 {object} map[string]string
// @Router /businesses/{businessID}/leads/{leadID} [delete]
func (h *Handler) DeleteLead(w http.ResponseWriter, r *http.Request) {
	ownerID, businessID, leadID := h.scope(r)
	if err := h.leadService.Delete(r.Context(), ownerID, businessID, leadID); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpdateStatusRequest moves a lead through the pipeline. Revision 0 or
// omitted skips the concurrent-edit check.
type UpdateStatusRequest struct {
	Status   string `json:"status" example:"CONTACTED"`
	Revision int64  `json:"revision,omitempty"`
}

// UpdateLeadStatus changes the pipeline status of a lead
// @Summary Update Lead Status
// @Tags Leads
// @Accept json
// @Produce json
// @Security CookieAuth
// @Security CSRFToken
// @Param businessID path string true "Business ID"
// @Param leadID path string true "Lead ID"
// @Param request body UpdateStatusRequest true "Status"
// @Success 200 {object} LeadView
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /businesses/{businessID}/leads/{leadID}/status [put]
func (h *Handler) UpdateLeadStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	status, err := lead.ParseStatus(req.Status)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	ownerID, businessID, leadID := h.scope(r)
	l, err := h.leadService.UpdateStatus(r.Context(), ownerID, businessID, leadID, status, req.Revision)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, h.leadView(l, h.leadService.Now()))
}

// UpdateNotesRequest replaces lead notes; null or blank clears them.
type UpdateNotesRequest struct {
	Notes    *string `json:"notes"`
	Revision int64   `json:"revision,omitempty"`
}

// UpdateLeadNotes replaces the notes of a lead
// @Summary Update Lead Notes
// @Tags Leads
// @Accept json
// @Produce json
// @Security CookieAuth
// @Security CSRFToken
// @Param businessID path string true "Business ID"
// @Param leadID path string true "Lead ID"
// @Param request body UpdateNotesRequest true "Notes"
// @Success 200 {object} LeadView
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /businesses/{businessID}/leads/{leadID}/notes [put]
func (h *Handler) UpdateLeadNotes(w http.ResponseWriter, r *http.Request) {
	var req UpdateNotesRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ownerID, businessID, leadID := h.scope(r)
	l, err := h.leadService.UpdateNotes(r.Context(), ownerID, businessID, leadID, req.Notes, req.Revision)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, h.leadView(l, h.leadService.Now()))
}

// UpdateFollowUpRequest sets or clears the explicit follow-up instant.
type UpdateFollowUpRequest struct {
	NextFollowupAt json.RawMessage `json:"next_followup_at" swaggertype:"string" example:"2026-03-20"`
	Revision       int64           `json:"revision,omitempty"`
}

// UpdateLeadFollowUp schedules the next follow-up of a lead
// @Summary Update Lead Follow-up
// @Description A date without time means midnight in the deployment time zone
// @Tags Leads
// @Accept json
// @Produce json
// @Security CookieAuth
// @Security CSRFToken
// @Param businessID path string true "Business ID"
// @Param leadID path string true "Lead ID"
// @Param request body UpdateFollowUpRequest true "Follow-up"
// @Success 200 {object} LeadView
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /businesses/{businessID}/leads/{leadID}/followup [put]
func (h *Handler) UpdateLeadFollowUp(w http.ResponseWriter, r *http.Request) {
	var req UpdateFollowUpRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	at, err := parseFollowUp(req.NextFollowupAt)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	ownerID, businessID, leadID := h.scope(r)
	l, err := h.leadService.UpdateFollowUp(r.Context(), ownerID, businessID, leadID, at, req.Revision)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, h.leadView(l, h.leadService.Now()))
}

// parseFollowUp accepts null, an empty string, RFC3339 or a bare date.
// A bare date is midnight UTC, whatever the deployment zone.
func parseFollowUp(raw json.RawMessage) (*time.Time, error) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, errInvalidFollowUp
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	t, err := time.Parse(dateOnly, s)
	if err != nil {
		return nil, errInvalidFollowUp
	}
	return &t, nil
}

// GetBoard returns the board of a business
// @Summary Business Board
// @Description Filtered leads, per-status counts, monthly stats and, for ALL, the follow-up list
// @Tags Leads
// @Produce json
// @Security CookieAuth
// @Param businessID path string true "Business ID"
// @Param status query string false "Status filter (ALL or a pipeline status)"
// @Success 200 {object} BoardView
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /businesses/{businessID}/board [get]
func (h *Handler) GetBoard(w http.ResponseWriter, r *http.Request) {
	ownerID, businessID, _ := h.scope(r)
	board, err := h.leadService.Board(r.Context(), ownerID, businessID, r.URL.Query().Get("status"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	view := BoardView{
		Business:    board.Business,
		Filter:      board.Filter,
		Leads:       h.leadViews(board.Leads, board.GeneratedAt),
		Counts:      board.Counts,
		Monthly:     board.Monthly,
		GeneratedAt: board.GeneratedAt,
	}
	if board.FollowUp != nil {
		view.FollowUp = h.dueListView(*board.FollowUp, board.GeneratedAt)
		if h.metrics != nil {
			h.metrics.ObserveDue(board.FollowUp.Total)
		}
	}
	respondJSON(w, http.StatusOK, view)
}

// ListFollowUps returns the leads due for follow-up
// @Summary Follow-ups
// @Tags Leads
// @Produce json
// @Security CookieAuth
// @Param businessID path string true "Business ID"
// @Success 200 {object} DueListView
// @Failure 404 {object} map[string]string
// @Router /businesses/{businessID}/followups [get]
func (h *Handler) ListFollowUps(w http.ResponseWriter, r *http.Request) {
	ownerID, businessID, _ := h.scope(r)
	due, now, err := h.leadService.FollowUps(r.Context(), ownerID, businessID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	if h.metrics != nil {
		h.metrics.ObserveDue(due.Total)
	}
	respondJSON(w, http.StatusOK, h.dueListView(due, now))
}
