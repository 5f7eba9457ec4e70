package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// CreateBusinessRequest represents business creation data
type CreateBusinessRequest struct {
	Name string `json:"name" example:"Studio Dana"`
}

// ListBusinesses lists the businesses the caller owns
// @Summary List Businesses
// @Tags Businesses
// @Produce json
// @Security CookieAuth
// @Success 200 {array} business.Business
// @Failure 401 {object} map[string]string
// @Router /businesses [get]
func (h *Handler) ListBusinesses(w http.ResponseWriter, r *http.Request) {
	list, err := h.businessService.ListForOwner(r.Context(), GetUserID(r.Context()))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

// CreateBusiness creates a business owned by the caller
// @Summary Create Business
// @Tags Businesses
// @Accept json
// @Produce json
// @Security CookieAuth
// @Security CSRFToken
// @Param request body CreateBusinessRequest true "Business Data"
// @Success 201 {object} business.Business
// @Failure 400 {object} map[string]string
// @Router /businesses [post]
func (h *Handler) CreateBusiness(w http.ResponseWriter, r *http.Request) {
	var req CreateBusinessRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	b, err := h.businessService.Create(r.Context(), GetUserID(r.Context()), req.Name)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, b)
}

// GetBusiness returns a business the caller owns
// @Summary Get Business
// @Tags Businesses
// @Produce json
// @Security CookieAuth
// @Param businessID path string true "Business ID"
// @Success 200 {object} business.Business
// @Failure 404 {object} map[string]string
// @Router /businesses/{businessID} [get]
func (h *Handler) GetBusiness(w http.ResponseWriter, r *http.Request) {
	b, err := h.businessService.GetForOwner(r.Context(), GetUserID(r.Context()), chi.URLParam(r, "businessID"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, b)
}
