package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/housinglord/housing-lord/models"
)

func (h *AdminHandlers) Pending(w http.ResponseWriter, r *http.Request) {
	properties, err := h.Deps.Listings.Pending(r.Context())
	if err != nil {
		h.Deps.Logger.Error("failed to list pending properties", zap.Error(err))
		renderError(w, http.StatusInternalServerError, "Failed to fetch pending properties")

		return
	}

	renderJSON(w, http.StatusOK, properties)
}

// Approve handles PATCH /api/properties/{id}/approve. The body is optional.
func (h *AdminHandlers) Approve(w http.ResponseWriter, r *http.Request) {
	p, _ := principal(r)
	id := mux.Vars(r)["id"]

	var req models.ApproveRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			renderError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	adminName := req.AdminName
	if adminName == "" {
		adminName = p.Name
	}

	if adminName == "" {
		adminName = p.Email
	}

	approved, err := h.Deps.Listings.Approve(r.Context(), id, adminName)

	switch {
	case errors.Is(err, models.ErrNotFound):
		renderError(w, http.StatusNotFound, "Property not found")
		return
	case err != nil:
		h.Deps.Logger.Error("failed to approve property", zap.String("property_id", id), zap.Error(err))
		renderError(w, http.StatusInternalServerError, "Failed to approve property")

		return
	}

	renderJSON(w, http.StatusOK, approved)
}
