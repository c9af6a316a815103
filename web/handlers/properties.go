package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/housinglord/housing-lord/listing"
	"github.com/housinglord/housing-lord/models"
)

func (h *PropertyHandlers) List(w http.ResponseWriter, r *http.Request) {
	f, err := listing.ParseFilter(r.URL.Query())
	if err != nil {
		renderError(w, http.StatusBadRequest, err.Error())
		return
	}

	properties, err := h.Deps.Listings.List(r.Context(), f)
	if err != nil {
		h.Deps.Logger.Error("failed to list properties", zap.Error(err))
		renderError(w, http.StatusInternalServerError, "Failed to fetch properties")

		return
	}

	renderJSON(w, http.StatusOK, properties)
}

func (h *PropertyHandlers) Get(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	p, err := h.Deps.Listings.Get(r.Context(), id)

	switch {
	case errors.Is(err, models.ErrNotFound):
		renderError(w, http.StatusNotFound, "Property not found")
		return
	case err != nil:
		h.Deps.Logger.Error("failed to get property", zap.String("property_id", id), zap.Error(err))
		renderError(w, http.StatusInternalServerError, "Failed to fetch property")

		return
	}

	renderJSON(w, http.StatusOK, p)
}

func (h *PropertyHandlers) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(r)
	if !ok {
		renderError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req models.CreatePropertyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		renderError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.Deps.Validate.Struct(req); err != nil {
		renderError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	created, err := h.Deps.Listings.Create(r.Context(), p, req)
	if err != nil {
		h.Deps.Logger.Error("failed to create property", zap.String("user_id", p.ID), zap.Error(err))
		renderError(w, http.StatusInternalServerError, "Failed to create property")

		return
	}

	renderJSON(w, http.StatusCreated, created)
}

// Interests handles GET /api/properties/{id}/interests for the listing's
// owner or an admin.
func (h *PropertyHandlers) Interests(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(r)
	if !ok {
		renderError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	id := mux.Vars(r)["id"]

	views, err := h.Deps.Listings.Interests(r.Context(), p, h.Deps.Auth.IsAdmin(p), id)

	switch {
	case errors.Is(err, models.ErrNotFound):
		renderError(w, http.StatusNotFound, "Property not found")
		return
	case errors.Is(err, listing.ErrForbidden):
		renderError(w, http.StatusForbidden, "Forbidden")
		return
	case err != nil:
		h.Deps.Logger.Error("failed to list interests", zap.String("property_id", id), zap.Error(err))
		renderError(w, http.StatusInternalServerError, "Failed to fetch interests")

		return
	}

	renderJSON(w, http.StatusOK, views)
}

func (h *PropertyHandlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(r)
	if !ok {
		renderError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	dash, err := h.Deps.Listings.Dashboard(r.Context(), p)
	if err != nil {
		h.Deps.Logger.Error("failed to build dashboard", zap.String("user_id", p.ID), zap.Error(err))
		renderError(w, http.StatusInternalServerError, "Failed to fetch dashboard")

		return
	}

	renderJSON(w, http.StatusOK, dash)
}
