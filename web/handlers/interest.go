package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/housinglord/housing-lord/interest"
	"github.com/housinglord/housing-lord/models"
)

// Express handles POST /api/interested. A duplicate is a 200 with
// success false.
func (h *InterestHandlers) Express(w http.ResponseWriter, r *http.Request) {
	var req models.InterestRequest
	if err := decodeJSON(w, r, &req); err != nil {
		renderError(w, http.StatusBadRequest, err.Error())
		return
	}

	if p, ok := principal(r); ok && p.ID != req.UserID {
		renderError(w, http.StatusForbidden, "userId does not match the signed in user")
		return
	}

	res, err := h.Deps.Interests.Express(r.Context(), req)

	switch {
	case errors.Is(err, interest.ErrValidation):
		renderError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		h.Deps.Logger.Error("failed to record interest",
			zap.String("user_external_id", req.UserID),
			zap.String("property_id", req.PropertyID),
			zap.Error(err),
		)
		renderError(w, http.StatusInternalServerError, "Failed to record interest")

		return
	}

	renderJSON(w, http.StatusOK, models.InterestResponse{Success: res.Success, Message: res.Message})
}

// Status handles GET /api/interested?userId=&propertyId=
func (h *InterestHandlers) Status(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	ok, err := h.Deps.Interests.Check(r.Context(), q.Get("userId"), q.Get("propertyId"))

	switch {
	case errors.Is(err, interest.ErrValidation):
		renderError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		h.Deps.Logger.Error("failed to check interest", zap.Error(err))
		renderError(w, http.StatusInternalServerError, "Failed to check interest")

		return
	}

	renderJSON(w, http.StatusOK, models.InterestStatusResponse{Interested: ok})
}
