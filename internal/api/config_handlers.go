package api

import (
	"encoding/json"
	"net/http"

	"communityos/guildlink/internal/auth"
	"communityos/guildlink/internal/constants"
	"communityos/guildlink/internal/models/dtos/requests"
)

// GetConfig handles GET /api/v1/integration/config
func (h *Handlers) GetConfig() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := auth.GetUserClaims(r.Context())
		if claims == nil || claims.OrgID() == nil {
			respondWithError(w, http.StatusBadRequest, "Missing tenant")
			return
		}

		view, err := h.deps.Services.Config.Get(r.Context(), *claims.OrgID())
		if err != nil {
			respondWithError(w, http.StatusInternalServerError, "Failed to fetch config")
			return
		}

		respondWithSuccess(w, http.StatusOK, view)
	}
}

// UpdateConfig handles PUT /api/v1/integration/config
func (h *Handlers) UpdateConfig() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := auth.GetUserClaims(r.Context())
		if claims == nil || claims.OrgID() == nil {
			respondWithError(w, http.StatusBadRequest, "Missing tenant")
			return
		}

		var req requests.UpdateIntegrationConfigRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		view, err := h.deps.Services.Config.Update(
			r.Context(), *claims.OrgID(),
			constants.BotMode(req.BotMode),
			req.ClientID, req.ClientSecret, req.BotToken,
			req.IsEnabled,
		)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}

		respondWithSuccess(w, http.StatusOK, view)
	}
}

// ValidateConfig handles POST /api/v1/integration/config/validate
func (h *Handlers) ValidateConfig() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := auth.GetUserClaims(r.Context())
		if claims == nil || claims.OrgID() == nil {
			respondWithError(w, http.StatusBadRequest, "Missing tenant")
			return
		}

		view, err := h.deps.Services.Config.Validate(r.Context(), *claims.OrgID())
		if err != nil {
			respondWithError(w, http.StatusInternalServerError, "Validation could not be recorded")
			return
		}

		respondWithSuccess(w, http.StatusOK, view)
	}
}
