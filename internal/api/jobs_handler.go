package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"communityos/guildlink/internal/auth"
	"communityos/guildlink/internal/constants"
	"communityos/guildlink/internal/models/dtos/requests"
	"communityos/guildlink/internal/models/dtos/responses"
	models "communityos/guildlink/internal/models/gorm"

	"github.com/google/uuid"
)

// EnqueueSync handles POST /api/v1/sync. Entitlement-changing events on
// the platform side land here; processing happens asynchronously.
func (h *Handlers) EnqueueSync() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := auth.GetUserClaims(r.Context())
		if claims == nil || claims.OrgID() == nil {
			respondWithError(w, http.StatusBadRequest, "Missing tenant")
			return
		}

		var req requests.EnqueueSyncRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if req.UserID == "" {
			respondWithError(w, http.StatusBadRequest, "Missing user_id")
			return
		}

		reason := constants.SyncReasonManual
		switch constants.SyncReason(req.Reason) {
		case constants.SyncReasonPurchase:
			reason = constants.SyncReasonPurchase
		case constants.SyncReasonTagChange:
			reason = constants.SyncReasonTagChange
		}

		payload, err := json.Marshal(map[string]interface{}{"source_ids": req.SourceIDs})
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid source ids")
			return
		}

		job := &models.SyncJob{
			ID:      uuid.New().String(),
			OrgID:   *claims.OrgID(),
			UserID:  req.UserID,
			Reason:  reason,
			Payload: string(payload),
		}

		if err := h.deps.Repo.SyncJobs.Enqueue(r.Context(), job); err != nil {
			respondWithError(w, http.StatusInternalServerError, "Failed to enqueue sync job")
			return
		}

		respondWithSuccess(w, http.StatusAccepted, jobView(job))
	}
}

// ListJobs handles GET /api/v1/jobs
func (h *Handlers) ListJobs() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := auth.GetUserClaims(r.Context())
		if claims == nil || claims.OrgID() == nil {
			respondWithError(w, http.StatusBadRequest, "Missing tenant")
			return
		}

		limit := 50
		if raw := r.URL.Query().Get("limit"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
				limit = n
			}
		}

		jobs, err := h.deps.Repo.SyncJobs.ListByOrg(r.Context(), *claims.OrgID(), limit)
		if err != nil {
			respondWithError(w, http.StatusInternalServerError, "Failed to list jobs")
			return
		}

		views := make([]responses.SyncJobView, 0, len(jobs))
		for i := range jobs {
			views = append(views, *jobView(&jobs[i]))
		}

		respondWithSuccess(w, http.StatusOK, &views)
	}
}

func jobView(job *models.SyncJob) *responses.SyncJobView {
	return &responses.SyncJobView{
		ID:        job.ID,
		OrgID:     job.OrgID,
		UserID:    job.UserID,
		Reason:    string(job.Reason),
		Status:    string(job.Status),
		Attempts:  job.Attempts,
		LastError: job.LastError,
		CreatedAt: job.CreatedAt,
		UpdatedAt: job.UpdatedAt,
		NextRunAt: job.NextAttemptAt,
	}
}
