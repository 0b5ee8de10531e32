package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"communityos/guildlink/internal/auth"
	"communityos/guildlink/internal/constants"
	"communityos/guildlink/internal/discord"
	"communityos/guildlink/internal/logging"
	"communityos/guildlink/internal/models/dtos/requests"
	"communityos/guildlink/internal/models/dtos/responses"
	"communityos/guildlink/internal/services"
)

const returnTokenTTL = 15 * time.Minute

// StartLink handles POST /api/v1/link/start
func (h *Handlers) StartLink() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := auth.GetUserClaims(r.Context())
		if claims == nil || claims.UserID() == "" {
			respondWithError(w, http.StatusUnauthorized, "Missing acting user")
			return
		}

		// An empty body is fine; return_to is optional.
		var req requests.StartLinkRequest
		_ = json.NewDecoder(r.Body).Decode(&req)

		authorizeURL, state, err := h.deps.Services.Link.StartLink(
			r.Context(), claims.OrgID(), claims.UserID(), req.ReturnTo, req.CallbackPath)
		if err != nil {
			h.respondLinkError(w, err)
			return
		}

		respondWithSuccess(w, http.StatusOK, &responses.StartLinkResponse{
			URL:   authorizeURL,
			State: state,
		})
	}
}

// LinkCallback handles GET /api/v1/link/callback. This is the browser
// redirect from Discord; it is authenticated by the state token alone.
func (h *Handlers) LinkCallback() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		if denied := q.Get("error"); denied != "" {
			respondWithError(w, http.StatusBadRequest, "Authorization was denied: "+denied)
			return
		}

		state := q.Get("state")
		code := q.Get("code")
		if state == "" || code == "" {
			respondWithError(w, http.StatusBadRequest, "Missing state or code")
			return
		}

		result, err := h.deps.Services.Link.CompleteLink(r.Context(), state, code)
		if err != nil {
			h.deps.Metrics.LinkFlowsTotal.WithLabelValues(linkOutcome(err)).Inc()
			h.respondLinkError(w, err)
			return
		}
		h.deps.Metrics.LinkFlowsTotal.WithLabelValues("success").Inc()

		if result.ReturnTo != "" {
			h.redirectSigned(w, r, result.UserID, result.OrgID, result.ReturnTo)
			return
		}

		respondWithSuccess(w, http.StatusOK, &responses.LinkCompleteResponse{
			OrgID:         result.OrgID,
			UserID:        result.UserID,
			DiscordUserID: result.DiscordUserID,
			GuildID:       result.GuildID,
		})
	}
}

// StartInstall handles POST /api/v1/install/start
func (h *Handlers) StartInstall() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := auth.GetUserClaims(r.Context())
		if claims == nil || claims.OrgID() == nil {
			respondWithError(w, http.StatusBadRequest, "Guild install requires a tenant")
			return
		}

		var req requests.StartInstallRequest
		_ = json.NewDecoder(r.Body).Decode(&req)

		authorizeURL, state, err := h.deps.Services.Link.StartInstall(
			r.Context(), *claims.OrgID(), req.ReturnTo, req.CallbackPath)
		if err != nil {
			h.respondLinkError(w, err)
			return
		}

		respondWithSuccess(w, http.StatusOK, &responses.StartLinkResponse{
			URL:   authorizeURL,
			State: state,
		})
	}
}

// InstallCallback handles GET /api/v1/install/callback. Discord appends
// guild_id when the bot was added to a server.
func (h *Handlers) InstallCallback() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		if denied := q.Get("error"); denied != "" {
			respondWithError(w, http.StatusBadRequest, "Authorization was denied: "+denied)
			return
		}

		result, err := h.deps.Services.Link.CompleteInstall(
			r.Context(), q.Get("state"), q.Get("code"), q.Get("guild_id"))
		if err != nil {
			h.deps.Metrics.LinkFlowsTotal.WithLabelValues(linkOutcome(err)).Inc()
			h.respondLinkError(w, err)
			return
		}
		h.deps.Metrics.LinkFlowsTotal.WithLabelValues("success").Inc()

		if result.ReturnTo != "" {
			http.Redirect(w, r, result.ReturnTo, http.StatusFound)
			return
		}

		respondWithSuccess(w, http.StatusOK, &responses.InstallCompleteResponse{
			OrgID:     result.OrgID,
			GuildID:   result.GuildID,
			GuildName: result.GuildName,
		})
	}
}

// ListConnections handles GET /api/v1/guilds
func (h *Handlers) ListConnections() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := auth.GetUserClaims(r.Context())
		if claims == nil || claims.OrgID() == nil {
			respondWithError(w, http.StatusBadRequest, "Missing tenant")
			return
		}

		conns, err := h.deps.Repo.Connections.ListByOrgID(r.Context(), *claims.OrgID())
		if err != nil {
			respondWithError(w, http.StatusInternalServerError, "Failed to list connections")
			return
		}

		views := make([]responses.InstallCompleteResponse, 0, len(conns))
		for _, conn := range conns {
			views = append(views, responses.InstallCompleteResponse{
				OrgID:     conn.OrgID,
				GuildID:   conn.GuildID,
				GuildName: conn.GuildName,
			})
		}

		respondWithSuccess(w, http.StatusOK, &views)
	}
}

// VerifyLinkToken handles POST /api/v1/link/verify. The destination backend
// posts the link_token it received on the redirect; a valid token is marked
// used so the same URL cannot be replayed.
func (h *Handlers) VerifyLinkToken() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req requests.VerifyLinkTokenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
			respondWithError(w, http.StatusBadRequest, "Missing token")
			return
		}

		ticket, err := h.deps.Services.URLSigner.ValidateToken(r.Context(), req.Token)
		if err != nil {
			respondWithError(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		if err := h.deps.Services.URLSigner.MarkTokenAsUsed(r.Context(), ticket.TokenID); err != nil {
			logging.Error("Failed to mark link token used", "error", err.Error())
			respondWithError(w, http.StatusInternalServerError, "Internal error")
			return
		}

		respondWithSuccess(w, http.StatusOK, &responses.LinkTokenView{
			UserID:   ticket.UserID,
			OrgID:    ticket.OrgID,
			ReturnTo: ticket.ReturnTo,
		})
	}
}

// redirectSigned wraps the return URL in a single-use signed token so the
// destination can trust who just completed the link.
func (h *Handlers) redirectSigned(w http.ResponseWriter, r *http.Request, userID string, orgID *string, returnTo string) {
	org := ""
	if orgID != nil {
		org = *orgID
	}

	token, err := h.deps.Services.URLSigner.SignReturnURL(userID, org, returnTo, returnTokenTTL)
	if err != nil {
		logging.Error("Failed to sign return URL", "error", err.Error())
		// The link itself succeeded; fall back to a plain redirect.
		http.Redirect(w, r, returnTo, http.StatusFound)
		return
	}

	target, err := url.Parse(returnTo)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid return URL")
		return
	}
	q := target.Query()
	q.Set("link_token", token)
	target.RawQuery = q.Encode()

	http.Redirect(w, r, target.String(), http.StatusFound)
}

// linkOutcome buckets a callback failure for the flow counter.
func linkOutcome(err error) string {
	switch {
	case errors.Is(err, services.ErrStateInvalid),
		errors.Is(err, services.ErrStateExpired),
		errors.Is(err, services.ErrMembershipDenied):
		return "denied"
	default:
		return "error"
	}
}

// respondLinkError maps flow errors onto stable HTTP answers.
func (h *Handlers) respondLinkError(w http.ResponseWriter, err error) {
	var exchangeErr *discord.TokenExchangeError
	var transportErr *discord.TransportError

	switch {
	case errors.Is(err, services.ErrStateInvalid):
		respondWithError(w, http.StatusBadRequest, constants.MsgDuplicateCallback)
	case errors.Is(err, services.ErrStateExpired):
		respondWithError(w, http.StatusBadRequest, constants.StatusStateExpired)
	case errors.Is(err, services.ErrMembershipDenied):
		respondWithError(w, http.StatusForbidden, constants.MsgJoinCommunityFirst)
	case errors.Is(err, services.ErrNoGuildConnected):
		respondWithError(w, http.StatusConflict, constants.MsgNoGuildConnected)
	case errors.Is(err, services.ErrIntegrationDisabled):
		respondWithError(w, http.StatusConflict, constants.StatusConfigMissing)
	case errors.As(err, &exchangeErr):
		respondWithError(w, http.StatusBadGateway, constants.StatusExchangeFailed)
	case errors.As(err, &transportErr):
		respondWithError(w, http.StatusBadGateway, "Upstream request failed")
	default:
		logging.Error("Link flow error", "error", err.Error())
		respondWithError(w, http.StatusInternalServerError, "Internal error")
	}
}
