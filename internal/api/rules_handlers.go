package api

import (
	"encoding/json"
	"net/http"

	"communityos/guildlink/internal/auth"
	"communityos/guildlink/internal/constants"
	"communityos/guildlink/internal/db/repositories"
	"communityos/guildlink/internal/models/dtos/requests"
	"communityos/guildlink/internal/models/dtos/responses"
	models "communityos/guildlink/internal/models/gorm"

	"github.com/go-chi/chi/v5"
)

func parseRuleKind(raw string) (constants.RuleKind, bool) {
	switch constants.RuleKind(raw) {
	case constants.RuleKindProduct:
		return constants.RuleKindProduct, true
	case constants.RuleKindMarketingTag:
		return constants.RuleKindMarketingTag, true
	}
	return "", false
}

// ReplaceRules handles PUT /api/v1/rules/{kind}/{sourceId}. The request
// body is the complete rule set for the scope; it replaces whatever was
// there, and an empty set clears the scope.
func (h *Handlers) ReplaceRules() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := auth.GetUserClaims(r.Context())
		if claims == nil || claims.OrgID() == nil {
			respondWithError(w, http.StatusBadRequest, "Missing tenant")
			return
		}

		kind, ok := parseRuleKind(chi.URLParam(r, "kind"))
		if !ok {
			respondWithError(w, http.StatusBadRequest, "Unknown rule kind")
			return
		}

		sourceID := chi.URLParam(r, "sourceId")
		if sourceID == "" {
			respondWithError(w, http.StatusBadRequest, "Missing source id")
			return
		}

		var req requests.ReplaceRulesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		rules := make([]models.RoleRule, 0, len(req.Rules))
		for _, input := range req.Rules {
			if input.RoleID == "" {
				respondWithError(w, http.StatusBadRequest, "Every rule needs a role_id")
				return
			}
			rules = append(rules, models.RoleRule{
				GuildID:   input.GuildID,
				RoleID:    input.RoleID,
				RoleName:  input.RoleName,
				IsEnabled: input.IsEnabled,
			})
		}

		scope := repositories.RuleScope{
			OrgID:    *claims.OrgID(),
			Kind:     kind,
			SourceID: sourceID,
		}

		if err := h.deps.Repo.RoleRules.ReplaceRules(r.Context(), scope, rules); err != nil {
			respondWithError(w, http.StatusInternalServerError, "Failed to replace rules")
			return
		}

		views := ruleViews(rules)
		respondWithSuccess(w, http.StatusOK, &views)
	}
}

// ListRules handles GET /api/v1/rules/{kind}/{sourceId}
func (h *Handlers) ListRules() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := auth.GetUserClaims(r.Context())
		if claims == nil || claims.OrgID() == nil {
			respondWithError(w, http.StatusBadRequest, "Missing tenant")
			return
		}

		kind, ok := parseRuleKind(chi.URLParam(r, "kind"))
		if !ok {
			respondWithError(w, http.StatusBadRequest, "Unknown rule kind")
			return
		}

		scope := repositories.RuleScope{
			OrgID:    *claims.OrgID(),
			Kind:     kind,
			SourceID: chi.URLParam(r, "sourceId"),
		}

		rules, err := h.deps.Repo.RoleRules.ListByScope(r.Context(), scope)
		if err != nil {
			respondWithError(w, http.StatusInternalServerError, "Failed to list rules")
			return
		}

		views := ruleViews(rules)
		respondWithSuccess(w, http.StatusOK, &views)
	}
}

func ruleViews(rules []models.RoleRule) []responses.RoleRuleView {
	views := make([]responses.RoleRuleView, 0, len(rules))
	for _, rule := range rules {
		views = append(views, responses.RoleRuleView{
			ID:        rule.ID,
			Kind:      string(rule.Kind),
			SourceID:  rule.SourceID,
			GuildID:   rule.GuildID,
			RoleID:    rule.RoleID,
			RoleName:  rule.RoleName,
			IsEnabled: rule.IsEnabled,
		})
	}
	return views
}
