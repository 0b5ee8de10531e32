package middleware

import (
	"net/http"

	"communityos/guildlink/internal/auth"
	"communityos/guildlink/internal/db/repositories"
)

// AuthMiddleware authenticates backend callers by API key. The platform
// core is the only intended caller; it asserts the acting tenant and user
// through the X-Org-Id and X-User-Id headers, which are trusted once the
// key checks out.
func AuthMiddleware(keysRepo *repositories.KeysRepo) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey := r.Header.Get("X-API-Key")
			if apiKey == "" {
				http.Error(w, "Unauthorized. Missing API Key", http.StatusUnauthorized)
				return
			}

			keyRes, err := keysRepo.GetStatus(r.Context(), apiKey)
			if err != nil {
				http.Error(w, "Unauthorized. Invalid API Key", http.StatusUnauthorized)
				return
			}
			if !keyRes.Status {
				http.Error(w, "Unauthorized. Inactive API Key", http.StatusUnauthorized)
				return
			}

			var orgID *string
			if v := r.Header.Get("X-Org-Id"); v != "" {
				orgID = &v
			}

			claims := &auth.APIKeyClaims{
				UserIDValue: r.Header.Get("X-User-Id"),
				OrgIDValue:  orgID,
				ApiKey:      apiKey,
			}

			ctx := auth.SetUserClaims(r.Context(), claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
