package common

import (
	"fmt"
	"net/url"
	"os"
	"strings"
)

// RedirectResolver computes the exact callback URL for a tenant/path pair.
// OAuth2 requires the redirect_uri at token exchange to byte-match the one
// sent to the authorize endpoint, so both invocations of the flow go
// through this single implementation. Host derivation is owned outside
// this core; this default resolves from the environment.
type RedirectResolver interface {
	CallbackURL(orgID *string, callbackPath string) (string, error)
}

// EnvRedirectResolver derives callback URLs from PUBLIC_BASE_URL, with an
// optional per-tenant subdomain when TENANT_DOMAIN_SUFFIX is set.
type EnvRedirectResolver struct {
	baseURL      string
	tenantSuffix string
}

func NewEnvRedirectResolver() *EnvRedirectResolver {
	baseURL := os.Getenv("PUBLIC_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	return &EnvRedirectResolver{
		baseURL:      strings.TrimRight(baseURL, "/"),
		tenantSuffix: os.Getenv("TENANT_DOMAIN_SUFFIX"),
	}
}

// CallbackURL builds the absolute callback URL. The path is normalized so
// "/link/callback" and "link/callback" resolve identically on both legs
// of the flow.
func (r *EnvRedirectResolver) CallbackURL(orgID *string, callbackPath string) (string, error) {
	if callbackPath == "" {
		return "", fmt.Errorf("callback path cannot be empty")
	}
	if !strings.HasPrefix(callbackPath, "/") {
		callbackPath = "/" + callbackPath
	}

	base := r.baseURL
	if orgID != nil && r.tenantSuffix != "" {
		parsed, err := url.Parse(r.baseURL)
		if err != nil {
			return "", fmt.Errorf("invalid base URL: %w", err)
		}
		parsed.Host = *orgID + "." + r.tenantSuffix
		base = strings.TrimRight(parsed.String(), "/")
	}

	return base + callbackPath, nil
}
