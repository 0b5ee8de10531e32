package auth

// UserClaims is the caller identity attached to every authenticated
// request. OrgID is nil for platform-wide calls that carry no tenant.
type UserClaims interface {
	UserID() string
	OrgID() *string
	Source() string
}

// APIKeyClaims identifies a trusted backend caller. The platform core
// authenticates with an API key and asserts the acting tenant and user
// through headers.
type APIKeyClaims struct {
	UserIDValue string
	OrgIDValue  *string
	ApiKey      string
}

func (c *APIKeyClaims) UserID() string { return c.UserIDValue }
func (c *APIKeyClaims) OrgID() *string { return c.OrgIDValue }
func (c *APIKeyClaims) Source() string { return "API_KEY" }

// SignedURLClaims identifies a browser arriving through a signed
// single-use return token.
type SignedURLClaims struct {
	UserIDValue string
	OrgIDValue  *string
	TokenID     string
}

func (c *SignedURLClaims) UserID() string { return c.UserIDValue }
func (c *SignedURLClaims) OrgID() *string { return c.OrgIDValue }
func (c *SignedURLClaims) Source() string { return "SIGNED_URL" }
