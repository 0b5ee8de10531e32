package discord

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Client talks to the Discord HTTP API. One instance is shared across
// requests; per-call credentials (bearer or bot tokens) are passed in by
// the caller and never stored on the client.
type Client struct {
	BaseURL string
	Client  *http.Client

	// Discord applies per-bot rate limits; a coarse client-side limiter
	// keeps bursts of role mutations under them.
	limiter *rate.Limiter
}

// NewClient creates a Discord API client. DISCORD_API_BASE_URL overrides
// the default, which the tests use to point at a local httptest server.
func NewClient() *Client {
	baseURL := os.Getenv("DISCORD_API_BASE_URL")
	if baseURL == "" {
		baseURL = "https://discord.com/api/v10"
	}

	return &Client{
		BaseURL: baseURL,
		Client: &http.Client{
			Timeout: 10 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(25), 50),
	}
}

// TokenResponse is the payload returned by the token endpoint.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int    `json:"expires_in,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// UserResponse is the subset of GET /users/@me this service needs.
type UserResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// GuildResponse is the subset of GET /guilds/{id} this service needs.
type GuildResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// MemberResponse is the subset of a guild member object this service needs.
type MemberResponse struct {
	Roles []string `json:"roles"`
}

// AuthorizeURL builds the user-facing authorization URL. prompt=consent
// forces the consent screen even for previously authorized users, so a
// re-link always produces a fresh code.
func (c *Client) AuthorizeURL(clientID, redirectURI, scope, state string) string {
	q := url.Values{}
	q.Set("client_id", clientID)
	q.Set("response_type", "code")
	q.Set("redirect_uri", redirectURI)
	q.Set("scope", scope)
	q.Set("state", state)
	q.Set("prompt", "consent")

	return c.BaseURL + "/oauth2/authorize?" + q.Encode()
}

// ExchangeCode trades an authorization code for an access token. Any
// non-2xx answer becomes a TokenExchangeError carrying status and a
// truncated body.
func (c *Client) ExchangeCode(ctx context.Context, clientID, clientSecret, code, redirectURI string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("client_id", clientID)
	form.Set("client_secret", clientSecret)
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", redirectURI)

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+"/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	body, status, err := c.do(req)
	if err != nil {
		return nil, err
	}

	if status < 200 || status >= 300 {
		return nil, &TokenExchangeError{Status: status, Body: truncateBody(body)}
	}

	var token TokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}

	return &token, nil
}

// CurrentUser fetches the identity the access token belongs to.
func (c *Client) CurrentUser(ctx context.Context, accessToken string) (*UserResponse, error) {
	var user UserResponse
	if err := c.doGET(ctx, "/users/@me", "Bearer "+accessToken, "identity fetch", &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// BotUser fetches the identity behind a bot token. Used to validate
// tenant-supplied credentials before they are saved.
func (c *Client) BotUser(ctx context.Context, botToken string) (*UserResponse, error) {
	var user UserResponse
	if err := c.doGET(ctx, "/users/@me", "Bot "+botToken, "bot identity fetch", &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Guild fetches basic guild metadata using bot authorization.
func (c *Client) Guild(ctx context.Context, botToken, guildID string) (*GuildResponse, error) {
	var guild GuildResponse
	endpoint := fmt.Sprintf("/guilds/%s", guildID)
	if err := c.doGET(ctx, endpoint, "Bot "+botToken, "guild fetch", &guild); err != nil {
		return nil, err
	}
	return &guild, nil
}

// GuildMember checks whether the Discord user belongs to the guild.
// 404 is a legitimate business answer (not a member), never an error.
func (c *Client) GuildMember(ctx context.Context, botToken, guildID, discordUserID string) (bool, *MemberResponse, error) {
	endpoint := fmt.Sprintf("/guilds/%s/members/%s", guildID, discordUserID)

	req, err := http.NewRequestWithContext(ctx, "GET", c.BaseURL+endpoint, nil)
	if err != nil {
		return false, nil, fmt.Errorf("failed to build member request: %w", err)
	}
	req.Header.Set("Authorization", "Bot "+botToken)

	body, status, err := c.do(req)
	if err != nil {
		return false, nil, err
	}

	switch {
	case status == http.StatusNotFound:
		return false, nil, nil
	case status < 200 || status >= 300:
		return false, nil, &TransportError{Status: status, Body: truncateBody(body), Operation: "membership check"}
	}

	var member MemberResponse
	if err := json.Unmarshal(body, &member); err != nil {
		return false, nil, fmt.Errorf("failed to decode member response: %w", err)
	}

	return true, &member, nil
}

// AddMemberRole grants a role to a guild member.
func (c *Client) AddMemberRole(ctx context.Context, botToken, guildID, discordUserID, roleID string) error {
	endpoint := fmt.Sprintf("/guilds/%s/members/%s/roles/%s", guildID, discordUserID, roleID)
	return c.doMutate(ctx, "PUT", endpoint, botToken, "role grant")
}

// RemoveMemberRole revokes a role from a guild member.
func (c *Client) RemoveMemberRole(ctx context.Context, botToken, guildID, discordUserID, roleID string) error {
	endpoint := fmt.Sprintf("/guilds/%s/members/%s/roles/%s", guildID, discordUserID, roleID)
	return c.doMutate(ctx, "DELETE", endpoint, botToken, "role revoke")
}

// ============================================================================
// HTTP Helper Methods
// ============================================================================

func (c *Client) doGET(ctx context.Context, endpoint, authorization, operation string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.BaseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", authorization)

	body, status, err := c.do(req)
	if err != nil {
		return err
	}

	if status < 200 || status >= 300 {
		return &TransportError{Status: status, Body: truncateBody(body), Operation: operation}
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

func (c *Client) doMutate(ctx context.Context, method, endpoint, botToken, operation string) error {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bot "+botToken)

	body, status, err := c.do(req)
	if err != nil {
		return err
	}

	if status < 200 || status >= 300 {
		return &TransportError{Status: status, Body: truncateBody(body), Operation: operation}
	}

	return nil
}

func (c *Client) do(req *http.Request) ([]byte, int, error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return nil, 0, fmt.Errorf("rate limiter: %w", err)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}

	return body, resp.StatusCode, nil
}
