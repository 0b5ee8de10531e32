package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"communityos/guildlink/internal/common"
	"communityos/guildlink/internal/constants"
	"communityos/guildlink/internal/db/repositories"
	"communityos/guildlink/internal/discord"
	"communityos/guildlink/internal/logging"
	gormModels "communityos/guildlink/internal/models/gorm"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Setup test database
func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	// Auto migrate
	if err := db.AutoMigrate(
		&gormModels.IntegrationConfig{},
		&gormModels.GuildConnection{},
		&gormModels.UserLink{},
		&gormModels.RoleRule{},
		&gormModels.SyncJob{},
		&gormModels.User{},
	); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}

	return db
}

func setupStateDB(t *testing.T) *sqlx.DB {
	db, err := sqlx.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open state database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	db.MustExec(`CREATE TABLE oauth_states (
		state TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		org_id TEXT,
		user_id TEXT,
		verifier TEXT NOT NULL,
		return_to TEXT NOT NULL DEFAULT '',
		callback_path TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	)`)

	return db
}

// fakeDiscord stands in for the remote API. memberStatus controls the
// membership check answer.
type fakeDiscord struct {
	memberStatus int
	memberRoles  []string

	// Non-zero forces bot identity fetches to fail with this status.
	botUserStatus int

	roleGrants  []string
	roleRevokes []string
}

func (f *fakeDiscord) server(t *testing.T) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/oauth2/token":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"access_token": "fake-access-token",
				"token_type":   "Bearer",
			})

		case r.URL.Path == "/users/@me":
			auth := r.Header.Get("Authorization")
			if strings.HasPrefix(auth, "Bot ") {
				if f.botUserStatus != 0 {
					w.WriteHeader(f.botUserStatus)
					return
				}
				json.NewEncoder(w).Encode(map[string]string{"id": "bot-1", "username": "linkbot"})
				return
			}
			json.NewEncoder(w).Encode(map[string]string{"id": "discord-123", "username": "tester"})

		case strings.Contains(r.URL.Path, "/roles/"):
			parts := strings.Split(r.URL.Path, "/roles/")
			if r.Method == http.MethodPut {
				f.roleGrants = append(f.roleGrants, parts[1])
			} else {
				f.roleRevokes = append(f.roleRevokes, parts[1])
			}
			w.WriteHeader(http.StatusNoContent)

		case strings.Contains(r.URL.Path, "/members/"):
			if f.memberStatus != http.StatusOK {
				w.WriteHeader(f.memberStatus)
				return
			}
			json.NewEncoder(w).Encode(map[string]interface{}{"roles": f.memberRoles})

		case strings.HasPrefix(r.URL.Path, "/guilds/"):
			json.NewEncoder(w).Encode(map[string]string{"id": "guild-1", "name": "Test Guild"})

		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

type linkFixture struct {
	svc       *LinkService
	gormDB    *gorm.DB
	stateDB   *sqlx.DB
	stateRepo *repositories.OAuthStateRepo
	linkRepo  *repositories.UserLinkRepo
	userRepo  *repositories.UserRepositoryGORM
	jobRepo   *repositories.SyncJobRepo
	connRepo  *repositories.GuildConnectionRepo
}

func setupLinkService(t *testing.T, fake *fakeDiscord) *linkFixture {
	logging.Init("development")

	srv := fake.server(t)
	t.Setenv("DISCORD_API_BASE_URL", srv.URL)
	t.Setenv("DISCORD_CLIENT_ID", "global-client")
	t.Setenv("DISCORD_CLIENT_SECRET", "global-secret")
	t.Setenv("DISCORD_BOT_TOKEN", "global-bot-token")
	t.Setenv("VAULT_KEY_MATERIAL", "test-key-material")
	t.Setenv("PUBLIC_BASE_URL", "https://app.example.com")
	t.Setenv("TENANT_DOMAIN_SUFFIX", "")

	gormDB := setupTestDB(t)
	stateDB := setupStateDB(t)

	stateRepo := repositories.NewOAuthStateRepo(stateDB)
	connRepo := repositories.NewGuildConnectionRepo(gormDB)
	linkRepo := repositories.NewUserLinkRepo(gormDB)
	userRepo := repositories.NewUserRepositoryGORM(gormDB)
	jobRepo := repositories.NewSyncJobRepo(gormDB)
	configRepo := repositories.NewIntegrationConfigRepo(gormDB)

	cache := common.NewCacheService(60, 120)
	creds := NewCredentialSource(configRepo, cache)

	svc := NewLinkService(
		stateRepo, connRepo, linkRepo, userRepo, jobRepo,
		creds, discord.NewClient(), common.NewEnvRedirectResolver(),
	)

	return &linkFixture{
		svc:       svc,
		gormDB:    gormDB,
		stateDB:   stateDB,
		stateRepo: stateRepo,
		linkRepo:  linkRepo,
		userRepo:  userRepo,
		jobRepo:   jobRepo,
		connRepo:  connRepo,
	}
}

func seedTenant(t *testing.T, f *linkFixture, orgID, userID string) {
	if err := f.gormDB.Create(&gormModels.User{ID: userID, OrgID: &orgID}).Error; err != nil {
		t.Fatalf("Failed to seed user: %v", err)
	}
	conn := &gormModels.GuildConnection{
		ID:               "conn-1",
		OrgID:            orgID,
		GuildID:          "guild-1",
		GuildName:        "Test Guild",
		BotModeAtConnect: constants.BotModeGlobal,
	}
	if err := f.connRepo.Upsert(context.Background(), conn); err != nil {
		t.Fatalf("Failed to seed guild connection: %v", err)
	}
}

func TestLinkService_StartLink_BuildsAuthorizeURL(t *testing.T) {
	f := setupLinkService(t, &fakeDiscord{memberStatus: http.StatusOK})
	orgID := "org-1"

	authorizeURL, state, err := f.svc.StartLink(context.Background(), &orgID, "user-1", "/settings", "")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	parsed, err := url.Parse(authorizeURL)
	if err != nil {
		t.Fatalf("Authorize URL does not parse: %v", err)
	}

	q := parsed.Query()
	if q.Get("client_id") != "global-client" {
		t.Errorf("Expected global client id, got %q", q.Get("client_id"))
	}
	if q.Get("state") != state {
		t.Errorf("URL state %q does not match returned state %q", q.Get("state"), state)
	}
	if q.Get("scope") != "identify" {
		t.Errorf("Tenant-scoped link should request identify only, got %q", q.Get("scope"))
	}
	if q.Get("redirect_uri") != "https://app.example.com/api/v1/link/callback" {
		t.Errorf("Unexpected redirect_uri %q", q.Get("redirect_uri"))
	}
}

func TestLinkService_CompleteLink_Success(t *testing.T) {
	f := setupLinkService(t, &fakeDiscord{memberStatus: http.StatusOK})
	ctx := context.Background()
	orgID := "org-1"
	seedTenant(t, f, orgID, "user-1")

	_, state, err := f.svc.StartLink(ctx, &orgID, "user-1", "/settings", "")
	if err != nil {
		t.Fatalf("StartLink failed: %v", err)
	}

	result, err := f.svc.CompleteLink(ctx, state, "auth-code")
	if err != nil {
		t.Fatalf("CompleteLink failed: %v", err)
	}

	if result.DiscordUserID != "discord-123" {
		t.Errorf("Expected discord-123, got %q", result.DiscordUserID)
	}
	if result.GuildID != "guild-1" {
		t.Errorf("Expected guild-1, got %q", result.GuildID)
	}
	if result.ReturnTo != "/settings" {
		t.Errorf("Expected return_to /settings, got %q", result.ReturnTo)
	}

	link, err := f.linkRepo.GetByUser(ctx, &orgID, "user-1")
	if err != nil {
		t.Fatalf("GetByUser failed: %v", err)
	}
	if link == nil || link.DiscordUserID != "discord-123" {
		t.Fatalf("Expected persisted link to discord-123, got %+v", link)
	}

	user, err := f.userRepo.GetByID(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if !user.DiscordLinked {
		t.Error("Expected discord_linked flag to be set")
	}

	jobs, err := f.jobRepo.ListByOrg(ctx, orgID, 10)
	if err != nil {
		t.Fatalf("ListByOrg failed: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("Expected one enqueued sync job, got %d", len(jobs))
	}
	if jobs[0].Status != constants.JobStatusPending {
		t.Errorf("Expected pending job, got %s", jobs[0].Status)
	}
}

func TestLinkService_CompleteLink_MembershipDenied(t *testing.T) {
	f := setupLinkService(t, &fakeDiscord{memberStatus: http.StatusNotFound})
	ctx := context.Background()
	orgID := "org-1"
	seedTenant(t, f, orgID, "user-1")

	_, state, err := f.svc.StartLink(ctx, &orgID, "user-1", "", "")
	if err != nil {
		t.Fatalf("StartLink failed: %v", err)
	}

	_, err = f.svc.CompleteLink(ctx, state, "auth-code")
	if err != ErrMembershipDenied {
		t.Fatalf("Expected ErrMembershipDenied, got %v", err)
	}

	// A denied link must leave no partial association behind.
	link, err := f.linkRepo.GetByUser(ctx, &orgID, "user-1")
	if err != nil {
		t.Fatalf("GetByUser failed: %v", err)
	}
	if link != nil {
		t.Errorf("Expected no link row, got %+v", link)
	}

	jobs, _ := f.jobRepo.ListByOrg(ctx, orgID, 10)
	if len(jobs) != 0 {
		t.Errorf("Expected no sync jobs, got %d", len(jobs))
	}
}

func TestLinkService_CompleteLink_MembershipTransportError(t *testing.T) {
	f := setupLinkService(t, &fakeDiscord{memberStatus: http.StatusInternalServerError})
	ctx := context.Background()
	orgID := "org-1"
	seedTenant(t, f, orgID, "user-1")

	_, state, err := f.svc.StartLink(ctx, &orgID, "user-1", "", "")
	if err != nil {
		t.Fatalf("StartLink failed: %v", err)
	}

	_, err = f.svc.CompleteLink(ctx, state, "auth-code")
	if err == ErrMembershipDenied || err == nil {
		t.Fatalf("A 500 must surface as a transport error, got %v", err)
	}

	var transportErr *discord.TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("Expected TransportError, got %T: %v", err, err)
	}
}

func TestLinkService_CompleteLink_ReplayedState(t *testing.T) {
	f := setupLinkService(t, &fakeDiscord{memberStatus: http.StatusOK})
	ctx := context.Background()
	orgID := "org-1"
	seedTenant(t, f, orgID, "user-1")

	_, state, err := f.svc.StartLink(ctx, &orgID, "user-1", "", "")
	if err != nil {
		t.Fatalf("StartLink failed: %v", err)
	}

	if _, err := f.svc.CompleteLink(ctx, state, "auth-code"); err != nil {
		t.Fatalf("First callback failed: %v", err)
	}

	_, err = f.svc.CompleteLink(ctx, state, "auth-code")
	if err != ErrStateInvalid {
		t.Fatalf("Replayed state must fail with ErrStateInvalid, got %v", err)
	}
}

func TestLinkService_CompleteLink_UnknownState(t *testing.T) {
	f := setupLinkService(t, &fakeDiscord{memberStatus: http.StatusOK})

	_, err := f.svc.CompleteLink(context.Background(), "never-issued", "auth-code")
	if err != ErrStateInvalid {
		t.Fatalf("Expected ErrStateInvalid, got %v", err)
	}
}

func TestLinkService_CompleteLink_ExpiredState(t *testing.T) {
	f := setupLinkService(t, &fakeDiscord{memberStatus: http.StatusOK})
	ctx := context.Background()
	orgID := "org-1"
	seedTenant(t, f, orgID, "user-1")

	_, state, err := f.svc.StartLink(ctx, &orgID, "user-1", "", "")
	if err != nil {
		t.Fatalf("StartLink failed: %v", err)
	}

	// Age the row past the TTL.
	aged := time.Now().UTC().Add(-(constants.OAuthStateTTLMinutes + 5) * time.Minute)
	f.stateDB.MustExec(`UPDATE oauth_states SET created_at = ? WHERE state = ?`, aged, state)

	_, err = f.svc.CompleteLink(ctx, state, "auth-code")
	if err != ErrStateExpired {
		t.Fatalf("Expected ErrStateExpired, got %v", err)
	}

	// The expired row is consumed on the way out; a retry sees an
	// unknown token, not a second expiry.
	_, err = f.svc.CompleteLink(ctx, state, "auth-code")
	if err != ErrStateInvalid {
		t.Fatalf("Expected ErrStateInvalid on retry, got %v", err)
	}
}

func TestLinkService_CompleteLink_NoGuildConnected(t *testing.T) {
	f := setupLinkService(t, &fakeDiscord{memberStatus: http.StatusOK})
	ctx := context.Background()
	orgID := "org-1"
	// No guild connection seeded for the tenant.
	if err := f.gormDB.Create(&gormModels.User{ID: "user-1", OrgID: &orgID}).Error; err != nil {
		t.Fatalf("Failed to seed user: %v", err)
	}

	_, state, err := f.svc.StartLink(ctx, &orgID, "user-1", "", "")
	if err != nil {
		t.Fatalf("StartLink failed: %v", err)
	}

	_, err = f.svc.CompleteLink(ctx, state, "auth-code")
	if err != ErrNoGuildConnected {
		t.Fatalf("Expected ErrNoGuildConnected, got %v", err)
	}
}

func TestLinkService_InstallFlow(t *testing.T) {
	f := setupLinkService(t, &fakeDiscord{memberStatus: http.StatusOK})
	ctx := context.Background()

	authorizeURL, state, err := f.svc.StartInstall(ctx, "org-1", "/admin", "")
	if err != nil {
		t.Fatalf("StartInstall failed: %v", err)
	}

	parsed, _ := url.Parse(authorizeURL)
	if scope := parsed.Query().Get("scope"); scope != "identify bot" {
		t.Errorf("Install flow must request the bot scope, got %q", scope)
	}

	result, err := f.svc.CompleteInstall(ctx, state, "auth-code", "guild-1")
	if err != nil {
		t.Fatalf("CompleteInstall failed: %v", err)
	}
	if result.GuildName != "Test Guild" {
		t.Errorf("Expected guild name from API, got %q", result.GuildName)
	}

	conn, err := f.connRepo.Latest(ctx, "org-1")
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if conn == nil || conn.GuildID != "guild-1" {
		t.Fatalf("Expected persisted connection to guild-1, got %+v", conn)
	}
	if conn.BotModeAtConnect != constants.BotModeGlobal {
		t.Errorf("Expected frozen global mode, got %s", conn.BotModeAtConnect)
	}
}

func TestLinkService_CompleteLink_WrongStateKind(t *testing.T) {
	f := setupLinkService(t, &fakeDiscord{memberStatus: http.StatusOK})
	ctx := context.Background()

	_, state, err := f.svc.StartInstall(ctx, "org-1", "", "")
	if err != nil {
		t.Fatalf("StartInstall failed: %v", err)
	}

	_, err = f.svc.CompleteLink(ctx, state, "auth-code")
	if err != ErrStateInvalid {
		t.Fatalf("Install state in the link callback must fail, got %v", err)
	}
}
