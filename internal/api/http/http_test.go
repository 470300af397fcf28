package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-tracker/internal/api/http/handlers"
	"github.com/spec-kit/ticket-tracker/internal/config"
	"github.com/spec-kit/ticket-tracker/internal/observability"
	"github.com/spec-kit/ticket-tracker/internal/domain"
	"github.com/spec-kit/ticket-tracker/internal/persistence"
	"github.com/spec-kit/ticket-tracker/internal/repository"
	"github.com/spec-kit/ticket-tracker/internal/repository/memory"
	"github.com/spec-kit/ticket-tracker/internal/router"
	"github.com/spec-kit/ticket-tracker/internal/screens"
	"github.com/spec-kit/ticket-tracker/internal/service"
	"github.com/spec-kit/ticket-tracker/internal/session"
)

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

type modeBody struct {
	State    string   `json:"state"`
	Role     string   `json:"role"`
	Screens  []string `json:"screens"`
	Current  string   `json:"current"`
	Identity *struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"identity"`
}

type ticketBody struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Status     string     `json:"status"`
	ClientID   string     `json:"client_id"`
	ClientName string     `json:"client_name"`
	UpdatedAt  *time.Time `json:"updated_at"`
}

type listBody struct {
	Tickets    []ticketBody `json:"tickets"`
	Loading    bool         `json:"loading"`
	Refreshing bool         `json:"refreshing"`
}

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	return newTestAppWith(t, memory.NewProfileStore())
}

func newTestAppWith(t *testing.T, profiles repository.ProfileRepository) *fiber.App {
	t.Helper()
	cfg := config.Config{
		Auth:    config.AuthConfig{MinPasswordLength: 6, BcryptCost: 4},
		Tracker: config.TrackerConfig{RoleLookupRetries: 3, RoleLookupBackoffMillis: 10},
	}
	logger := zap.NewNop()
	metrics := observability.NewMetrics()

	store := session.NewStore(session.Options{BcryptCost: 4}, session.Dependencies{Identities: memory.NewIdentityStore()})
	authService := service.NewAuthService(cfg, service.AuthDependencies{Session: store, Profiles: profiles, Metrics: metrics})
	ticketService := service.NewTicketService(service.TicketDependencies{
		Session:     store,
		TicketRepo:  memory.NewTicketStore(),
		HistoryRepo: memory.NewHistoryStore(),
		ProfileRepo: profiles,
		Metrics:     metrics,
	})

	modes := router.New(store, authService, logger)
	shell := screens.NewShell(modes, ticketService, logger)
	shell.Start(context.Background())
	t.Cleanup(shell.Stop)
	require.NoError(t, modes.Start(context.Background()))
	t.Cleanup(modes.Stop)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := modes.Await(ctx, router.StateUnauthenticated)
	require.NoError(t, err)

	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, 0)
	RegisterRoutes(app, RouteConfig{
		Health:   handlers.NewHealthHandler("ticket-tracker", "test", config.BackendMemory, &persistence.Postgres{}, &persistence.Redis{}),
		Auth:     handlers.NewAuthHandler(authService, modes, shell, 2*time.Second),
		Tickets:  handlers.NewTicketsHandler(ticketService, shell),
		Admin:    handlers.NewAdminTicketsHandler(ticketService, shell),
		Modes:    modes,
		Registry: metrics.Registry(),
	})
	return app
}

func do(t *testing.T, app *fiber.App, method, path string, body any) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, 5000)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var env envelope
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	}
	return resp.StatusCode, env
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

func register(t *testing.T, app *fiber.App, email, name, role string) modeBody {
	t.Helper()
	status, env := do(t, app, http.MethodPost, "/auth/register", fiber.Map{
		"email": email, "password": "secret123", "name": name, "role": role,
	})
	require.Equal(t, http.StatusCreated, status, "%+v", env.Error)
	return decode[modeBody](t, env)
}

func TestTicketLifecycleOverHTTP(t *testing.T) {
	app := newTestApp(t)

	status, env := do(t, app, http.MethodGet, "/app/mode", nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "unauthenticated", decode[modeBody](t, env).State)

	status, env = do(t, app, http.MethodPost, "/tickets", fiber.Map{"title": "x", "description": "y", "type": "bug"})
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, "NOT_AUTHENTICATED", env.Error.Code)

	client := register(t, app, "a@example.com", "Alice", "client")
	require.Equal(t, "client", client.State)
	require.Equal(t, []string{"my-tickets", "new-ticket"}, client.Screens)
	require.Equal(t, "my-tickets", client.Current)

	status, env = do(t, app, http.MethodPost, "/tickets", fiber.Map{
		"title": "Crash on launch", "description": "App crashes", "type": "bug",
	})
	require.Equal(t, http.StatusCreated, status)
	ticketID := decode[map[string]string](t, env)["id"]
	require.NotEmpty(t, ticketID)

	status, env = do(t, app, http.MethodGet, "/tickets/mine", nil)
	require.Equal(t, http.StatusOK, status)
	own := decode[listBody](t, env)
	require.Len(t, own.Tickets, 1)
	require.Equal(t, ticketID, own.Tickets[0].ID)
	require.Equal(t, "open", own.Tickets[0].Status)
	require.Equal(t, client.Identity.ID, own.Tickets[0].ClientID)
	require.Equal(t, "Alice", own.Tickets[0].ClientName)

	status, env = do(t, app, http.MethodGet, "/admin/tickets", nil)
	require.Equal(t, http.StatusForbidden, status)
	require.Equal(t, "FORBIDDEN", env.Error.Code)

	status, _ = do(t, app, http.MethodPost, "/auth/logout", nil)
	require.Equal(t, http.StatusNoContent, status)

	admin := register(t, app, "admin@example.com", "Admin", "admin")
	require.Equal(t, "admin", admin.State)

	status, env = do(t, app, http.MethodGet, "/admin/tickets", nil)
	require.Equal(t, http.StatusOK, status)
	all := decode[listBody](t, env)
	require.Len(t, all.Tickets, 1)
	require.Equal(t, ticketID, all.Tickets[0].ID)

	status, _ = do(t, app, http.MethodPost, "/tickets", fiber.Map{"title": "x", "description": "y", "type": "bug"})
	require.Equal(t, http.StatusForbidden, status)

	status, env = do(t, app, http.MethodGet, "/admin/tickets/"+ticketID, nil)
	require.Equal(t, http.StatusOK, status)
	detail := decode[struct {
		Ticket        ticketBody `json:"ticket"`
		StatusOptions []struct {
			Value   string `json:"value"`
			Current bool   `json:"current"`
		} `json:"status_options"`
		History []any `json:"history"`
	}](t, env)
	require.Equal(t, ticketID, detail.Ticket.ID)
	require.Len(t, detail.StatusOptions, 4)
	require.True(t, detail.StatusOptions[0].Current)
	require.Empty(t, detail.History)

	status, env = do(t, app, http.MethodPatch, "/admin/tickets/"+ticketID+"/status", fiber.Map{"status": "archived"})
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "INVALID_STATUS", env.Error.Code)
	require.Equal(t, "Invalid status. Must be one of: open, in-progress, resolved, closed", env.Error.Message)

	status, env = do(t, app, http.MethodPatch, "/admin/tickets/"+ticketID+"/status", fiber.Map{"status": "resolved"})
	require.Equal(t, http.StatusOK, status)
	changed := decode[struct {
		Ticket  ticketBody `json:"ticket"`
		Current string     `json:"current"`
	}](t, env)
	require.Equal(t, "resolved", changed.Ticket.Status)
	require.Equal(t, "all-tickets", changed.Current)

	status, env = do(t, app, http.MethodGet, "/admin/tickets/missing", nil)
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, "TICKET_NOT_FOUND", env.Error.Code)

	status, _ = do(t, app, http.MethodPost, "/auth/logout", nil)
	require.Equal(t, http.StatusNoContent, status)

	status, env = do(t, app, http.MethodPost, "/auth/login", fiber.Map{"email": "a@example.com", "password": "secret123"})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "client", decode[modeBody](t, env).State)

	status, env = do(t, app, http.MethodGet, "/tickets/mine", nil)
	require.Equal(t, http.StatusOK, status)
	own = decode[listBody](t, env)
	require.Equal(t, "resolved", own.Tickets[0].Status)
	require.NotNil(t, own.Tickets[0].UpdatedAt)

	status, env = do(t, app, http.MethodPost, "/tickets/mine/refresh", nil)
	require.Equal(t, http.StatusOK, status)
	refreshed := decode[listBody](t, env)
	require.False(t, refreshed.Refreshing)
	require.Len(t, refreshed.Tickets, 1)
}

func TestLoginFailures(t *testing.T) {
	app := newTestApp(t)
	register(t, app, "x@x.com", "X", "client")
	status, _ := do(t, app, http.MethodPost, "/auth/logout", nil)
	require.Equal(t, http.StatusNoContent, status)

	status, env := do(t, app, http.MethodPost, "/auth/login", fiber.Map{"email": "x@x.com", "password": "wrong-password"})
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, "INVALID_CREDENTIALS", env.Error.Code)

	status, env = do(t, app, http.MethodPost, "/auth/login", fiber.Map{"email": "nobody@x.com", "password": "secret123"})
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, "USER_NOT_FOUND", env.Error.Code)

	status, env = do(t, app, http.MethodPost, "/auth/register", fiber.Map{
		"email": "r@x.com", "password": "secret123", "name": "R", "role": "superuser",
	})
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "VALIDATION_FAILED", env.Error.Code)

	status, env = do(t, app, http.MethodPost, "/auth/register", fiber.Map{
		"email": "x@x.com", "password": "secret123", "name": "X2", "role": "client",
	})
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, "EMAIL_IN_USE", env.Error.Code)
}

// heldProfiles rejects writes while held and keeps the rejected profile.
type heldProfiles struct {
	*memory.ProfileStore
	mu       sync.Mutex
	held     bool
	rejected *domain.UserProfile
}

func (p *heldProfiles) Put(ctx context.Context, profile *domain.UserProfile) error {
	p.mu.Lock()
	if p.held {
		clone := *profile
		p.rejected = &clone
		p.mu.Unlock()
		return errors.New("directory unavailable")
	}
	p.mu.Unlock()
	return p.ProfileStore.Put(ctx, profile)
}

func (p *heldProfiles) release(t *testing.T) {
	t.Helper()
	p.mu.Lock()
	p.held = false
	rejected := p.rejected
	p.mu.Unlock()
	require.NotNil(t, rejected)
	require.NoError(t, p.ProfileStore.Put(context.Background(), rejected))
}

func TestLoginAfterProfileAppears(t *testing.T) {
	profiles := &heldProfiles{ProfileStore: memory.NewProfileStore(), held: true}
	app := newTestAppWith(t, profiles)
	creds := fiber.Map{"email": "late@x.com", "password": "secret123"}

	status, env := do(t, app, http.MethodPost, "/auth/register", fiber.Map{
		"email": "late@x.com", "password": "secret123", "name": "Late", "role": "client",
	})
	require.Equal(t, http.StatusInternalServerError, status)
	require.Equal(t, "PROFILE_CREATION_FAILED", env.Error.Code)

	status, env = do(t, app, http.MethodPost, "/auth/login", creds)
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, "PROFILE_NOT_FOUND", env.Error.Code)

	profiles.release(t)

	status, env = do(t, app, http.MethodPost, "/auth/login", creds)
	require.Equal(t, http.StatusOK, status, "%+v", env.Error)
	mode := decode[modeBody](t, env)
	require.Equal(t, "client", mode.State)
	require.Equal(t, "late@x.com", mode.Identity.Email)

	status, env = do(t, app, http.MethodGet, "/app/mode", nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "client", decode[modeBody](t, env).State)
}

func TestHealthAndMetrics(t *testing.T) {
	app := newTestApp(t)

	status, _ := do(t, app, http.MethodGet, "/health/live", nil)
	require.Equal(t, http.StatusOK, status)

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var ready struct {
		Status       string            `json:"status"`
		Dependencies map[string]string `json:"dependencies"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ready))
	require.Equal(t, "ready", ready.Status)
	require.Equal(t, "disabled", ready.Dependencies["postgres"])
	require.Equal(t, "disabled", ready.Dependencies["redis"])

	status, env := do(t, app, http.MethodGet, "/nope", nil)
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, "NOT_FOUND", env.Error.Code)

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp, err = app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(raw), "tracker_live_subscriptions")
	require.Contains(t, string(raw), "tracker_http_requests_total")
}
