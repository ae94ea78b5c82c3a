package console

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usradm-dev/usradm/internal/cli/auth"
	"github.com/usradm-dev/usradm/internal/cli/client"
	"github.com/usradm-dev/usradm/internal/config"
	"github.com/usradm-dev/usradm/internal/models"
	"github.com/usradm-dev/usradm/internal/session"
)

const testToken = "console-token"

// fakeUsersAPI is a minimal users API for the console to talk to
type fakeUsersAPI struct {
	mu       sync.Mutex
	role     string
	users    []models.User
	revoked  bool // answer 401 to authenticated calls
	refreshN int
}

func (f *fakeUsersAPI) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/sanctum/csrf-cookie":
			w.WriteHeader(http.StatusNoContent)
			return
		case "/api/login":
			var req client.LoginRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			if req.Password != "secret" {
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"message":"Invalid credentials"}`))
				return
			}
			json.NewEncoder(w).Encode(map[string]any{
				"token": testToken,
				"user":  map[string]any{"id": 1, "name": "Alice", "email": req.Email, "role": f.role},
			})
			return
		case "/api/register":
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"message":"Account created"}`))
			return
		case "/api/logout":
			w.WriteHeader(http.StatusNoContent)
			return
		}

		if f.revoked || r.Header.Get("Authorization") != "Bearer "+testToken {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"message":"Unauthenticated."}`))
			return
		}

		switch {
		case r.URL.Path == "/api/refresh-token":
			f.refreshN++
			w.Write([]byte(`{"token":"` + testToken + `"}`))
		case r.URL.Path == "/api/users" && r.Method == http.MethodGet:
			json.NewEncoder(w).Encode(map[string]any{"data": f.users})
		case r.URL.Path == "/api/users" && r.Method == http.MethodPost:
			var in models.UserInput
			require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
			u := models.User{ID: "9", Name: in.Name, Email: in.Email, Role: in.Role}
			f.users = append(f.users, u)
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(u)
		case r.URL.Path == "/api/users/2" && r.Method == http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"message":"User not found"}`))
		}
	}
}

type testConsole struct {
	server *Server
	api    *fakeUsersAPI
	store  *session.MemoryStore
	auth   *auth.Service
}

func newTestConsole(t *testing.T, role string) *testConsole {
	t.Helper()

	api := &fakeUsersAPI{
		role: role,
		users: []models.User{
			{ID: "1", Name: "Alice", Email: "alice@example.com", Role: "admin"},
			{ID: "2", Name: "Bob", Email: "bob@example.com", Role: "user"},
		},
	}
	apiServer := httptest.NewServer(api.handler(t))
	t.Cleanup(apiServer.Close)

	cfg := &config.Config{
		API:     config.APIConfig{URL: apiServer.URL, RequestTimeout: 5 * time.Second},
		Console: config.ConsoleConfig{Addr: "127.0.0.1:0", AllowedOrigins: []string{"http://localhost:3000"}},
	}

	store := session.NewMemoryStore()
	apiClient := client.New(apiServer.URL, zerolog.Nop())
	authService := auth.NewService(apiClient, store, zerolog.Nop())

	srv, err := New(cfg, authService, apiClient, zerolog.Nop(), "test")
	require.NoError(t, err)

	return &testConsole{server: srv, api: api, store: store, auth: authService}
}

func (tc *testConsole) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	tc.server.Handler().ServeHTTP(rec, req)
	return rec
}

// signIn logs in through the console itself
func (tc *testConsole) signIn(t *testing.T) {
	t.Helper()
	rec := tc.do(http.MethodPost, "/login", `{"email":"alice@example.com","password":"secret"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestGuard_SignedOut(t *testing.T) {
	tc := newTestConsole(t, "admin")

	for _, path := range []string{"/", "/profile", "/dashboard", "/dashboard/users", "/no/such/page"} {
		rec := tc.do(http.MethodGet, path, "")
		assert.Equal(t, http.StatusFound, rec.Code, path)
		assert.Equal(t, "/login", rec.Header().Get("Location"), path)
	}
}

func TestGuard_NonAdminSentToProfile(t *testing.T) {
	tc := newTestConsole(t, "user")
	tc.signIn(t)

	rec := tc.do(http.MethodGet, "/dashboard/users", "")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/profile", rec.Header().Get("Location"))

	rec = tc.do(http.MethodGet, "/", "")
	assert.Equal(t, "/profile", rec.Header().Get("Location"))

	rec = tc.do(http.MethodGet, "/profile", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"role":"user"`)
}

func TestGuard_AdminLandsOnDashboard(t *testing.T) {
	tc := newTestConsole(t, "admin")
	tc.signIn(t)

	rec := tc.do(http.MethodGet, "/", "")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/dashboard", rec.Header().Get("Location"))

	rec = tc.do(http.MethodGet, "/login", "")
	assert.Equal(t, "/dashboard", rec.Header().Get("Location"))
}

func TestLogin_Response(t *testing.T) {
	tc := newTestConsole(t, "admin")

	rec := tc.do(http.MethodPost, "/login", `{"email":"alice@example.com","password":"secret"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "/dashboard", resp.Redirect)
	assert.Equal(t, UserDetail{ID: "1", Name: "Alice", Email: "alice@example.com", Role: "admin"}, resp.User)

	stored := tc.store.Load()
	require.NotNil(t, stored)
	assert.Equal(t, testToken, stored.Token)
}

func TestLogin_FormEncoded(t *testing.T) {
	tc := newTestConsole(t, "user")

	form := url.Values{"email": {"alice@example.com"}, "password": {"secret"}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	tc.server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, tc.auth.IsAuthenticated())
}

func TestLogin_Errors(t *testing.T) {
	tc := newTestConsole(t, "admin")

	rec := tc.do(http.MethodPost, "/login", `{"email":"alice@example.com"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Please enter your email and password."}`, rec.Body.String())

	rec = tc.do(http.MethodPost, "/login", `{"email":"alice@example.com","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"Invalid credentials"}`, rec.Body.String())
	assert.Nil(t, tc.store.Load())
}

func TestLogin_WrongPasswordAfterSessionExpired(t *testing.T) {
	tc := newTestConsole(t, "admin")
	require.NoError(t, tc.store.Save(&session.Record{Token: "old", IsAuthenticated: true, ExpiresAt: "2000-01-01T00:00:00Z"}))

	rec := tc.do(http.MethodPost, "/login", `{"email":"alice@example.com","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"Invalid credentials"}`, rec.Body.String())

	rec = tc.do(http.MethodPost, "/login", `{"email":"alice@example.com","password":"secret"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, testToken, tc.store.Load().Token)
}

func TestRegister(t *testing.T) {
	tc := newTestConsole(t, "user")

	rec := tc.do(http.MethodPost, "/register", `{"name":"Dan","email":"dan@example.com","password":"pw"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"message":"Account created","redirect":"/login"}`, rec.Body.String())
	assert.Nil(t, tc.store.Load())
}

func TestLogout(t *testing.T) {
	tc := newTestConsole(t, "admin")
	tc.signIn(t)

	rec := tc.do(http.MethodPost, "/logout", "")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
	assert.Nil(t, tc.store.Load())
}

func TestDashboard_ListFilterSort(t *testing.T) {
	tc := newTestConsole(t, "admin")
	tc.signIn(t)

	rec := tc.do(http.MethodGet, "/dashboard", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total":2`)

	rec = tc.do(http.MethodGet, "/dashboard/users?filter=bob", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list models.ListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Data, 1)
	assert.Equal(t, "Bob", list.Data[0].Name)

	rec = tc.do(http.MethodGet, "/dashboard/users?sort=role", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, "admin", list.Data[0].Role)

	rec = tc.do(http.MethodGet, "/dashboard/users?sort=age", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDashboard_CreateUser(t *testing.T) {
	tc := newTestConsole(t, "admin")
	tc.signIn(t)

	rec := tc.do(http.MethodPost, "/dashboard/users", `{"name":"Dan","email":"bad"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.JSONEq(t, `{"error":"invalid email: must be a valid email address"}`, rec.Body.String())

	rec = tc.do(http.MethodPost, "/dashboard/users", `{"name":"Dan","email":"dan@example.com","password":"pw","role":"moderator"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var body struct {
		Data  models.User   `json:"data"`
		Users []models.User `json:"users"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Dan", body.Data.Name)
	assert.Len(t, body.Users, 3)
}

func TestDashboard_DeleteAndNotFound(t *testing.T) {
	tc := newTestConsole(t, "admin")
	tc.signIn(t)

	rec := tc.do(http.MethodDelete, "/dashboard/users/2", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = tc.do(http.MethodGet, "/dashboard/users/42", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"User not found"}`, rec.Body.String())
}

func TestDashboard_SessionExpiredRedirectsToLogin(t *testing.T) {
	tc := newTestConsole(t, "admin")
	tc.signIn(t)

	tc.api.mu.Lock()
	tc.api.revoked = true
	tc.api.mu.Unlock()

	rec := tc.do(http.MethodGet, "/dashboard/users", "")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
	assert.Nil(t, tc.store.Load())

	rec = tc.do(http.MethodDelete, "/dashboard/users/2", "")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
}

func TestHealth(t *testing.T) {
	tc := newTestConsole(t, "admin")

	rec := tc.do(http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"online"`)
	assert.Contains(t, rec.Body.String(), `"authenticated":false`)
}

func TestRefreshSession(t *testing.T) {
	tc := newTestConsole(t, "admin")

	// No session: nothing is sent
	tc.server.refreshSession()
	assert.Equal(t, 0, tc.api.refreshN)

	tc.signIn(t)
	tc.server.refreshSession()
	assert.Equal(t, 1, tc.api.refreshN)
	assert.NotNil(t, tc.store.Load())

	tc.api.mu.Lock()
	tc.api.revoked = true
	tc.api.mu.Unlock()
	tc.server.refreshSession()
	assert.Nil(t, tc.store.Load())
}

func TestRefreshSchedule(t *testing.T) {
	_, err := newRefreshScheduler("not a schedule", func() {})
	require.Error(t, err)

	c, err := newRefreshScheduler("@every 10m", func() {})
	require.NoError(t, err)
	assert.Len(t, c.Entries(), 1)

	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	next := nextRefresh("*/15 * * * *", from)
	require.NotNil(t, next)
	assert.Equal(t, from.Add(15*time.Minute), *next)
	assert.Nil(t, nextRefresh("", from))
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusGatewayTimeout, statusFor(&client.Error{Kind: client.KindTimeout}))
	assert.Equal(t, http.StatusBadGateway, statusFor(&client.Error{Kind: client.KindNetwork}))
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(&client.Error{Kind: client.KindServer, Status: 422}))
	assert.Equal(t, http.StatusInternalServerError, statusFor(assert.AnError))
}
