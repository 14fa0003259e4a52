package httpserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"personajes/portal/internal/audit"
	"personajes/portal/internal/backend"
	"personajes/portal/internal/guard"
	"personajes/portal/internal/session"
)

var userCookie = session.CookieOptions{Name: "user"}

type recordingAudit struct {
	mu     sync.Mutex
	events []audit.Event
}

func (a *recordingAudit) Log(e audit.Event) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, e)
	return nil
}

func writeDist(t *testing.T) string {
	t.Helper()
	dist := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dist, "index.html"), []byte("<html>app</html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dist, "app.js"), []byte("console.log('x')"), 0o644))
	return dist
}

func withSession(t *testing.T, req *http.Request, l session.Login) *http.Request {
	t.Helper()
	v, err := session.EncodeCookieValue(l)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: "user", Value: v})
	return req
}

func TestHealthz(t *testing.T) {
	handler := NewHandler(Deps{})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestRequestIDIsPropagated(t *testing.T) {
	handler := NewHandler(Deps{})
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	req.Header.Set("X-Request-Id", "abc-123")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-Id"))
}

func TestInfo(t *testing.T) {
	handler := NewHandler(Deps{Version: "1.2.3"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/info", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "personajes-portal", got["service"])
	assert.Equal(t, "1.2.3", got["version"])
}

func TestSessionMe(t *testing.T) {
	handler := NewHandler(Deps{SessionCookie: userCookie})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/session", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := withSession(t, httptest.NewRequest(http.MethodGet, "/v1/session", nil),
		session.Login{ID: 9, Nombres: "Beth Smith", Email: "beth@x.io", Token: "secret-token", Rol: "REGULAR"})
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "secret-token")
	var got session.SessionView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "beth@x.io", got.Email)
	assert.Equal(t, session.RoleRegular, got.Rol)
}

func TestSessionLogout(t *testing.T) {
	a := &recordingAudit{}
	handler := NewHandler(Deps{SessionCookie: userCookie, Audit: a})

	req := withSession(t, httptest.NewRequest(http.MethodPost, "/v1/session/logout", nil),
		session.Login{Email: "rick@citadel.io", Token: "t", Rol: "ADMIN"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Less(t, cookies[0].MaxAge, 0)

	require.Len(t, a.events, 1)
	assert.Equal(t, "session.logout", a.events[0].Action)
	assert.Equal(t, "rick@citadel.io", a.events[0].Actor)
	assert.Equal(t, "success", a.events[0].Outcome)
}

func TestUnknownAPIRoute(t *testing.T) {
	handler := NewHandler(Deps{FrontendDistDir: writeDist(t)})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/not-found", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUnknownRouteWithoutFrontend(t *testing.T) {
	handler := NewHandler(Deps{})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/does-not-exist", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFrontendStaticAndSpaFallback(t *testing.T) {
	handler := NewHandler(Deps{FrontendDistDir: writeDist(t)})

	for _, p := range []string{"/", "/app.js", "/inicio", "/some/spa/route"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, p, nil))
		assert.Equal(t, http.StatusOK, rec.Code, p)
	}
}

func TestAdminPrefixesAreGuarded(t *testing.T) {
	var guarded []string
	deny := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			guarded = append(guarded, r.URL.Path)
			http.Redirect(w, r, "/", http.StatusFound)
		})
	}
	handler := NewHandler(Deps{
		AdminGuard:      deny,
		AdminPrefixes:   []string{"/admin", "/usuarios/"},
		FrontendDistDir: writeDist(t),
	})

	for _, p := range []string{"/admin", "/admin/personajes", "/usuarios", "/usuarios/7", "/ADMIN", "/Admin/x"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, p, nil))
		assert.Equal(t, http.StatusFound, rec.Code, p)
	}
	for _, p := range []string{"/administrador", "/Administrador", "/inicio", "/"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, p, nil))
		assert.Equal(t, http.StatusOK, rec.Code, p)
	}
	assert.Equal(t, []string{"/admin", "/admin/personajes", "/usuarios", "/usuarios/7", "/ADMIN", "/Admin/x"}, guarded)
}

func TestAdminPageWithRealGuard(t *testing.T) {
	backendSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":1,"nombres":"Rick Sanchez","email":"rick@citadel.io","token":"new-token","rol":"ADMIN"}`))
	}))
	defer backendSrv.Close()

	client, err := backend.NewClient(backend.ClientConfig{Timeout: time.Second})
	require.NoError(t, err)
	g, err := guard.New(client, guard.Config{LandingPath: "/", HomePath: "/inicio"}, nil)
	require.NoError(t, err)
	resolver, err := guard.NewBaseURLResolver(backendSrv.URL, nil)
	require.NoError(t, err)

	a := &recordingAudit{}
	handler := NewHandler(Deps{
		AdminGuard: guard.Middleware(g, guard.MiddlewareConfig{
			SessionCookie: userCookie,
			BaseURLCookie: "BASE_URL",
			Resolver:      resolver,
			Audit:         a,
		}),
		AdminPrefixes:   []string{"/admin"},
		SessionCookie:   userCookie,
		FrontendDistDir: writeDist(t),
	})

	admin := session.Login{ID: 1, Email: "rick@citadel.io", Token: "old-token", Rol: "admin"}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, withSession(t, httptest.NewRequest(http.MethodGet, "/admin/personajes", nil), admin))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "app")

	regular := session.Login{ID: 2, Email: "morty@x.io", Token: "tok", Rol: "REGULAR"}
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, withSession(t, httptest.NewRequest(http.MethodGet, "/admin", nil), regular))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/inicio", rec.Header().Get("Location"))

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin", nil))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	require.Len(t, a.events, 3)
	assert.Contains(t, a.events[0].Detail, "rid=")
}
