package httpserver

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"personajes/portal/internal/audit"
	"personajes/portal/internal/config"
	"personajes/portal/internal/observability"
	"personajes/portal/internal/session"
)

const serviceName = "personajes-portal"

type Deps struct {
	// AdminGuard wraps every admin-prefixed route; nil leaves them open.
	AdminGuard      mux.MiddlewareFunc
	AdminPrefixes   []string
	SessionCookie   session.CookieOptions
	Audit           audit.Logger
	Logger          *zap.Logger
	FrontendDistDir string
	Version         string
}

type Server struct {
	httpServer *http.Server
}

func New(cfg config.HTTPConfig, deps Deps) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.Addr,
			Handler:      NewHandler(deps),
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  60 * time.Second,
		},
	}
}

func NewHandler(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Version == "" {
		deps.Version = "0.1.0"
	}

	r := mux.NewRouter()
	r.Use(requestIDMiddleware, accessLogMiddleware(deps.Logger))

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)
	r.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}).Methods(http.MethodGet)
	r.HandleFunc("/v1/info", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"service": serviceName,
			"version": deps.Version,
		})
	}).Methods(http.MethodGet)

	registerSessionHandlers(r, deps)
	r.PathPrefix("/v1/").HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})

	frontend := frontendHandler(deps.FrontendDistDir)
	for _, prefix := range deps.AdminPrefixes {
		prefix = strings.TrimRight(prefix, "/")
		admin := r.NewRoute().MatcherFunc(underPrefix(prefix)).Subrouter()
		if deps.AdminGuard != nil {
			admin.Use(deps.AdminGuard)
		}
		admin.NewRoute().Handler(frontend)
	}
	r.PathPrefix("/").Handler(frontend)

	return r
}

func underPrefix(prefix string) mux.MatcherFunc {
	return func(r *http.Request, _ *mux.RouteMatch) bool {
		return config.UnderPrefix(r.URL.Path, prefix)
	}
}

func registerSessionHandlers(r *mux.Router, deps Deps) {
	r.HandleFunc("/v1/session", func(w http.ResponseWriter, r *http.Request) {
		store := session.NewCookieStore(w, r, deps.SessionCookie)
		login, ok, err := store.Get()
		if err != nil || !ok || !login.HasToken() {
			writeError(w, http.StatusUnauthorized, "no active session")
			return
		}
		writeJSON(w, http.StatusOK, login.View())
	}).Methods(http.MethodGet)

	r.HandleFunc("/v1/session/logout", func(w http.ResponseWriter, r *http.Request) {
		store := session.NewCookieStore(w, r, deps.SessionCookie)
		login, _, _ := store.Get()
		if err := store.Clear(); err != nil {
			auditReq(deps.Audit, deps.Logger, r, login.Email, "session.logout", "failed", err.Error())
			writeError(w, http.StatusInternalServerError, "logout failed")
			return
		}
		auditReq(deps.Audit, deps.Logger, r, login.Email, "session.logout", "success", "")
		w.WriteHeader(http.StatusNoContent)
	}).Methods(http.MethodPost)
}

// Unknown paths fall back to index.html. Without a dist dir every page is a 404.
func frontendHandler(distDir string) http.Handler {
	distDir = strings.TrimSpace(distDir)
	indexPath := filepath.Join(distDir, "index.html")
	if _, err := os.Stat(indexPath); distDir == "" || err != nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			writeError(w, http.StatusNotFound, "not found")
		})
	}

	fileServer := http.FileServer(http.Dir(distDir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cleanPath := path.Clean(r.URL.Path)
		if cleanPath == "." || cleanPath == "/" {
			http.ServeFile(w, r, indexPath)
			return
		}

		fullPath := filepath.Join(distDir, strings.TrimPrefix(cleanPath, "/"))
		info, err := os.Stat(fullPath)
		if err == nil && !info.IsDir() {
			fileServer.ServeHTTP(w, r)
			return
		}

		http.ServeFile(w, r, indexPath)
	})
}

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.status = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := strings.TrimSpace(r.Header.Get("X-Request-Id"))
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", reqID)
		next.ServeHTTP(w, r.WithContext(observability.WithRequestID(r.Context(), reqID)))
	})
}

func accessLogMiddleware(logger *zap.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rec.status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", observability.RequestIDFromContext(r.Context())),
				zap.String("ip", clientIP(r)),
			)
		})
	}
}

func clientIP(r *http.Request) string {
	if fwd := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}

func auditReq(a audit.Logger, logger *zap.Logger, r *http.Request, actor, action, outcome, detail string) {
	if a == nil {
		return
	}
	parts := []string{
		"rid=" + observability.RequestIDFromContext(r.Context()),
		"ip=" + clientIP(r),
		"ua=" + strings.TrimSpace(r.UserAgent()),
	}
	if strings.TrimSpace(detail) != "" {
		parts = append(parts, "detail="+strings.TrimSpace(detail))
	}
	err := a.Log(audit.Event{
		Actor:   actor,
		Action:  action,
		Target:  r.URL.Path,
		Outcome: outcome,
		Detail:  strings.Join(parts, " | "),
	})
	if err != nil {
		logger.Warn("write audit event", zap.String("action", action), zap.Error(err))
	}
}
