package guard

import (
	"net/http"

	"go.uber.org/zap"

	"personajes/portal/internal/audit"
	"personajes/portal/internal/observability"
	"personajes/portal/internal/session"
)

type MiddlewareConfig struct {
	SessionCookie session.CookieOptions
	BaseURLCookie string
	Resolver      *BaseURLResolver
	Audit         audit.Logger
	Logger        *zap.Logger
}

func Middleware(g *Guard, cfg MiddlewareConfig) func(http.Handler) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			store := session.NewCookieStore(w, r, cfg.SessionCookie)

			var baseURL string
			if cfg.Resolver != nil {
				baseURL = cfg.Resolver.Resolve(session.CookieValue(r, cfg.BaseURLCookie))
			}

			d := g.Check(r.Context(), store, baseURL)
			recordDecision(cfg.Audit, logger, r, d)

			w.Header().Set("Cache-Control", "no-store")
			switch d.Outcome {
			case Allow:
				next.ServeHTTP(w, r)
			case Redirect:
				http.Redirect(w, r, d.Location, http.StatusFound)
			case Abandon:
			}
		})
	}
}

func recordDecision(a audit.Logger, logger *zap.Logger, r *http.Request, d Decision) {
	if a == nil {
		return
	}
	detail := "reason=" + string(d.Reason)
	if rid := observability.RequestIDFromContext(r.Context()); rid != "" {
		detail += " rid=" + rid
	}
	if d.Location != "" {
		detail += " location=" + d.Location
	}
	err := a.Log(audit.Event{
		Actor:   d.Session.Email,
		Action:  "guard.check",
		Target:  r.URL.Path,
		Outcome: d.Outcome.String(),
		Detail:  detail,
	})
	if err != nil {
		logger.Warn("write audit event", zap.Error(err))
	}
}
