// Package guard decides whether a navigation may enter an admin-only page.
package guard

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"personajes/portal/internal/backend"
	"personajes/portal/internal/session"
)

type Refresher interface {
	Refresh(ctx context.Context, baseURL, token string) (session.Login, error)
}

type Outcome int

const (
	Allow Outcome = iota
	Redirect
	// Abandon means the caller went away mid-check; nothing was written.
	Abandon
)

func (o Outcome) String() string {
	switch o {
	case Allow:
		return "allow"
	case Redirect:
		return "redirect"
	case Abandon:
		return "abandon"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

type Reason string

const (
	ReasonNoSession       Reason = "no_session"
	ReasonNotAdmin        Reason = "not_admin"
	ReasonRefreshFailed   Reason = "refresh_failed"
	ReasonRefreshRejected Reason = "refresh_rejected"
	ReasonRefreshed       Reason = "refreshed"
	ReasonCanceled        Reason = "canceled"
)

type Decision struct {
	Outcome  Outcome
	Location string
	Reason   Reason
	// Session is what the store holds once the check is done, or the
	// session that was evaluated when it was cleared.
	Session session.Login
	Err     error
}

type Config struct {
	LandingPath string
	HomePath    string
}

type Guard struct {
	refresher Refresher
	cfg       Config
	log       *zap.Logger
}

func New(refresher Refresher, cfg Config, logger *zap.Logger) (*Guard, error) {
	if refresher == nil {
		return nil, fmt.Errorf("refresher is required")
	}
	if !strings.HasPrefix(cfg.LandingPath, "/") {
		return nil, fmt.Errorf("landing path must be absolute")
	}
	if !strings.HasPrefix(cfg.HomePath, "/") {
		return nil, fmt.Errorf("home path must be absolute")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Guard{refresher: refresher, cfg: cfg, log: logger}, nil
}

func (g *Guard) Check(ctx context.Context, store session.Store, baseURL string) Decision {
	login, ok, err := store.Get()
	if err != nil {
		g.log.Warn("unreadable session, treating as signed out", zap.Error(err))
	}
	if !ok || !login.HasToken() {
		g.log.Warn("no authenticated user, redirecting to landing page", zap.String("location", g.cfg.LandingPath))
		return g.redirect(g.cfg.LandingPath, ReasonNoSession, login, err)
	}

	if !login.IsAdmin() {
		g.log.Warn("access denied, admin role required",
			zap.String("email", login.Email),
			zap.String("rol", string(login.Rol)),
		)
		return g.redirect(g.cfg.HomePath, ReasonNotAdmin, login, nil)
	}

	refreshed, err := g.refresher.Refresh(ctx, baseURL, login.Token)
	if err == nil && refreshed.Rejected() {
		err = &backend.RejectedError{Msg: refreshed.Msg}
	}
	if err != nil {
		if ctx.Err() != nil {
			g.log.Info("navigation canceled during token refresh", zap.String("email", login.Email))
			return Decision{Outcome: Abandon, Reason: ReasonCanceled, Session: login, Err: ctx.Err()}
		}

		reason := ReasonRefreshFailed
		if errors.Is(err, backend.ErrRejected) || errors.Is(err, backend.ErrEmptyResponse) {
			reason = ReasonRefreshRejected
			g.log.Warn("token invalid or expired, closing session", zap.String("email", login.Email), zap.Error(err))
		} else {
			g.log.Error("token refresh failed, closing session", zap.String("email", login.Email), zap.Error(err))
		}
		if clearErr := store.Clear(); clearErr != nil {
			g.log.Error("clear session", zap.Error(clearErr))
		}
		return g.redirect(g.cfg.LandingPath, reason, login, err)
	}

	if err := store.Set(refreshed); err != nil {
		g.log.Error("store refreshed session", zap.String("email", refreshed.Email), zap.Error(err))
		return Decision{Outcome: Allow, Reason: ReasonRefreshed, Session: login, Err: err}
	}
	g.log.Info("token refreshed, access granted", zap.String("email", refreshed.Email))
	return Decision{Outcome: Allow, Reason: ReasonRefreshed, Session: refreshed}
}

func (g *Guard) redirect(location string, reason Reason, login session.Login, err error) Decision {
	return Decision{Outcome: Redirect, Location: location, Reason: reason, Session: login, Err: err}
}
