package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"personajes/portal/internal/audit"
	"personajes/portal/internal/backend"
	"personajes/portal/internal/config"
	"personajes/portal/internal/guard"
	"personajes/portal/internal/httpserver"
	"personajes/portal/internal/session"
)

type App struct {
	cfg    config.Config
	log    *zap.Logger
	db     *sql.DB
	audit  audit.Logger
	server *httpserver.Server
}

type Components struct {
	Guard        *guard.Guard
	Resolver     *guard.BaseURLResolver
	CookieConfig session.CookieOptions
}

func NewComponents(cfg config.Config, logger *zap.Logger) (Components, error) {
	client, err := backend.NewClient(backend.ClientConfig{
		HTTPClient: &http.Client{},
		Timeout:    cfg.Backend.RefreshTimeout,
	})
	if err != nil {
		return Components{}, fmt.Errorf("create backend client: %w", err)
	}
	g, err := guard.New(client, guard.Config{
		LandingPath: cfg.Guard.LandingPath,
		HomePath:    cfg.Guard.HomePath,
	}, logger.Named("guard"))
	if err != nil {
		return Components{}, fmt.Errorf("create guard: %w", err)
	}
	resolver, err := guard.NewBaseURLResolver(cfg.Backend.BaseURL, cfg.Backend.AllowedOrigins)
	if err != nil {
		return Components{}, fmt.Errorf("create base url resolver: %w", err)
	}
	return Components{
		Guard:    g,
		Resolver: resolver,
		CookieConfig: session.CookieOptions{
			Name:   cfg.Guard.SessionCookie,
			Secure: cfg.Guard.CookieSecure,
			MaxAge: cfg.Guard.CookieMaxAge,
		},
	}, nil
}

func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	var db *sql.DB
	var auditLogger audit.Logger
	if cfg.Database.URL != "" {
		var err error
		db, err = openDatabase(ctx, cfg.Database, logger)
		if err != nil {
			return nil, err
		}
		pgAudit, err := audit.NewPostgresLogger(db)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("create postgres audit logger: %w", err)
		}
		auditLogger = pgAudit
	} else {
		auditLogger = audit.NewFileLogger(cfg.AuditLogFile)
	}

	comps, err := NewComponents(cfg, logger)
	if err != nil {
		if db != nil {
			_ = db.Close()
		}
		return nil, err
	}
	if cfg.Backend.BaseURL == "" && len(cfg.Backend.AllowedOrigins) == 0 {
		logger.Warn("no backend base url or allowed origins configured, admin pages will always redirect")
	}

	server := httpserver.New(cfg.HTTP, httpserver.Deps{
		AdminGuard: guard.Middleware(comps.Guard, guard.MiddlewareConfig{
			SessionCookie: comps.CookieConfig,
			BaseURLCookie: cfg.Guard.BaseURLCookie,
			Resolver:      comps.Resolver,
			Audit:         auditLogger,
			Logger:        logger,
		}),
		AdminPrefixes:   cfg.Guard.AdminPrefixes,
		SessionCookie:   comps.CookieConfig,
		Audit:           auditLogger,
		Logger:          logger.Named("http"),
		FrontendDistDir: cfg.FrontendDistDir,
	})

	return &App{
		cfg:    cfg,
		log:    logger,
		db:     db,
		audit:  auditLogger,
		server: server,
	}, nil
}

var pingRetryInterval = 2 * time.Second

func openDatabase(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := waitForDatabase(ctx, db, cfg.WaitTimeout, logger); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func waitForDatabase(ctx context.Context, db *sql.DB, timeout time.Duration, logger *zap.Logger) error {
	deadline := time.Now().Add(timeout)
	for {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := db.PingContext(pingCtx)
		cancel()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || !time.Now().Before(deadline) {
			return fmt.Errorf("database not ready within %s: %w", timeout, err)
		}
		logger.Info("waiting for database", zap.Error(err))
		select {
		case <-ctx.Done():
		case <-time.After(pingRetryInterval):
		}
	}
}

func (a *App) Run(ctx context.Context) error {
	defer func() {
		if a.db != nil {
			_ = a.db.Close()
		}
	}()

	errCh := make(chan error, 1)

	go func() {
		a.log.Info("http server starting", zap.String("addr", a.cfg.HTTP.Addr))
		errCh <- a.server.Start()
	}()

	select {
	case <-ctx.Done():
		a.log.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server exited: %w", err)
	}
}
