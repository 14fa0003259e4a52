package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTP            HTTPConfig
	Database        DatabaseConfig
	Guard           GuardConfig
	Backend         BackendConfig
	Log             LogConfig
	FrontendDistDir string
	AuditLogFile    string
}

type HTTPConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	URL         string
	WaitTimeout time.Duration
}

type GuardConfig struct {
	SessionCookie string
	BaseURLCookie string
	LandingPath   string
	HomePath      string
	AdminPrefixes []string
	CookieSecure  bool
	CookieMaxAge  int
}

type BackendConfig struct {
	BaseURL        string
	AllowedOrigins []string
	RefreshTimeout time.Duration
}

type LogConfig struct {
	Level       string
	Development bool
}

func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func Load() (Config, error) {
	cfg := Config{
		HTTP: HTTPConfig{
			Addr:            getEnv("HTTP_ADDR", ":8080"),
			ReadTimeout:     time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SEC", 10)) * time.Second,
			WriteTimeout:    time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SEC", 15)) * time.Second,
			ShutdownTimeout: time.Duration(getEnvInt("HTTP_SHUTDOWN_TIMEOUT_SEC", 20)) * time.Second,
		},
		Database: DatabaseConfig{
			URL:         getEnv("DATABASE_URL", ""),
			WaitTimeout: time.Duration(getEnvInt("DATABASE_WAIT_TIMEOUT_SEC", 30)) * time.Second,
		},
		Guard: GuardConfig{
			SessionCookie: getEnv("GUARD_SESSION_COOKIE", "user"),
			BaseURLCookie: getEnv("GUARD_BASE_URL_COOKIE", "BASE_URL"),
			LandingPath:   getEnv("GUARD_LANDING_PATH", "/"),
			HomePath:      getEnv("GUARD_HOME_PATH", "/inicio"),
			AdminPrefixes: getEnvList("GUARD_ADMIN_PREFIXES", []string{"/admin"}),
			CookieSecure:  getEnvBool("GUARD_COOKIE_SECURE", false),
			CookieMaxAge:  getEnvInt("GUARD_COOKIE_MAX_AGE_SEC", 0),
		},
		Backend: BackendConfig{
			BaseURL:        getEnv("BACKEND_BASE_URL", ""),
			AllowedOrigins: getEnvList("BACKEND_ALLOWED_ORIGINS", nil),
			RefreshTimeout: time.Duration(getEnvInt("BACKEND_REFRESH_TIMEOUT_SEC", 10)) * time.Second,
		},
		Log: LogConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Development: getEnvBool("LOG_DEVELOPMENT", false),
		},
		FrontendDistDir: getEnv("FRONTEND_DIST_DIR", "./web/dist"),
		AuditLogFile:    getEnv("AUDIT_LOG_FILE", "./data/audit.log"),
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg Config) validate() error {
	if cfg.HTTP.Addr == "" {
		return fmt.Errorf("HTTP_ADDR must not be empty")
	}
	if cfg.HTTP.ReadTimeout <= 0 {
		return fmt.Errorf("HTTP_READ_TIMEOUT_SEC must be > 0")
	}
	if cfg.HTTP.WriteTimeout <= 0 {
		return fmt.Errorf("HTTP_WRITE_TIMEOUT_SEC must be > 0")
	}
	if cfg.HTTP.ShutdownTimeout <= 0 {
		return fmt.Errorf("HTTP_SHUTDOWN_TIMEOUT_SEC must be > 0")
	}
	if cfg.Database.WaitTimeout <= 0 {
		return fmt.Errorf("DATABASE_WAIT_TIMEOUT_SEC must be > 0")
	}
	if cfg.Guard.SessionCookie == "" {
		return fmt.Errorf("GUARD_SESSION_COOKIE must not be empty")
	}
	if cfg.Guard.BaseURLCookie == "" {
		return fmt.Errorf("GUARD_BASE_URL_COOKIE must not be empty")
	}
	if !strings.HasPrefix(cfg.Guard.LandingPath, "/") {
		return fmt.Errorf("GUARD_LANDING_PATH must start with /")
	}
	if !strings.HasPrefix(cfg.Guard.HomePath, "/") {
		return fmt.Errorf("GUARD_HOME_PATH must start with /")
	}
	if len(cfg.Guard.AdminPrefixes) == 0 {
		return fmt.Errorf("GUARD_ADMIN_PREFIXES must not be empty")
	}
	for _, p := range cfg.Guard.AdminPrefixes {
		if !strings.HasPrefix(p, "/") || p == "/" {
			return fmt.Errorf("GUARD_ADMIN_PREFIXES entry %q must be an absolute path other than /", p)
		}
		if UnderPrefix(cfg.Guard.LandingPath, p) {
			return fmt.Errorf("GUARD_LANDING_PATH %q is under admin prefix %q", cfg.Guard.LandingPath, p)
		}
		if UnderPrefix(cfg.Guard.HomePath, p) {
			return fmt.Errorf("GUARD_HOME_PATH %q is under admin prefix %q", cfg.Guard.HomePath, p)
		}
	}
	if cfg.Guard.CookieMaxAge < 0 {
		return fmt.Errorf("GUARD_COOKIE_MAX_AGE_SEC must be >= 0")
	}
	if cfg.Backend.BaseURL != "" && !isHTTPURL(cfg.Backend.BaseURL) {
		return fmt.Errorf("BACKEND_BASE_URL must be an absolute http(s) url")
	}
	for _, o := range cfg.Backend.AllowedOrigins {
		if !isHTTPURL(o) {
			return fmt.Errorf("BACKEND_ALLOWED_ORIGINS entry %q must be an absolute http(s) url", o)
		}
	}
	if cfg.Backend.RefreshTimeout <= 0 {
		return fmt.Errorf("BACKEND_REFRESH_TIMEOUT_SEC must be > 0")
	}
	if cfg.FrontendDistDir == "" {
		return fmt.Errorf("FRONTEND_DIST_DIR must not be empty")
	}
	return nil
}

// UnderPrefix reports whether path equals prefix or lies below it, ignoring
// case the way the frontend router does.
func UnderPrefix(path, prefix string) bool {
	prefix = strings.TrimRight(prefix, "/")
	if len(path) < len(prefix) || !strings.EqualFold(path[:len(prefix)], prefix) {
		return false
	}
	rest := path[len(prefix):]
	return rest == "" || rest[0] == '/'
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func getEnv(key, fallback string) string {
	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		return fallback
	}
	return val
}

func getEnvInt(key string, fallback int) int {
	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		return fallback
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvList(key string, fallback []string) []string {
	val, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(val) == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
