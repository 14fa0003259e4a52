package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

var ErrMalformedCookie = errors.New("malformed session cookie")

type CookieOptions struct {
	Name   string
	Secure bool
	// MaxAge in seconds; zero keeps a browser-session cookie.
	MaxAge int
}

// CookieStore keeps a Login in a cookie for the lifetime of one request.
// Writes go to the response and are visible to later Gets on the same store.
type CookieStore struct {
	w    http.ResponseWriter
	r    *http.Request
	opts CookieOptions

	written bool
	current *Login
}

func NewCookieStore(w http.ResponseWriter, r *http.Request, opts CookieOptions) *CookieStore {
	return &CookieStore{w: w, r: r, opts: opts}
}

func (s *CookieStore) Get() (Login, bool, error) {
	if s.written {
		if s.current == nil {
			return Login{}, false, nil
		}
		return *s.current, true, nil
	}

	c, err := s.r.Cookie(s.opts.Name)
	if err != nil {
		return Login{}, false, nil
	}
	return DecodeCookieValue(c.Value)
}

func (s *CookieStore) Set(login Login) error {
	value, err := EncodeCookieValue(login)
	if err != nil {
		return err
	}
	http.SetCookie(s.w, &http.Cookie{
		Name:     s.opts.Name,
		Value:    value,
		Path:     "/",
		MaxAge:   s.opts.MaxAge,
		Secure:   s.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	s.written = true
	s.current = &login
	return nil
}

func (s *CookieStore) Clear() error {
	http.SetCookie(s.w, &http.Cookie{
		Name:     s.opts.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Secure:   s.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	s.written = true
	s.current = nil
	return nil
}

// DecodeCookieValue accepts the percent-encoded JSON the browser runtime
// writes as well as raw JSON. Empty and "null" mean no session.
func DecodeCookieValue(raw string) (Login, bool, error) {
	raw = strings.TrimSpace(raw)
	if decoded, err := url.PathUnescape(raw); err == nil {
		raw = strings.TrimSpace(decoded)
	}
	if raw == "" || raw == "null" || raw == "undefined" {
		return Login{}, false, nil
	}

	var login Login
	if err := json.Unmarshal([]byte(raw), &login); err != nil {
		return Login{}, false, fmt.Errorf("%w: %v", ErrMalformedCookie, err)
	}
	return login, true, nil
}

func EncodeCookieValue(login Login) (string, error) {
	b, err := json.Marshal(login)
	if err != nil {
		return "", fmt.Errorf("encode session cookie: %w", err)
	}
	return url.PathEscape(string(b)), nil
}

func CookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	v := strings.TrimSpace(c.Value)
	if decoded, err := url.PathUnescape(v); err == nil {
		v = strings.TrimSpace(decoded)
	}
	return strings.Trim(v, `"`)
}
