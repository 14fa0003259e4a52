package guard

import (
	"fmt"
	"net/url"
	"strings"
)

// BaseURLResolver picks the backend origin for a refresh. The browser's
// BASE_URL cookie only wins when its origin is allow-listed.
type BaseURLResolver struct {
	fallback string
	allowed  map[string]struct{}
}

func NewBaseURLResolver(fallback string, allowedOrigins []string) (*BaseURLResolver, error) {
	r := &BaseURLResolver{
		fallback: strings.TrimRight(strings.TrimSpace(fallback), "/"),
		allowed:  make(map[string]struct{}),
	}
	if r.fallback != "" {
		o, err := origin(r.fallback)
		if err != nil {
			return nil, fmt.Errorf("backend base url: %w", err)
		}
		r.allowed[o] = struct{}{}
	}
	for _, raw := range allowedOrigins {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		o, err := origin(raw)
		if err != nil {
			return nil, fmt.Errorf("allowed origin: %w", err)
		}
		r.allowed[o] = struct{}{}
	}
	return r, nil
}

func (r *BaseURLResolver) Resolve(cookieValue string) string {
	cookieValue = strings.TrimRight(strings.TrimSpace(cookieValue), "/")
	if cookieValue != "" {
		if o, err := origin(cookieValue); err == nil {
			if _, ok := r.allowed[o]; ok {
				return cookieValue
			}
		}
	}
	return r.fallback
}

func origin(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%q is not an absolute http(s) url", raw)
	}
	return strings.ToLower(u.Scheme + "://" + u.Host), nil
}
