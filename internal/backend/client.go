package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"personajes/portal/internal/session"
)

const refreshPath = "/auth/refresh-token"

var (
	ErrNoBaseURL     = errors.New("backend base url is not set")
	ErrEmptyResponse = errors.New("empty refresh response")
	ErrRejected      = errors.New("refresh rejected")
)

type RejectedError struct {
	Msg string
}

func (e *RejectedError) Error() string {
	if e.Msg == "" {
		return ErrRejected.Error()
	}
	return ErrRejected.Error() + ": " + e.Msg
}

func (e *RejectedError) Unwrap() error { return ErrRejected }

type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("refresh endpoint returned status %d", e.Code)
}

type Client struct {
	http    *http.Client
	timeout time.Duration
	group   singleflight.Group
}

type ClientConfig struct {
	HTTPClient *http.Client
	Timeout    time.Duration
}

func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("refresh timeout must be > 0")
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{http: hc, timeout: cfg.Timeout}, nil
}

// Refresh exchanges token for a fresh session. Concurrent calls for the
// same base URL and token share one request; each caller still returns as
// soon as its own ctx is done.
func (c *Client) Refresh(ctx context.Context, baseURL, token string) (session.Login, error) {
	endpoint, err := RefreshURL(baseURL)
	if err != nil {
		return session.Login{}, err
	}

	ch := c.group.DoChan(endpoint+"\x00"+token, func() (any, error) {
		reqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		return c.refresh(reqCtx, endpoint, token)
	})

	select {
	case <-ctx.Done():
		return session.Login{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return session.Login{}, res.Err
		}
		return res.Val.(session.Login), nil
	}
}

func (c *Client) refresh(ctx context.Context, endpoint, token string) (session.Login, error) {
	body, err := json.Marshal(map[string]string{"token": token})
	if err != nil {
		return session.Login{}, fmt.Errorf("encode refresh request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return session.Login{}, fmt.Errorf("build refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return session.Login{}, fmt.Errorf("refresh request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return session.Login{}, fmt.Errorf("read refresh response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return session.Login{}, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return session.Login{}, ErrEmptyResponse
	}

	var login session.Login
	if err := json.Unmarshal(trimmed, &login); err != nil {
		return session.Login{}, fmt.Errorf("decode refresh response: %w", err)
	}
	if login.Rejected() {
		return session.Login{}, &RejectedError{Msg: login.Msg}
	}
	return login, nil
}

func RefreshURL(baseURL string) (string, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return "", ErrNoBaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: %q is not an absolute http(s) url", ErrNoBaseURL, baseURL)
	}
	return baseURL + refreshPath, nil
}
