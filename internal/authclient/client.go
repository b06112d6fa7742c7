// Package authclient is a session.Collaborator that talks to the gateway's
// own /api/auth endpoints, keeping the session cookies in a jar the way a
// browser would.
package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/geocoder89/projecthub/internal/domain/user"
	"github.com/geocoder89/projecthub/internal/session"
	"golang.org/x/net/publicsuffix"
)

type Client struct {
	baseURL string
	http    *http.Client
}

type Option func(*Client)

// WithTransport swaps the round tripper, keeping the cookie jar.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.http.Transport = rt }
}

func New(baseURL string, timeout time.Duration, opts ...Option) (*Client, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Jar:     jar,
			Timeout: timeout,
			// the gateway answers page requests with redirects; API calls never
			// need to follow them
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// HTTPClient exposes the underlying client so callers can fetch pages with
// the same cookies.
func (c *Client) HTTPClient() *http.Client {
	return c.http
}

var _ session.Collaborator = (*Client)(nil)

func (c *Client) Me(ctx context.Context) (user.User, error) {
	var out struct {
		User *user.User `json:"user"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/auth/me", nil, &out); err != nil {
		return user.User{}, err
	}
	if out.User == nil {
		return user.User{}, &session.Error{Status: http.StatusUnauthorized, Message: "no user in reply"}
	}
	return *out.User, nil
}

func (c *Client) Login(ctx context.Context, creds session.Credentials) error {
	return c.do(ctx, http.MethodPost, "/api/auth/login", creds, nil)
}

func (c *Client) Register(ctx context.Context, reg session.Registration) error {
	return c.do(ctx, http.MethodPost, "/api/auth/register", reg, nil)
}

func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
}

func (c *Client) Refresh(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/auth/refresh", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read reply: %w", err)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return &session.Error{Status: res.StatusCode, Message: errorMessage(raw)}
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode reply: %w", err)
	}
	return nil
}

// errorMessage reads {"error":"..."}, the gateway envelope
// {"error":{"message":"..."}} and a flat {"message":"..."}.
func errorMessage(raw []byte) string {
	var body struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return ""
	}

	if len(body.Error) > 0 {
		var s string
		if err := json.Unmarshal(body.Error, &s); err == nil && s != "" {
			return s
		}
		var env struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(body.Error, &env); err == nil && env.Message != "" {
			return env.Message
		}
	}
	return body.Message
}
