// Package backend talks to the external authentication backend the gateway
// fronts. It owns the wire shapes of that backend; callers deal in
// domain types.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/geocoder89/projecthub/internal/domain/user"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

type Tokens struct {
	AccessToken  string
	RefreshToken string
}

type Registration struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	LastName string `json:"lastName"`
}

// Observer receives one call per backend round trip. Prom implements it.
type Observer interface {
	ObserveBackend(op string, status int, d time.Duration)
}

type Client struct {
	baseURL string
	http    *http.Client
	obs     Observer
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithObserver(o Observer) Option {
	return func(c *Client) { c.obs = o }
}

func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) Login(ctx context.Context, email, password string) (Tokens, error) {
	var out struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}

	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, "login", http.MethodPost, "/auth/login", "", body, &out); err != nil {
		return Tokens{}, err
	}
	if out.AccessToken == "" {
		return Tokens{}, fmt.Errorf("%w: login reply without access token", ErrUnavailable)
	}

	return Tokens{AccessToken: out.AccessToken, RefreshToken: out.RefreshToken}, nil
}

// Register returns the backend's user document untouched; the gateway only
// relays it.
func (c *Client) Register(ctx context.Context, reg Registration) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.do(ctx, "register", http.MethodPost, "/auth/register", "", reg, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type meReply struct {
	ID       string `json:"id"`
	Sub      string `json:"sub"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	LastName string `json:"lastName"`
	FullName string `json:"fullName"`
	Role     string `json:"role"`
}

// Me resolves the principal behind an access token. A reply with an unknown
// role is rejected rather than passed on.
func (c *Client) Me(ctx context.Context, accessToken string) (user.User, error) {
	var out meReply
	if err := c.do(ctx, "me", http.MethodPost, "/auth/me", accessToken, nil, &out); err != nil {
		return user.User{}, err
	}

	role, err := user.ParseRole(out.Role)
	if err != nil {
		return user.User{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	u := user.User{
		ID:       out.ID,
		Email:    out.Email,
		Name:     out.Name,
		FullName: out.FullName,
		Role:     role,
	}
	if u.ID == "" {
		u.ID = out.Sub
	}
	if u.FullName == "" {
		u.FullName = strings.TrimSpace(out.Name + " " + out.LastName)
	}
	if u.ID == "" {
		return user.User{}, fmt.Errorf("%w: me reply without id", ErrUnavailable)
	}

	return u, nil
}

// Refresh trades a refresh token for a new access token. The backend has
// answered with both "accessToken" and "access_token" over time; either is
// accepted. RefreshToken is set only when the backend rotated it.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (Tokens, error) {
	var out struct {
		AccessToken       string `json:"accessToken"`
		AccessTokenSnake  string `json:"access_token"`
		RefreshToken      string `json:"refreshToken"`
		RefreshTokenSnake string `json:"refresh_token"`
	}

	body := map[string]string{"refreshToken": refreshToken}
	if err := c.do(ctx, "refresh", http.MethodPost, "/auth/refresh", "", body, &out); err != nil {
		return Tokens{}, err
	}

	t := Tokens{AccessToken: out.AccessToken, RefreshToken: out.RefreshToken}
	if t.AccessToken == "" {
		t.AccessToken = out.AccessTokenSnake
	}
	if t.RefreshToken == "" {
		t.RefreshToken = out.RefreshTokenSnake
	}
	if t.AccessToken == "" {
		return Tokens{}, fmt.Errorf("%w: refresh reply without access token", ErrUnavailable)
	}
	return t, nil
}

func (c *Client) Logout(ctx context.Context, accessToken string) error {
	return c.do(ctx, "logout", http.MethodPost, "/auth/logout", accessToken, nil, nil)
}

// Ping is used by readiness checks; any HTTP answer counts as reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return err
	}
	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	_ = res.Body.Close()
	return nil
}

func (c *Client) do(ctx context.Context, op, method, path, bearer string, in, out any) error {
	start := time.Now()
	status := 0
	defer func() {
		if c.obs != nil {
			c.obs.ObserveBackend(op, status, time.Since(start))
		}
	}()

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", op, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	res, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%s: %w", op, ctxErr)
		}
		return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
	}
	defer res.Body.Close()
	status = res.StatusCode

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%s: read body: %w", op, ctxErr)
		}
		return fmt.Errorf("%w: %s: read body: %v", ErrUnavailable, op, err)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return &Error{Status: res.StatusCode, Message: errorMessage(raw)}
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %s: decode reply: %v", ErrUnavailable, op, err)
	}
	return nil
}

// errorMessage understands {"error":"..."}, {"message":"..."} and the
// {"error":{"message":"..."}} envelope.
func errorMessage(raw []byte) string {
	var reply struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(raw, &reply); err != nil {
		return ""
	}

	if len(reply.Error) > 0 {
		var s string
		if err := json.Unmarshal(reply.Error, &s); err == nil && s != "" {
			return s
		}
		var nested struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(reply.Error, &nested); err == nil && nested.Message != "" {
			return nested.Message
		}
	}
	return reply.Message
}

// IsTransport reports whether err means no usable answer came back.
func IsTransport(err error) bool {
	return errors.Is(err, ErrUnavailable) || errors.Is(err, ErrCircuitOpen) ||
		errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
