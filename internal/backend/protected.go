package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/geocoder89/projecthub/internal/domain/user"
)

var ErrCircuitOpen = errors.New("backend circuit breaker open")

// API is the backend surface the gateway depends on. Client and Protected
// both implement it.
type API interface {
	Login(ctx context.Context, email, password string) (Tokens, error)
	Register(ctx context.Context, reg Registration) (json.RawMessage, error)
	Me(ctx context.Context, accessToken string) (user.User, error)
	Refresh(ctx context.Context, refreshToken string) (Tokens, error)
	Logout(ctx context.Context, accessToken string) error
	Ping(ctx context.Context) error
}

type BreakerState string

const (
	StateClosed   BreakerState = "closed"
	StateOpen     BreakerState = "open"
	StateHalfOpen BreakerState = "half_open"
)

type BreakerConfig struct {
	Timeout          time.Duration // hard timeout per call
	FailureThreshold int           // consecutive failures to open circuit
	Cooldown         time.Duration // how long to stay open before half-open
	HalfOpenMaxCalls int           // allow N trial calls in half-open
	OnStateChange    func(from, to BreakerState)
}

// Protected wraps an API with a per-call timeout and a circuit breaker.
// Only transport failures and 5xx replies trip the breaker; a 401 is a
// healthy backend saying no.
type Protected struct {
	inner API
	cfg   BreakerConfig
	mu    sync.Mutex
	now   func() time.Time

	state BreakerState

	consecutiveFailures int
	openedAt            time.Time
	halfOpenInFlight    int
}

func NewProtected(inner API, cfg BreakerConfig) *Protected {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 15 * time.Second
	}
	if cfg.HalfOpenMaxCalls <= 0 {
		cfg.HalfOpenMaxCalls = 1
	}

	return &Protected{
		inner: inner,
		cfg:   cfg,
		now:   time.Now,
		state: StateClosed,
	}
}

func (p *Protected) State() BreakerState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Protected) Login(ctx context.Context, email, password string) (Tokens, error) {
	var out Tokens
	err := p.call(ctx, func(ctx context.Context) error {
		var err error
		out, err = p.inner.Login(ctx, email, password)
		return err
	})
	return out, err
}

func (p *Protected) Register(ctx context.Context, reg Registration) (json.RawMessage, error) {
	var out json.RawMessage
	err := p.call(ctx, func(ctx context.Context) error {
		var err error
		out, err = p.inner.Register(ctx, reg)
		return err
	})
	return out, err
}

func (p *Protected) Me(ctx context.Context, accessToken string) (user.User, error) {
	var out user.User
	err := p.call(ctx, func(ctx context.Context) error {
		var err error
		out, err = p.inner.Me(ctx, accessToken)
		return err
	})
	return out, err
}

func (p *Protected) Refresh(ctx context.Context, refreshToken string) (Tokens, error) {
	var out Tokens
	err := p.call(ctx, func(ctx context.Context) error {
		var err error
		out, err = p.inner.Refresh(ctx, refreshToken)
		return err
	})
	return out, err
}

func (p *Protected) Logout(ctx context.Context, accessToken string) error {
	return p.call(ctx, func(ctx context.Context) error {
		return p.inner.Logout(ctx, accessToken)
	})
}

// Ping bypasses the breaker so readiness reflects the real backend.
func (p *Protected) Ping(ctx context.Context) error {
	return p.inner.Ping(ctx)
}

func (p *Protected) call(ctx context.Context, fn func(context.Context) error) error {
	// fail-fast gate
	if !p.allowRequest() {
		return ErrCircuitOpen
	}

	callCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	err := fn(callCtx)
	if err != nil && ctx.Err() != nil {
		// the caller gave up; that says nothing about the backend
		p.release()
		return err
	}
	p.afterRequest(tripsBreaker(err))

	return err
}

func (p *Protected) release() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == StateHalfOpen && p.halfOpenInFlight > 0 {
		p.halfOpenInFlight--
	}
}

func tripsBreaker(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUnavailable) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return StatusOf(err) >= http.StatusInternalServerError
}

func (p *Protected) allowRequest() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case StateOpen:
		if p.now().Sub(p.openedAt) >= p.cfg.Cooldown {
			p.transition(StateHalfOpen)
			p.halfOpenInFlight = 1
			return true
		}
		return false
	case StateHalfOpen:
		if p.halfOpenInFlight >= p.cfg.HalfOpenMaxCalls {
			return false
		}
		p.halfOpenInFlight++
		return true
	default:
		return true
	}
}

func (p *Protected) afterRequest(failed bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == StateHalfOpen && p.halfOpenInFlight > 0 {
		p.halfOpenInFlight--
	}

	if !failed {
		p.consecutiveFailures = 0
		p.transition(StateClosed)
		return
	}

	p.consecutiveFailures++

	// a failed trial call reopens immediately
	if p.state == StateHalfOpen || p.consecutiveFailures >= p.cfg.FailureThreshold {
		p.openedAt = p.now()
		p.transition(StateOpen)
	}
}

// transition must be called with mu held.
func (p *Protected) transition(to BreakerState) {
	from := p.state
	if from == to {
		return
	}
	p.state = to
	if p.cfg.OnStateChange != nil {
		p.cfg.OnStateChange(from, to)
	}
}
