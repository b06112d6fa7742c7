package backend

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/geocoder89/projecthub/internal/domain/user"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	meErr error
	calls int
}

func (f *fakeAPI) Login(context.Context, string, string) (Tokens, error) { return Tokens{}, nil }
func (f *fakeAPI) Register(context.Context, Registration) (json.RawMessage, error) {
	return nil, nil
}
func (f *fakeAPI) Me(context.Context, string) (user.User, error) {
	f.calls++
	return user.User{ID: "u"}, f.meErr
}
func (f *fakeAPI) Refresh(context.Context, string) (Tokens, error) { return Tokens{}, nil }
func (f *fakeAPI) Logout(context.Context, string) error           { return nil }
func (f *fakeAPI) Ping(context.Context) error                     { return nil }

func TestProtected_OpensAfterThreshold(t *testing.T) {
	inner := &fakeAPI{meErr: ErrUnavailable}
	var transitions []string
	p := NewProtected(inner, BreakerConfig{
		FailureThreshold: 2,
		Cooldown:         time.Minute,
		OnStateChange: func(from, to BreakerState) {
			transitions = append(transitions, string(from)+"->"+string(to))
		},
	})

	for i := 0; i < 2; i++ {
		_, err := p.Me(context.Background(), "t")
		require.ErrorIs(t, err, ErrUnavailable)
	}
	assert.Equal(t, StateOpen, p.State())

	_, err := p.Me(context.Background(), "t")
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 2, inner.calls)
	assert.Equal(t, []string{"closed->open"}, transitions)
}

func TestProtected_UnauthorizedDoesNotTrip(t *testing.T) {
	inner := &fakeAPI{meErr: &Error{Status: 401, Message: "nope"}}
	p := NewProtected(inner, BreakerConfig{FailureThreshold: 1})

	for i := 0; i < 3; i++ {
		_, err := p.Me(context.Background(), "t")
		require.True(t, IsUnauthorized(err))
	}
	assert.Equal(t, StateClosed, p.State())
}

func TestProtected_HalfOpenRecovers(t *testing.T) {
	inner := &fakeAPI{meErr: &Error{Status: 503}}
	p := NewProtected(inner, BreakerConfig{FailureThreshold: 1, Cooldown: time.Second})

	now := time.Now()
	p.now = func() time.Time { return now }

	_, _ = p.Me(context.Background(), "t")
	require.Equal(t, StateOpen, p.State())

	now = now.Add(2 * time.Second)
	inner.meErr = nil

	u, err := p.Me(context.Background(), "t")
	require.NoError(t, err)
	assert.Equal(t, "u", u.ID)
	assert.Equal(t, StateClosed, p.State())
}

func TestProtected_HalfOpenFailureReopens(t *testing.T) {
	inner := &fakeAPI{meErr: ErrUnavailable}
	p := NewProtected(inner, BreakerConfig{FailureThreshold: 1, Cooldown: time.Second})

	now := time.Now()
	p.now = func() time.Time { return now }

	_, _ = p.Me(context.Background(), "t")
	now = now.Add(2 * time.Second)

	_, err := p.Me(context.Background(), "t")
	assert.True(t, errors.Is(err, ErrUnavailable))
	assert.Equal(t, StateOpen, p.State())
}

func TestProtected_CallerCancellationDoesNotTrip(t *testing.T) {
	inner := &fakeAPI{meErr: ErrUnavailable}
	p := NewProtected(inner, BreakerConfig{FailureThreshold: 1, Cooldown: time.Minute})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for i := 0; i < 3; i++ {
		_, err := p.Me(ctx, "t")
		require.Error(t, err)
	}
	assert.Equal(t, StateClosed, p.State())
	assert.Equal(t, 3, inner.calls)

	// a real failure still counts
	_, err := p.Me(context.Background(), "t")
	require.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, StateOpen, p.State())
}
