package session

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/geocoder89/projecthub/internal/domain/user"
	"github.com/geocoder89/projecthub/internal/rbac"
	"golang.org/x/sync/singleflight"
)

type Credentials struct {
	Email    string `json:"email" form:"email" binding:"required,email"`
	Password string `json:"password" form:"password" binding:"required"`
}

type Registration struct {
	Email    string `json:"email" form:"email" binding:"required,email"`
	Password string `json:"password" form:"password" binding:"required,min=6"`
	Name     string `json:"name" form:"name" binding:"required"`
	LastName string `json:"lastName" form:"lastName" binding:"required"`
}

// Collaborator performs the calls the store depends on.
type Collaborator interface {
	Me(ctx context.Context) (user.User, error)
	Login(ctx context.Context, creds Credentials) error
	Register(ctx context.Context, reg Registration) error
	Logout(ctx context.Context) error
	Refresh(ctx context.Context) error
}

type Navigator interface {
	Navigate(path string)
}

type NavigatorFunc func(path string)

func (f NavigatorFunc) Navigate(path string) { f(path) }

type Options struct {
	Navigator     Navigator
	Logger        *slog.Logger
	LogoutDelay   time.Duration // 0 navigates synchronously
	LogoutTimeout time.Duration // bound on the background logout call
	CheckTimeout  time.Duration // bound on a shared who-am-I call
}

// Store is the single writer of State. All methods are safe for
// concurrent use; readers only ever see copies.
type Store struct {
	api  Collaborator
	nav  Navigator
	log  *slog.Logger
	opts Options

	mu          sync.Mutex
	state       State
	epoch       uint64
	initialized bool
	subs        map[int]chan State
	nextSub     int

	checks singleflight.Group
	bg     sync.WaitGroup
}

func NewStore(api Collaborator, opts Options) *Store {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.LogoutTimeout <= 0 {
		opts.LogoutTimeout = 5 * time.Second
	}
	if opts.CheckTimeout <= 0 {
		opts.CheckTimeout = 10 * time.Second
	}

	return &Store{
		api:   api,
		nav:   opts.Navigator,
		log:   opts.Logger.With("component", "session_store"),
		opts:  opts,
		state: State{IsLoading: true},
		subs:  make(map[int]chan State),
	}
}

func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Init runs the first auth check. Only the first call on a Store does
// anything.
func (s *Store) Init(ctx context.Context) {
	s.mu.Lock()
	if s.initialized {
		s.mu.Unlock()
		return
	}
	s.initialized = true
	s.mu.Unlock()

	s.CheckAuthStatus(ctx)
}

func (s *Store) Initialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}

type meResult struct {
	user user.User
	err  error
}

// CheckAuthStatus asks the collaborator who the caller is. Concurrent
// calls issued under the same epoch share one request. A result is
// dropped if the state was cleared while it was in flight.
func (s *Store) CheckAuthStatus(ctx context.Context) {
	epoch := s.update(func(st *State) {
		st.IsLoading = true
		st.Error = ""
	})

	// Detached from the leader's cancellation, bounded by CheckTimeout. Do
	// runs fn on the leader's goroutine.
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.CheckTimeout)
	defer cancel()

	v, _, _ := s.checks.Do(strconv.FormatUint(epoch, 10), func() (any, error) {
		u, err := s.api.Me(callCtx)
		return meResult{user: u, err: err}, nil
	})
	res := v.(meResult)

	switch {
	case res.err == nil:
		u := res.user
		s.settle(epoch, State{User: &u})
	case IsUnauthenticated(res.err):
		s.settle(epoch, anonymous())
	default:
		s.log.Warn("auth check failed", "err", res.err)
		s.settle(epoch, State{Error: msgCheckFailed})
	}
}

// Login authenticates and then re-reads the principal; the identity
// always comes from the who-am-I call, never from the login reply.
func (s *Store) Login(ctx context.Context, creds Credentials) error {
	s.update(func(st *State) {
		st.IsLoading = true
		st.Error = ""
	})

	if err := s.api.Login(ctx, creds); err != nil {
		msg := messageOf(err, msgLoginFailed)
		s.update(func(st *State) {
			st.IsLoading = false
			st.Error = msg
		})
		return &Error{Status: statusOf(err), Message: msg}
	}

	// Checks started before the new cookies were set must not commit.
	s.advance()
	s.CheckAuthStatus(ctx)
	return nil
}

// Register never touches the state.
func (s *Store) Register(ctx context.Context, reg Registration) error {
	return s.api.Register(ctx, reg)
}

// Logout clears the state at once, tells the collaborator in the
// background and navigates home.
func (s *Store) Logout(ctx context.Context) {
	s.clear()

	s.bg.Add(1)
	go func() {
		defer s.bg.Done()

		bgCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.LogoutTimeout)
		defer cancel()

		if err := s.api.Logout(bgCtx); err != nil {
			s.log.Warn("logout call failed", "err", err)
		}
	}()

	if s.nav == nil {
		return
	}
	if s.opts.LogoutDelay <= 0 {
		s.nav.Navigate(rbac.PageHome)
		return
	}
	time.AfterFunc(s.opts.LogoutDelay, func() { s.nav.Navigate(rbac.PageHome) })
}

// Wait blocks until background logout calls have returned.
func (s *Store) Wait() {
	s.bg.Wait()
}

// RefreshToken rotates the access token. On failure the state is cleared
// without calling logout.
func (s *Store) RefreshToken(ctx context.Context) bool {
	if err := s.api.Refresh(ctx); err != nil {
		s.log.Info("token refresh failed", "err", err)
		s.clear()
		return false
	}

	s.advance()
	s.CheckAuthStatus(ctx)
	return true
}

func (s *Store) ClearError() {
	s.update(func(st *State) { st.Error = "" })
}

// Reset returns the store to its initial state and allows Init to run
// again.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.epoch++
	s.initialized = false
	s.commitLocked(State{IsLoading: true})
}

// Subscribe returns a channel that always holds the latest state. Slow
// readers miss intermediate states, never the last one.
func (s *Store) Subscribe() (<-chan State, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++

	ch := make(chan State, 1)
	ch <- s.state.clone()
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
			close(ch)
		})
	}
}

func (s *Store) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.epoch++
	s.commitLocked(anonymous())
}

// advance starts a new epoch without touching the state.
func (s *Store) advance() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
}

// update mutates the current state in place and returns the epoch it
// was applied under.
func (s *Store) update(fn func(*State)) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.state
	fn(&next)
	s.commitLocked(next)
	return s.epoch
}

// settle commits a terminal state unless a clearing operation happened
// after epoch.
func (s *Store) settle(epoch uint64, next State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if epoch != s.epoch {
		s.log.Debug("dropping stale auth result", "issued", epoch, "current", s.epoch)
		return false
	}
	s.commitLocked(next)
	return true
}

// commitLocked must be called with mu held.
func (s *Store) commitLocked(next State) {
	next.IsAuthenticated = next.User != nil
	s.state = next

	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- next.clone():
		default:
		}
	}
}
