package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/geocoder89/projecthub/internal/domain/user"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	mu sync.Mutex

	meUser user.User
	meErr  error

	// when set, overrides meUser/meErr; n counts Me calls from 1
	meByCall func(n int) (user.User, error)

	// when set, Me signals entered and blocks until release is closed
	entered chan struct{}
	release chan struct{}

	loginErr   error
	logoutErr  error
	refreshErr error

	meCalls      int
	meCtxErr     error // context state seen by the last Me when it returned
	logoutCalls  int
	refreshCalls int
}

func (f *fakeAPI) Me(ctx context.Context) (user.User, error) {
	f.mu.Lock()
	f.meCalls++
	n := f.meCalls
	entered, release := f.entered, f.release
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
		<-release
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.meCtxErr = ctx.Err()
	if f.meByCall != nil {
		return f.meByCall(n)
	}
	return f.meUser, f.meErr
}

func (f *fakeAPI) Login(context.Context, Credentials) error { return f.loginErr }

func (f *fakeAPI) Register(context.Context, Registration) error { return nil }

func (f *fakeAPI) Logout(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logoutCalls++
	return f.logoutErr
}

func (f *fakeAPI) Refresh(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshCalls++
	return f.refreshErr
}

func (f *fakeAPI) counts() (me, logout, refresh int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.meCalls, f.logoutCalls, f.refreshCalls
}

var alice = user.User{ID: "u1", Email: "alice@example.com", Name: "Alice", FullName: "Alice Doe", Role: user.RoleUser}

type recordingNav struct {
	mu    sync.Mutex
	paths []string
}

func (n *recordingNav) Navigate(p string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.paths = append(n.paths, p)
}

func (n *recordingNav) visited() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.paths...)
}

func TestStore_StartsLoading(t *testing.T) {
	s := NewStore(&fakeAPI{}, Options{})
	st := s.Snapshot()
	assert.True(t, st.IsLoading)
	assert.False(t, st.IsAuthenticated)
	assert.Nil(t, st.User)
}

func TestStore_CheckAuthStatus(t *testing.T) {
	cases := []struct {
		name     string
		meErr    error
		wantAuth bool
		wantErr  string
	}{
		{name: "authenticated", wantAuth: true},
		{name: "unauthorized", meErr: &Error{Status: 401, Message: "no"}},
		{name: "forbidden", meErr: &Error{Status: 403}},
		{name: "transport", meErr: errors.New("dial tcp: refused"), wantErr: "Error checking authentication"},
		{name: "server error", meErr: &Error{Status: 502, Message: "bad gateway"}, wantErr: "Error checking authentication"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := NewStore(&fakeAPI{meUser: alice, meErr: tc.meErr}, Options{})
			s.CheckAuthStatus(context.Background())

			st := s.Snapshot()
			assert.False(t, st.IsLoading)
			assert.Equal(t, tc.wantAuth, st.IsAuthenticated)
			assert.Equal(t, tc.wantAuth, st.User != nil)
			assert.Equal(t, tc.wantErr, st.Error)
		})
	}
}

func TestStore_CheckAuthStatusIsIdempotent(t *testing.T) {
	s := NewStore(&fakeAPI{meUser: alice}, Options{})

	s.CheckAuthStatus(context.Background())
	first := s.Snapshot()
	s.CheckAuthStatus(context.Background())
	second := s.Snapshot()

	assert.Equal(t, first, second)
	require.NotNil(t, second.User)
	assert.Equal(t, alice, *second.User)
}

func TestStore_SnapshotIsACopy(t *testing.T) {
	s := NewStore(&fakeAPI{meUser: alice}, Options{})
	s.CheckAuthStatus(context.Background())

	st := s.Snapshot()
	st.User.Role = user.RoleAdmin

	assert.Equal(t, user.RoleUser, s.Snapshot().Role())
}

func TestStore_LoginFailureKeepsBackendMessage(t *testing.T) {
	api := &fakeAPI{loginErr: &Error{Status: 401, Message: "Invalid credentials"}}
	s := NewStore(api, Options{})

	err := s.Login(context.Background(), Credentials{Email: "a@b.com", Password: "x"})
	require.Error(t, err)

	require.EqualError(t, err, "Invalid credentials")

	var se *Error
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "Invalid credentials", se.Message)
	assert.Equal(t, 401, se.Status)

	st := s.Snapshot()
	assert.Equal(t, "Invalid credentials", st.Error)
	assert.False(t, st.IsLoading)
	assert.False(t, st.IsAuthenticated)

	me, _, _ := api.counts()
	assert.Equal(t, 0, me)
}

func TestStore_LoginFailureDefaultMessage(t *testing.T) {
	s := NewStore(&fakeAPI{loginErr: errors.New("boom")}, Options{})

	err := s.Login(context.Background(), Credentials{})
	require.EqualError(t, err, "Error logging in")
	assert.Equal(t, "Error logging in", s.Snapshot().Error)
}

func TestStore_LoginSuccessReadsIdentity(t *testing.T) {
	api := &fakeAPI{meUser: alice}
	s := NewStore(api, Options{})

	require.NoError(t, s.Login(context.Background(), Credentials{Email: alice.Email, Password: "pw"}))

	st := s.Snapshot()
	assert.True(t, st.IsAuthenticated)
	assert.Equal(t, alice.ID, st.User.ID)

	me, _, _ := api.counts()
	assert.Equal(t, 1, me)
}

func TestStore_ClearError(t *testing.T) {
	s := NewStore(&fakeAPI{loginErr: errors.New("boom")}, Options{})
	_ = s.Login(context.Background(), Credentials{})

	s.ClearError()
	assert.Equal(t, "", s.Snapshot().Error)
}

func TestStore_LogoutAlwaysClears(t *testing.T) {
	api := &fakeAPI{meUser: alice, logoutErr: errors.New("backend down")}
	nav := &recordingNav{}
	s := NewStore(api, Options{Navigator: nav})

	s.CheckAuthStatus(context.Background())
	require.True(t, s.Snapshot().IsAuthenticated)

	s.Logout(context.Background())

	st := s.Snapshot()
	assert.False(t, st.IsAuthenticated)
	assert.False(t, st.IsLoading)
	assert.Nil(t, st.User)
	assert.Equal(t, "", st.Error)
	assert.Equal(t, []string{"/"}, nav.visited())

	s.Wait()
	_, logout, _ := api.counts()
	assert.Equal(t, 1, logout)
}

func TestStore_LogoutDelayedNavigation(t *testing.T) {
	nav := &recordingNav{}
	s := NewStore(&fakeAPI{}, Options{Navigator: nav, LogoutDelay: 20 * time.Millisecond})

	s.Logout(context.Background())
	assert.Empty(t, nav.visited())

	assert.Eventually(t, func() bool {
		return len(nav.visited()) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestStore_RefreshToken(t *testing.T) {
	t.Run("success rechecks", func(t *testing.T) {
		api := &fakeAPI{meUser: alice}
		s := NewStore(api, Options{})

		assert.True(t, s.RefreshToken(context.Background()))
		assert.True(t, s.Snapshot().IsAuthenticated)
	})

	t.Run("failure clears without logout", func(t *testing.T) {
		api := &fakeAPI{meUser: alice}
		s := NewStore(api, Options{})
		s.CheckAuthStatus(context.Background())

		api.refreshErr = &Error{Status: 401}
		assert.False(t, s.RefreshToken(context.Background()))

		st := s.Snapshot()
		assert.False(t, st.IsAuthenticated)
		assert.Equal(t, "", st.Error)

		s.Wait()
		_, logout, _ := api.counts()
		assert.Equal(t, 0, logout)
	})
}

func TestStore_InitRunsOnce(t *testing.T) {
	api := &fakeAPI{meUser: alice}
	s := NewStore(api, Options{})

	s.Init(context.Background())
	s.Init(context.Background())
	assert.True(t, s.Initialized())

	me, _, _ := api.counts()
	assert.Equal(t, 1, me)

	s.Reset()
	assert.False(t, s.Initialized())
	assert.True(t, s.Snapshot().IsLoading)

	s.Init(context.Background())
	me, _, _ = api.counts()
	assert.Equal(t, 2, me)
}

func TestStore_StaleCheckIsDropped(t *testing.T) {
	api := &fakeAPI{
		meUser:  alice,
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	s := NewStore(api, Options{})

	done := make(chan struct{})
	go func() {
		s.CheckAuthStatus(context.Background())
		close(done)
	}()

	<-api.entered
	s.Logout(context.Background())
	close(api.release)
	<-done

	st := s.Snapshot()
	assert.False(t, st.IsAuthenticated)
	assert.Nil(t, st.User)
	s.Wait()
}

func TestStore_CheckAfterLogoutMakesItsOwnCall(t *testing.T) {
	api := &fakeAPI{
		entered: make(chan struct{}, 2),
		release: make(chan struct{}),
		meByCall: func(n int) (user.User, error) {
			if n == 1 {
				return alice, nil
			}
			return user.User{}, &Error{Status: 401}
		},
	}
	s := NewStore(api, Options{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.CheckAuthStatus(context.Background())
	}()
	<-api.entered

	s.Logout(context.Background())

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.CheckAuthStatus(context.Background())
	}()

	select {
	case <-api.entered:
	case <-time.After(time.Second):
		t.Fatalf("check after logout joined the earlier call")
	}
	close(api.release)
	wg.Wait()
	s.Wait()

	st := s.Snapshot()
	assert.False(t, st.IsAuthenticated)
	assert.Nil(t, st.User)
	assert.False(t, st.IsLoading)

	me, _, _ := api.counts()
	assert.Equal(t, 2, me)
}

func TestStore_LoginDuringInitReadsFreshIdentity(t *testing.T) {
	api := &fakeAPI{
		entered: make(chan struct{}, 2),
		release: make(chan struct{}),
		meByCall: func(n int) (user.User, error) {
			if n == 1 {
				return user.User{}, &Error{Status: 401}
			}
			return alice, nil
		},
	}
	s := NewStore(api, Options{})

	initDone := make(chan struct{})
	go func() {
		s.Init(context.Background())
		close(initDone)
	}()
	<-api.entered

	loginErr := make(chan error, 1)
	go func() {
		loginErr <- s.Login(context.Background(), Credentials{Email: alice.Email, Password: "pw"})
	}()

	select {
	case <-api.entered:
	case <-time.After(time.Second):
		t.Fatalf("post-login check joined the pre-login call")
	}
	close(api.release)
	<-initDone
	require.NoError(t, <-loginErr)

	st := s.Snapshot()
	require.True(t, st.IsAuthenticated)
	assert.Equal(t, alice.ID, st.User.ID)

	me, _, _ := api.counts()
	assert.Equal(t, 2, me)
}

func TestStore_CancelledCallerDoesNotFailJoiners(t *testing.T) {
	api := &fakeAPI{
		meUser:  alice,
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	s := NewStore(api, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.CheckAuthStatus(ctx)
	}()
	<-api.entered

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.CheckAuthStatus(context.Background())
	}()
	// give the follower time to join the in-flight call
	time.Sleep(50 * time.Millisecond)

	cancel()
	close(api.release)
	wg.Wait()

	api.mu.Lock()
	ctxErr := api.meCtxErr
	api.mu.Unlock()
	assert.NoError(t, ctxErr)

	st := s.Snapshot()
	require.True(t, st.IsAuthenticated)
	assert.Equal(t, alice.ID, st.User.ID)
	assert.Equal(t, "", st.Error)

	me, _, _ := api.counts()
	assert.Equal(t, 1, me)
}

func TestStore_ConcurrentChecksShareOneCall(t *testing.T) {
	api := &fakeAPI{
		meUser:  alice,
		entered: make(chan struct{}, 4),
		release: make(chan struct{}),
	}
	s := NewStore(api, Options{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.CheckAuthStatus(context.Background())
	}()
	<-api.entered

	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.CheckAuthStatus(context.Background())
		}()
	}
	// give the followers time to join the in-flight call
	time.Sleep(50 * time.Millisecond)
	close(api.release)
	wg.Wait()

	me, _, _ := api.counts()
	assert.Equal(t, 1, me)
	assert.True(t, s.Snapshot().IsAuthenticated)
}

func TestStore_SubscribeSeesLatest(t *testing.T) {
	s := NewStore(&fakeAPI{meUser: alice}, Options{})

	states, unsubscribe := s.Subscribe()
	defer unsubscribe()

	s.CheckAuthStatus(context.Background())

	st := <-states
	assert.True(t, st.IsAuthenticated)
	assert.False(t, st.IsLoading)

	unsubscribe()
	_, ok := <-states
	assert.False(t, ok)
}
