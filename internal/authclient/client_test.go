package authclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/geocoder89/projecthub/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGateway mimics the cookie behaviour of the gateway auth API.
func fakeGateway(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "accessToken", Value: "tok", Path: "/", HttpOnly: true})
		_, _ = w.Write([]byte(`{"success":true}`))
	})
	mux.HandleFunc("/api/auth/me", func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("accessToken"); err != nil || c.Value != "tok" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"code":"unauthorized","message":"Unauthorized"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"user":{"id":"u1","email":"a@b.com","name":"A","fullName":"A B","role":"admin"}}`))
	})
	mux.HandleFunc("/api/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "accessToken", Value: "", Path: "/", MaxAge: -1})
		_, _ = w.Write([]byte(`{"success":true}`))
	})
	mux.HandleFunc("/api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"No refresh token"}`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_CookieRoundTrip(t *testing.T) {
	srv := fakeGateway(t)
	c, err := New(srv.URL, time.Second)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = c.Me(ctx)
	require.True(t, session.IsUnauthenticated(err))

	require.NoError(t, c.Login(ctx, session.Credentials{Email: "a@b.com", Password: "pw"}))

	u, err := c.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
	assert.Equal(t, "admin", u.Role.String())

	require.NoError(t, c.Logout(ctx))
	_, err = c.Me(ctx)
	assert.True(t, session.IsUnauthenticated(err))
}

func TestClient_ErrorMessages(t *testing.T) {
	srv := fakeGateway(t)
	c, err := New(srv.URL, time.Second)
	require.NoError(t, err)

	err = c.Refresh(context.Background())
	var se *session.Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.Status)
	assert.Equal(t, "No refresh token", se.Message)

	_, err = c.Me(context.Background())
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "Unauthorized", se.Message)
}

func TestClient_DrivesStore(t *testing.T) {
	srv := fakeGateway(t)
	c, err := New(srv.URL, time.Second)
	require.NoError(t, err)

	s := session.NewStore(c, session.Options{})
	s.Init(context.Background())
	assert.False(t, s.Snapshot().IsAuthenticated)

	require.NoError(t, s.Login(context.Background(), session.Credentials{Email: "a@b.com", Password: "pw"}))
	st := s.Snapshot()
	require.True(t, st.IsAuthenticated)
	assert.Equal(t, "a@b.com", st.User.Email)

	s.Logout(context.Background())
	s.Wait()
	s.CheckAuthStatus(context.Background())
	assert.False(t, s.Snapshot().IsAuthenticated)
}
