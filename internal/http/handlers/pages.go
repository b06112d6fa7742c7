package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/geocoder89/projecthub/internal/guard"
	"github.com/geocoder89/projecthub/internal/rbac"
	"github.com/geocoder89/projecthub/internal/session"
	"github.com/gin-gonic/gin"
)

type PagesConfig struct {
	// CheckTimeout bounds the session check a page waits for.
	CheckTimeout time.Duration
	// LogoutDelay postpones the redirect home after logout.
	LogoutDelay time.Duration
}

type PagesHandler struct {
	svc     AuthService
	cookies SessionCookies
	routes  *rbac.Registry
	cfg     PagesConfig
	log     *slog.Logger
}

func NewPagesHandler(svc AuthService, cookies SessionCookies, routes *rbac.Registry, cfg PagesConfig, log *slog.Logger) *PagesHandler {
	if cfg.CheckTimeout <= 0 {
		cfg.CheckTimeout = session.DefaultValidationTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &PagesHandler{
		svc:     svc,
		cookies: cookies,
		routes:  routes,
		cfg:     cfg,
		log:     log.With("component", "pages"),
	}
}

type pageData struct {
	guard.View
	Error    string
	Notice   string
	Email    string
	Name     string
	LastName string
	Routes   []rbac.RouteConfig
}

// pageNavigator records where the store wants the browser to go; the
// handler turns it into a redirect.
type pageNavigator struct {
	mu     sync.Mutex
	target string
}

func (n *pageNavigator) Navigate(path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.target = path
}

func (n *pageNavigator) Target() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.target
}

const ctxNavigator = "session.navigator"

// NewStore builds the store for one page request. It is the guard's
// StoreFactory.
func (h *PagesHandler) NewStore(c *gin.Context) *session.Store {
	nav := &pageNavigator{}
	c.Set(ctxNavigator, nav)

	return session.NewStore(newRequestSession(c, h.svc, h.cookies), session.Options{
		Navigator:    nav,
		Logger:       h.log,
		LogoutDelay:  0,
		CheckTimeout: h.cfg.CheckTimeout,
	})
}

func (h *PagesHandler) store(c *gin.Context) (*session.Store, *pageNavigator) {
	s, ok := guard.StoreFrom(c)
	if !ok {
		s = h.NewStore(c)
		c.Set(guard.CtxStore, s)
	}
	v, _ := c.Get(ctxNavigator)
	nav, ok := v.(*pageNavigator)
	if !ok {
		nav = &pageNavigator{}
	}
	return s, nav
}

func (h *PagesHandler) view(c *gin.Context, st session.State) pageData {
	v := guard.View{Path: c.Request.URL.Path, User: st.User, State: st}
	if rc, ok := h.routes.Resolve(v.Path); ok {
		v.Title = rc.Title
	}
	return pageData{View: v}
}

func (h *PagesHandler) Home(c *gin.Context) {
	s, _ := h.store(c)
	h.initBounded(c, s)

	d := h.view(c, s.Snapshot())
	d.Title = "Home"
	c.HTML(http.StatusOK, "home.html", d)
}

func (h *PagesHandler) LoginPage(c *gin.Context) {
	if h.redirectIfSignedIn(c) {
		return
	}

	s, _ := h.store(c)
	d := h.view(c, s.Snapshot())
	d.Title = "Log in"
	if c.Query("registered") != "" {
		d.Notice = "Account created. You can log in now."
	}
	c.HTML(http.StatusOK, "login.html", d)
}

func (h *PagesHandler) Login(c *gin.Context) {
	s, _ := h.store(c)

	var creds session.Credentials
	if err := c.ShouldBind(&creds); err != nil {
		d := h.view(c, s.Snapshot())
		d.Title = "Log in"
		d.Email = creds.Email
		d.Error = "Please enter a valid email and password"
		c.HTML(http.StatusBadRequest, "login.html", d)
		return
	}

	ctx, cancel := h.bounded(c)
	defer cancel()

	if err := s.Login(ctx, creds); err != nil {
		st := s.Snapshot()
		d := h.view(c, st)
		d.Title = "Log in"
		d.Email = creds.Email
		d.Error = st.Error

		status := http.StatusUnauthorized
		if sessionError(err).Status == 0 {
			status = http.StatusBadGateway
		}
		c.HTML(status, "login.html", d)
		return
	}

	c.Redirect(http.StatusSeeOther, rbac.PageDashboard)
}

func (h *PagesHandler) RegisterPage(c *gin.Context) {
	if h.redirectIfSignedIn(c) {
		return
	}

	s, _ := h.store(c)
	d := h.view(c, s.Snapshot())
	d.Title = "Register"
	c.HTML(http.StatusOK, "register.html", d)
}

func (h *PagesHandler) Register(c *gin.Context) {
	s, _ := h.store(c)

	var reg session.Registration
	bindErr := c.ShouldBind(&reg)

	render := func(status int, msg string) {
		d := h.view(c, s.Snapshot())
		d.Title = "Register"
		d.Email, d.Name, d.LastName = reg.Email, reg.Name, reg.LastName
		d.Error = msg
		c.HTML(status, "register.html", d)
	}

	if bindErr != nil {
		render(http.StatusBadRequest, "Please fill in every field; the password needs at least 6 characters")
		return
	}

	ctx, cancel := h.bounded(c)
	defer cancel()

	if err := s.Register(ctx, reg); err != nil {
		se := sessionError(err)
		status, msg := se.Status, se.Message
		if status < 400 || status > 499 {
			status, msg = http.StatusInternalServerError, "Register failed"
		}
		render(status, msg)
		return
	}

	c.Redirect(http.StatusSeeOther, rbac.PageLogin+"?registered=1")
}

// Logout clears the session cookies and sends the browser home.
func (h *PagesHandler) Logout(c *gin.Context) {
	s, nav := h.store(c)

	s.Logout(c.Request.Context())
	// the backend call and revocation must land before the next request
	s.Wait()
	h.cookies.Clear(c)

	to := nav.Target()
	if to == "" {
		to = rbac.PageHome
	}
	c.Redirect(http.StatusSeeOther, to)
}

func (h *PagesHandler) Dashboard(c *gin.Context) {
	h.protected(c, "dashboard.html")
}

func (h *PagesHandler) Admin(c *gin.Context) {
	h.protected(c, "admin.html")
}

func (h *PagesHandler) Unauthorized(c *gin.Context) {
	s, _ := h.store(c)
	h.initBounded(c, s)
	d := h.view(c, s.Snapshot())
	d.Title = "Unauthorized"
	c.HTML(http.StatusOK, "unauthorized.html", d)
}

// protected renders a page the guard already let through.
func (h *PagesHandler) protected(c *gin.Context, tmpl string) {
	s, _ := h.store(c)
	st := s.Snapshot()
	if st.User == nil {
		// only reachable without the guard in front
		c.HTML(http.StatusUnauthorized, guard.TemplateFallback, h.view(c, st))
		return
	}

	d := h.view(c, st)
	d.Routes = h.routes.Routes()
	c.HTML(http.StatusOK, tmpl, d)
}

// redirectIfSignedIn runs the session validator for pages meant for
// anonymous visitors.
func (h *PagesHandler) redirectIfSignedIn(c *gin.Context) bool {
	s, nav := h.store(c)
	h.initBounded(c, s)

	v := session.NewValidator(s, rbac.PageDashboard, h.cfg.CheckTimeout, nav)
	if !v.Await(c.Request.Context()) {
		return false
	}

	c.Redirect(http.StatusFound, nav.Target())
	return true
}

func (h *PagesHandler) initBounded(c *gin.Context, s *session.Store) {
	ctx, cancel := h.bounded(c)
	defer cancel()
	s.Init(ctx)
}

func (h *PagesHandler) bounded(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), h.cfg.CheckTimeout)
}

func sessionError(err error) *session.Error {
	var se *session.Error
	if errors.As(err, &se) {
		return se
	}
	return &session.Error{Message: err.Error()}
}
