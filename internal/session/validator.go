package session

import (
	"context"
	"sync"
	"time"
)

const DefaultValidationTimeout = 5 * time.Second

// Validator decides whether a page reserved for anonymous visitors (login,
// register) should render or send an already signed-in user elsewhere.
// It starts out validating; it stops once the store settles anonymous or
// the timeout fires. An authenticated result navigates to redirectTo and
// leaves it validating so the page never flashes.
type Validator struct {
	store      *Store
	redirectTo string
	timeout    time.Duration
	nav        Navigator

	mu         sync.Mutex
	validating bool
	redirected bool
}

func NewValidator(store *Store, redirectTo string, timeout time.Duration, nav Navigator) *Validator {
	if timeout <= 0 {
		timeout = DefaultValidationTimeout
	}
	return &Validator{
		store:      store,
		redirectTo: redirectTo,
		timeout:    timeout,
		nav:        nav,
		validating: true,
	}
}

func (v *Validator) Validating() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.validating
}

// Run observes the store until the check settles, the timeout fires or
// ctx is done.
func (v *Validator) Run(ctx context.Context) {
	states, unsubscribe := v.store.Subscribe()
	defer unsubscribe()

	timer := time.NewTimer(v.timeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			v.done()
			return
		case st, ok := <-states:
			if !ok {
				return
			}
			if st.IsLoading {
				continue
			}
			if st.IsAuthenticated {
				v.mu.Lock()
				v.redirected = true
				v.mu.Unlock()
				if v.nav != nil {
					v.nav.Navigate(v.redirectTo)
				}
				return
			}
			v.done()
			return
		}
	}
}

// Await runs the validator and reports whether the caller was redirected.
func (v *Validator) Await(ctx context.Context) bool {
	v.Run(ctx)

	v.mu.Lock()
	defer v.mu.Unlock()
	return v.redirected
}

func (v *Validator) done() {
	v.mu.Lock()
	v.validating = false
	v.mu.Unlock()
}
