package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger reports whether a dependency is reachable.
type Pinger func(ctx context.Context) error

type HealthHandler struct {
	checks  map[string]Pinger
	timeout time.Duration
}

// NewHealthHandler takes the named readiness checks; nil entries are
// skipped so optional dependencies can be passed unconditionally.
func NewHealthHandler(checks map[string]Pinger) *HealthHandler {
	clean := make(map[string]Pinger, len(checks))
	for name, p := range checks {
		if p != nil {
			clean[name] = p
		}
	}
	return &HealthHandler{checks: clean, timeout: time.Second}
}

func (h *HealthHandler) Healthz(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HealthHandler) Readyz(ctx *gin.Context) {
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make(map[string]string, len(names))
	ready := true

	for _, name := range names {
		cctx, cancel := context.WithTimeout(ctx.Request.Context(), h.timeout)
		err := h.checks[name](cctx)
		cancel()

		if err != nil {
			ready = false
			results[name] = err.Error()
			continue
		}
		results[name] = "ok"
	}

	if !ready {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "checks": results})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "ready", "checks": results})
}
