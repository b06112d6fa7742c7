package observability

import (
	"net/http"
	"strconv"
	"time"
)

// ObserveBackend records one auth backend round trip. status 0 means the
// backend never answered.
func (p *Prom) ObserveBackend(op string, status int, d time.Duration) {
	p.BackendDuration.WithLabelValues(op, strconv.Itoa(status)).Observe(d.Seconds())

	if class := classifyBackendStatus(status); class != "" {
		p.BackendErrors.WithLabelValues(op, class).Inc()
	}
}

func classifyBackendStatus(status int) string {
	switch {
	case status == 0:
		return "unreachable"
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return "rejected"
	case status == http.StatusTooManyRequests:
		return "throttled"
	case status >= 500:
		return "server_error"
	case status >= 400:
		return "client_error"
	default:
		return ""
	}
}
