package supabaseops

import (
	"net/http"

	"github.com/GuardianChain/launch_layer/internal/errors"
	"github.com/GuardianChain/launch_layer/internal/httputil"
)

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.Health(r.Context())
	status := http.StatusOK
	if report.Status == StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	httputil.WriteJSON(w, status, report)
}

func (s *Service) handleHarden(w http.ResponseWriter, r *http.Request) {
	report, err := s.Harden(r.Context())
	if err != nil {
		if errors.Is(err, ErrNotConfigured) {
			httputil.WriteError(w, r, errors.Unavailable(err.Error(), nil).WithDetails("configured", false))
			return
		}
		httputil.WriteError(w, r, err)
		return
	}

	status := http.StatusOK
	if !report.OK {
		status = http.StatusInternalServerError
	}
	httputil.WriteJSON(w, status, report)
}
