package api

import (
	"net/http"

	"go.uber.org/zap"
)

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Dashboard.View())
}

// handleRefresh triggers the price refresh job now and returns the
// resulting view.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Dashboard.RefreshNow(r.Context()); err != nil {
		s.log.Warn("manual refresh aborted", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "refresh aborted")
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Dashboard.View())
}
