package api

import (
	"errors"
	"net/http"

	"github.com/kjannette/ape-dashboard/internal/dashboard"
	"github.com/kjannette/ape-dashboard/internal/models"
	"go.uber.org/zap"
)

func (s *Server) handleListTrades(w http.ResponseWriter, r *http.Request) {
	trades, err := s.deps.Trades.List(r.Context(), parseLimit(r, 100))
	if err != nil {
		s.log.Error("fetch trades", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to fetch trades")
		return
	}
	writeJSON(w, http.StatusOK, trades)
}

func (s *Server) handleSubmitTrade(w http.ResponseWriter, r *http.Request) {
	var in models.TradeInput
	if err := decodeBody(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	trade, err := s.deps.Dashboard.SubmitTrade(r.Context(), in)
	switch {
	case errors.Is(err, dashboard.ErrInvalidTrade):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "failed to save trade")
		return
	}
	writeJSON(w, http.StatusCreated, trade)
}

func (s *Server) handleCompletedTrades(w http.ResponseWriter, r *http.Request) {
	completed := s.deps.Dashboard.CompletedTrades()
	if completed == nil {
		completed = []models.CompletedTrade{}
	}
	writeJSON(w, http.StatusOK, completed)
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Dashboard.Positions())
}
