package api

import (
	"net/http"
	"time"
)

type healthResponse struct {
	Status    string         `json:"status"`
	Timestamp string         `json:"timestamp"`
	Services  healthServices `json:"services"`
}

type healthServices struct {
	Database      string `json:"database"`
	PriceProvider string `json:"priceProvider"`
	PriceRefresh  string `json:"priceRefresh"`
	StreamClients int    `json:"streamClients"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbStatus := "connected"
	if s.deps.DB == nil {
		dbStatus = "not configured"
	} else if err := s.deps.DB.Ping(r.Context()); err != nil {
		dbStatus = "disconnected"
	}

	refresh := "stopped"
	if s.deps.Dashboard.Refreshing() {
		refresh = "running"
	}

	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Services: healthServices{
			Database:      dbStatus,
			PriceProvider: s.deps.Prices.Provider().Name(),
			PriceRefresh:  refresh,
			StreamClients: s.hub.count(),
		},
	})
}
