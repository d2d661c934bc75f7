package api

import (
	"net/http"
	"strings"

	"github.com/kjannette/ape-dashboard/internal/pricing"
	"github.com/kjannette/ape-dashboard/internal/solana"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var providerNames = map[string]bool{
	"jupiter":   true,
	"birdeye":   true,
	"coingecko": true,
	"manual":    true,
}

type priceJSON struct {
	T int64           `json:"t"`
	P decimal.Decimal `json:"p"`
}

type cacheStatusResponse struct {
	Provider string                `json:"provider"`
	Entries  []pricing.EntryStatus `json:"entries"`
}

func (s *Server) handleCacheStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, cacheStatusResponse{
		Provider: s.deps.Prices.Provider().Name(),
		Entries:  s.deps.Prices.Status(),
	})
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	s.deps.Prices.Clear()
	s.log.Info("price cache cleared")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleManualPrice(w http.ResponseWriter, r *http.Request) {
	address := r.PathValue("address")
	if err := solana.ValidateMint(address); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var body struct {
		Price decimal.Decimal `json:"price"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if body.Price.IsNegative() {
		writeError(w, http.StatusBadRequest, "price must not be negative")
		return
	}

	s.deps.Prices.SetManualPrice(address, body.Price)
	s.log.Info("manual price set", zap.String("address", address), zap.String("price", body.Price.String()))
	writeJSON(w, http.StatusOK, map[string]any{"address": address, "price": body.Price})
}

func (s *Server) handleSetProvider(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Provider string `json:"provider"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	name := strings.ToLower(strings.TrimSpace(body.Provider))
	if !providerNames[name] {
		writeError(w, http.StatusBadRequest, "provider must be one of jupiter|birdeye|coingecko|manual")
		return
	}

	s.deps.Prices.SetProvider(pricing.NewProvider(name, s.deps.Keys))
	writeJSON(w, http.StatusOK, map[string]string{"provider": name})
}

func (s *Server) handlePriceHistory(w http.ResponseWriter, r *http.Request) {
	address := r.PathValue("address")
	if err := solana.ValidateMint(address); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if s.deps.History == nil {
		writeJSON(w, http.StatusOK, []priceJSON{})
		return
	}

	points, err := s.deps.History.History(r.Context(), address, parseLimit(r, 100))
	if err != nil {
		s.log.Error("fetch price history", zap.String("address", address), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to fetch price history")
		return
	}

	out := make([]priceJSON, len(points))
	for i, p := range points {
		out[i] = priceJSON{T: p.Timestamp.UnixMilli(), P: p.Price}
	}
	writeJSON(w, http.StatusOK, out)
}
