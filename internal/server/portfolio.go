package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"marketdash/internal/portfolio"

	"go.uber.org/zap"
)

type addHoldingRequest struct {
	UserID string `json:"userId"`
	Stock  string `json:"stock"`
}

// portfolioError maps service errors onto status codes.
func (s *Server) portfolioError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, portfolio.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, portfolio.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		s.logger.Error("portfolio storage failed", zap.String("request_id", RequestID(r.Context())), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "something went wrong")
	}
}

func (s *Server) portfolioEnabled(w http.ResponseWriter) bool {
	if s.deps.Portfolio == nil {
		writeError(w, http.StatusServiceUnavailable, "portfolio storage is disabled")
		return false
	}
	return true
}

func (s *Server) handlePortfolioGet(w http.ResponseWriter, r *http.Request) {
	if !s.portfolioEnabled(w) {
		return
	}
	p, err := s.deps.Portfolio.Get(r.Context(), r.URL.Query().Get("userId"))
	if err != nil {
		s.portfolioError(w, r, err)
		return
	}

	for i := range p.Holdings {
		p.Holdings[i].Quote = toQuote(p.Holdings[i].Quote)
	}
	p.Value = round2(p.Value)
	writeJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"portfolio":      p,
		"portfolioValue": p.Value,
	})
}

func (s *Server) handlePortfolioAdd(w http.ResponseWriter, r *http.Request) {
	if !s.portfolioEnabled(w) {
		return
	}
	var req addHoldingRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	stocks, err := s.deps.Portfolio.Add(r.Context(), req.UserID, req.Stock)
	if err != nil {
		s.portfolioError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"portfolio": map[string]any{
			"userId": req.UserID,
			"stocks": stocks,
		},
	})
}

func (s *Server) handlePortfolioRemove(w http.ResponseWriter, r *http.Request) {
	if !s.portfolioEnabled(w) {
		return
	}
	q := r.URL.Query()
	if err := s.deps.Portfolio.Remove(r.Context(), q.Get("userId"), q.Get("stock")); err != nil {
		s.portfolioError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
