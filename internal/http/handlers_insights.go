package http

import (
	"net/http"

	"fintrack/internal/core"
)

func (s *Server) handleCategorize(w http.ResponseWriter, r *http.Request) {
	var req categorizeRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	cat, err := s.svc.Categorize(r.Context(), req.Description)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"category": cat.String()})
}

type summaryResponse struct {
	Total      float64               `json:"total"`
	Categories []core.CategoryAmount `json:"categories"`
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.svc.Summary(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summaryResponse{Total: sum.Total(), Categories: sum.Sorted()})
}

func (s *Server) handleTips(w http.ResponseWriter, r *http.Request) {
	tips, err := s.svc.Tips(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"tips": tips})
}
