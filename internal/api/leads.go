package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Yibooo/mission-control/internal/store"
)

var leadStatuses = map[string]bool{
	store.LeadStatusResearching:     true,
	store.LeadStatusDraftReady:      true,
	store.LeadStatusCaptchaRequired: true,
	store.LeadStatusContacted:       true,
	store.LeadStatusReplied:         true,
	store.LeadStatusNegotiating:     true,
	store.LeadStatusClosedWon:       true,
	store.LeadStatusClosedLost:      true,
	store.LeadStatusRejected:        true,
}

func (s *Server) listLeads(w http.ResponseWriter, r *http.Request) {
	status := strings.TrimSpace(r.URL.Query().Get("status"))
	if status != "" && !leadStatuses[status] {
		http.Error(w, "unknown lead status", http.StatusBadRequest)
		return
	}
	leads, err := s.store.ListLeads(r.Context(), status)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"leads": leads})
}

func (s *Server) getLead(w http.ResponseWriter, r *http.Request) {
	leadID := chi.URLParam(r, "id")
	lead, err := s.store.GetLead(r.Context(), leadID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if lead == nil {
		http.Error(w, "lead not found", http.StatusNotFound)
		return
	}
	writeJSON(w, lead)
}

type updateLeadStatusRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

func (s *Server) updateLeadStatus(w http.ResponseWriter, r *http.Request) {
	leadID := chi.URLParam(r, "id")
	var req updateLeadStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if !leadStatuses[req.Status] {
		http.Error(w, "unknown lead status", http.StatusBadRequest)
		return
	}
	if err := s.store.UpdateLeadStatus(r.Context(), leadID, req.Status, req.Notes); err != nil {
		if err == store.ErrNotFound {
			http.Error(w, "lead not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listLeadLogs(w http.ResponseWriter, r *http.Request) {
	leadID := chi.URLParam(r, "id")
	limit := parseLimit(r)
	logs, err := s.store.ListSalesLogs(r.Context(), leadID, limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"logs": logs})
}

func (s *Server) listLogs(w http.ResponseWriter, r *http.Request) {
	leadID := strings.TrimSpace(r.URL.Query().Get("leadId"))
	limit := parseLimit(r)
	logs, err := s.store.ListSalesLogs(r.Context(), leadID, limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"logs": logs})
}

func (s *Server) getStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.SalesStats(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, stats)
}

func (s *Server) listAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := s.store.ListAgents(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"agents": agents})
}

func parseLimit(r *http.Request) int {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return 0
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0
	}
	return limit
}
