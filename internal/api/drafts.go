package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Yibooo/mission-control/internal/form"
	"github.com/Yibooo/mission-control/internal/pipeline"
	"github.com/Yibooo/mission-control/internal/store"
)

var draftStatuses = map[string]bool{
	store.DraftPending:   true,
	store.DraftApproved:  true,
	store.DraftRejected:  true,
	store.DraftSent:      true,
	store.DraftSubmitted: true,
	store.DraftFailed:    true,
}

func (s *Server) listDrafts(w http.ResponseWriter, r *http.Request) {
	status := strings.TrimSpace(r.URL.Query().Get("status"))
	if status != "" && !draftStatuses[status] {
		http.Error(w, "unknown draft status", http.StatusBadRequest)
		return
	}
	drafts, err := s.store.ListDrafts(r.Context(), status)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"drafts": drafts})
}

func (s *Server) getDraft(w http.ResponseWriter, r *http.Request) {
	draftID := chi.URLParam(r, "id")
	draft, err := s.store.GetDraft(r.Context(), draftID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if draft == nil {
		http.Error(w, "draft not found", http.StatusNotFound)
		return
	}
	writeJSON(w, draft)
}

// approvalItem joins a pending draft with its lead so the review screen can
// render company context next to the message.
type approvalItem struct {
	Draft store.EmailDraft `json:"draft"`
	Lead  *store.Lead      `json:"lead"`
}

func (s *Server) listApprovals(w http.ResponseWriter, r *http.Request) {
	drafts, err := s.store.ListDrafts(r.Context(), store.DraftPending)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	items := make([]approvalItem, 0, len(drafts))
	for _, draft := range drafts {
		lead, err := s.store.GetLead(r.Context(), draft.LeadID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		items = append(items, approvalItem{Draft: draft, Lead: lead})
	}
	writeJSON(w, map[string]any{"approvals": items})
}

type approveDraftRequest struct {
	EditedBody string `json:"editedBody"`
}

func (s *Server) approveDraft(w http.ResponseWriter, r *http.Request) {
	draftID := chi.URLParam(r, "id")
	req := approveDraftRequest{}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if err := s.store.ApproveDraft(r.Context(), draftID, req.EditedBody, now); err != nil {
		writeDraftTransitionError(w, err)
		return
	}
	draft, err := s.store.GetDraft(r.Context(), draftID)
	if err != nil || draft == nil {
		http.Error(w, "draft not found", http.StatusInternalServerError)
		return
	}
	s.appendHumanLog(r, store.SalesLog{
		LeadID:  draft.LeadID,
		DraftID: draft.ID,
		Event:   store.EventApproved,
		Detail:  "ドラフトを承認",
	})
	writeJSON(w, draft)
}

func (s *Server) rejectDraft(w http.ResponseWriter, r *http.Request) {
	draftID := chi.URLParam(r, "id")
	if err := s.store.RejectDraft(r.Context(), draftID); err != nil {
		writeDraftTransitionError(w, err)
		return
	}
	draft, err := s.store.GetDraft(r.Context(), draftID)
	if err != nil || draft == nil {
		http.Error(w, "draft not found", http.StatusInternalServerError)
		return
	}
	if err := s.store.UpdateLeadStatus(r.Context(), draft.LeadID, store.LeadStatusRejected, ""); err != nil && err != store.ErrNotFound {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.appendHumanLog(r, store.SalesLog{
		LeadID:  draft.LeadID,
		DraftID: draft.ID,
		Event:   store.EventRejected,
		Detail:  "ドラフトを却下",
	})
	writeJSON(w, draft)
}

// markDraftSent records a manual send (the operator copied the message into
// an email or a form themselves).
func (s *Server) markDraftSent(w http.ResponseWriter, r *http.Request) {
	draftID := chi.URLParam(r, "id")
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if err := s.store.MarkDraftSent(r.Context(), draftID, now); err != nil {
		writeDraftTransitionError(w, err)
		return
	}
	draft, err := s.store.GetDraft(r.Context(), draftID)
	if err != nil || draft == nil {
		http.Error(w, "draft not found", http.StatusInternalServerError)
		return
	}
	if err := s.store.UpdateLeadStatus(r.Context(), draft.LeadID, store.LeadStatusContacted, ""); err != nil && err != store.ErrNotFound {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.appendHumanLog(r, store.SalesLog{
		LeadID:  draft.LeadID,
		DraftID: draft.ID,
		Event:   store.EventSent,
		Detail:  "手動で送信済みにしました",
	})
	writeJSON(w, draft)
}

func (s *Server) submitDraft(w http.ResponseWriter, r *http.Request) {
	if s.submitter == nil {
		http.Error(w, "form submission is not configured", http.StatusServiceUnavailable)
		return
	}
	draftID := chi.URLParam(r, "id")
	result, err := s.submitter.SubmitApprovedDraft(r.Context(), draftID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			http.Error(w, "draft not found", http.StatusNotFound)
		case errors.Is(err, pipeline.ErrDraftNotApproved):
			http.Error(w, err.Error(), http.StatusConflict)
		case errors.Is(err, pipeline.ErrCaptchaBlocked):
			http.Error(w, err.Error(), http.StatusConflict)
		case errors.Is(err, form.ErrNoStructure), errors.Is(err, form.ErrCorruptStructure):
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, result)
}

func writeDraftTransitionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, "draft not found", http.StatusNotFound)
	case errors.Is(err, store.ErrInvalidTransition):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) appendHumanLog(r *http.Request, entry store.SalesLog) {
	entry.ID = uuid.New().String()
	entry.PerformedBy = "human"
	entry.CreatedAt = time.Now().UTC().Format(time.RFC3339Nano)
	_ = s.store.AppendSalesLog(r.Context(), entry)
}
