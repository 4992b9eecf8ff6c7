package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Yibooo/mission-control/internal/form"
	"github.com/Yibooo/mission-control/internal/profile"
	"github.com/Yibooo/mission-control/internal/scrape"
	"github.com/Yibooo/mission-control/internal/store"
)

var (
	// ErrCaptchaBlocked means the recorded form structure carries a CAPTCHA
	// and automated submission must not be attempted.
	ErrCaptchaBlocked = errors.New("form is protected by a CAPTCHA; submit manually")

	// ErrDraftNotApproved means the draft is not in the approved state. A
	// draft that was already sent or submitted also lands here, which is what
	// makes submission at-most-once.
	ErrDraftNotApproved = errors.New("draft is not approved for submission")
)

// SubmitResult reports the outcome of one submission attempt. An unconfirmed
// or failed attempt is a result, not an error: FormURL points the operator at
// the manual fallback.
type SubmitResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	FormURL string `json:"formUrl,omitempty"`
}

// Submitter drives the scripted-browser submission of an approved draft into
// the lead's discovered contact form.
type Submitter struct {
	store    store.Store
	scraper  Scraper
	profile  profile.Profile
	notifier AgentNotifier
}

func NewSubmitter(st store.Store, scraper Scraper, p profile.Profile, notifier AgentNotifier) *Submitter {
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	return &Submitter{store: st, scraper: scraper, profile: p, notifier: notifier}
}

// SubmitApprovedDraft fills and submits the contact form for the given draft.
// Preconditions (approved draft, usable form structure, no CAPTCHA) surface
// as errors before any network activity; once the browser script runs, the
// outcome is reported in the result and persisted on the draft and lead.
func (s *Submitter) SubmitApprovedDraft(ctx context.Context, draftID string) (*SubmitResult, error) {
	draft, err := s.store.GetDraft(ctx, draftID)
	if err != nil {
		return nil, fmt.Errorf("load draft: %w", err)
	}
	if draft == nil {
		return nil, store.ErrNotFound
	}
	if draft.ApprovalStatus != store.DraftApproved {
		return nil, fmt.Errorf("draft %s is %s: %w", draftID, draft.ApprovalStatus, ErrDraftNotApproved)
	}
	lead, err := s.store.GetLead(ctx, draft.LeadID)
	if err != nil {
		return nil, fmt.Errorf("load lead: %w", err)
	}
	if lead == nil {
		return nil, store.ErrNotFound
	}

	structure, err := form.Decode(lead.FormStructure)
	if err != nil {
		return nil, fmt.Errorf("form structure for lead %s: %w", lead.ID, err)
	}
	if structure.HasCaptcha {
		return nil, ErrCaptchaBlocked
	}
	if !structure.MessageField() {
		return nil, fmt.Errorf("form structure for lead %s has no message field", lead.ID)
	}

	body := draft.Body
	if draft.EditedBody != "" {
		body = draft.EditedBody
	}

	s.notifier.SetWorking(ctx, RoleFormSubmitter, fmt.Sprintf("%s のフォームに送信中", lead.CompanyName))
	s.notifier.SetAction(ctx, RoleFormSubmitter, fmt.Sprintf("%s に入力中...", structure.ContactURL))
	defer s.notifier.SetIdle(ctx, RoleFormSubmitter)

	page, scrapeErr := s.scraper.Scrape(ctx, scrape.Request{
		URL:     structure.ContactURL,
		Formats: []string{scrape.FormatMarkdown},
		Actions: s.fillActions(structure, draft.Subject, body),
		Timeout: 60 * time.Second,
	})

	confirmed := false
	if scrapeErr == nil && page != nil {
		rendered := strings.ToLower(page.Markdown)
		for _, phrase := range s.profile.SuccessPhrases {
			if strings.Contains(rendered, strings.ToLower(phrase)) {
				confirmed = true
				break
			}
		}
	}

	if confirmed {
		if err := s.store.MarkDraftSubmitted(ctx, draft.ID, timestamp()); err != nil {
			return nil, fmt.Errorf("mark submitted: %w", err)
		}
		if err := s.store.UpdateLeadStatus(ctx, lead.ID, store.LeadStatusContacted, ""); err != nil {
			return nil, fmt.Errorf("mark contacted: %w", err)
		}
		s.appendLog(ctx, store.SalesLog{
			LeadID:      lead.ID,
			DraftID:     draft.ID,
			Event:       store.EventFormSubmitted,
			Detail:      fmt.Sprintf("%s のフォームから送信完了", lead.CompanyName),
			PerformedBy: "agent:" + RoleFormSubmitter,
		})
		return &SubmitResult{
			Success: true,
			Message: "フォーム送信が完了しました",
			FormURL: structure.ContactURL,
		}, nil
	}

	reason := "送信を確認できませんでした。手動でフォームを送信してください。"
	if err := s.store.MarkDraftFailed(ctx, draft.ID, reason); err != nil {
		return nil, fmt.Errorf("mark failed: %w", err)
	}
	detail := reason
	if scrapeErr != nil {
		detail = fmt.Sprintf("送信エラー: %v", scrapeErr)
	}
	s.appendLog(ctx, store.SalesLog{
		LeadID:      lead.ID,
		DraftID:     draft.ID,
		Event:       store.EventSubmissionFailed,
		Detail:      detail,
		PerformedBy: "agent:" + RoleFormSubmitter,
	})
	return &SubmitResult{
		Success: false,
		Message: reason,
		FormURL: structure.ContactURL,
	}, nil
}

// fillActions builds the browser script: settle, fill each mapped field,
// settle again, click submit, then wait for the confirmation page. Phone and
// unmapped fields are left blank on purpose.
func (s *Submitter) fillActions(structure form.Structure, subject string, body string) []scrape.Action {
	actions := []scrape.Action{scrape.Wait(2000)}
	for _, field := range structure.Fields {
		value := s.fieldValue(field.Role, subject, body)
		if value == "" {
			continue
		}
		actions = append(actions, scrape.Click(field.Selector), scrape.Write(value))
	}
	actions = append(actions, scrape.Wait(1000))
	if structure.SubmitSelector != "" {
		actions = append(actions, scrape.Click(structure.SubmitSelector))
	}
	actions = append(actions, scrape.Wait(3000))
	return actions
}

func (s *Submitter) fieldValue(role string, subject string, body string) string {
	switch role {
	case form.RoleName:
		return s.profile.Identity.SenderName
	case form.RoleEmail:
		return s.profile.Identity.Email
	case form.RoleCompany:
		return s.profile.Identity.Company
	case form.RoleSubject:
		return subject
	case form.RoleMessage:
		return body
	default:
		return ""
	}
}

func (s *Submitter) appendLog(ctx context.Context, entry store.SalesLog) {
	entry.ID = uuid.New().String()
	entry.CreatedAt = timestamp()
	_ = s.store.AppendSalesLog(ctx, entry)
}
