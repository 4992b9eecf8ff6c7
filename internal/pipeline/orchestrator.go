package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Yibooo/mission-control/internal/events"
	"github.com/Yibooo/mission-control/internal/form"
	"github.com/Yibooo/mission-control/internal/profile"
	"github.com/Yibooo/mission-control/internal/search"
	"github.com/Yibooo/mission-control/internal/store"
)

// Searcher is the slice of the search adapter the orchestrator uses.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int, excludeDomains []string) ([]search.Result, error)
}

// Publisher receives pipeline progress events. Publishing is fire-and-forget.
type Publisher interface {
	Publish(event events.PipelineEvent)
}

// RunParams configures one pipeline run.
type RunParams struct {
	RunID      string
	TargetArea string
	MaxLeads   int
}

// RunDebug is the skip/hit breakdown operators use to diagnose a zero-result
// run. It is part of the run contract, not incidental logging.
type RunDebug struct {
	SearchResultsTotal int      `json:"searchResultsTotal"`
	SkippedByTitle     int      `json:"skippedByTitle"`
	SkippedNotCompany  int      `json:"skippedNotCompany"`
	SkippedDuplicate   int      `json:"skippedDuplicate"`
	ProcessedURLs      []string `json:"processedUrls"`
}

type RunResult struct {
	LeadsCreated    int      `json:"leadsCreated"`
	DraftsCreated   int      `json:"draftsCreated"`
	FormURLsFound   int      `json:"formUrlsFound"`
	CaptchaDetected int      `json:"captchaDetected"`
	Errors          []string `json:"errors"`
	Debug           RunDebug `json:"debug"`
}

// Orchestrator drives search → extraction → form discovery → persistence →
// message generation per candidate, sequentially, until the target count of
// drafted leads is reached or candidates run out.
type Orchestrator struct {
	store      store.Store
	searcher   Searcher
	extractor  *Extractor
	discoverer *Discoverer // nil when no scrape credential is configured
	generator  *Generator
	notifier   AgentNotifier
	publisher  Publisher
	profile    profile.Profile
	delay      time.Duration

	sleep func(time.Duration)
}

const (
	maxQueriesPerRun  = 4
	candidateHeadroom = 4
	defaultMaxLeads   = 5
	resultsPerQuery   = 5
)

func NewOrchestrator(st store.Store, searcher Searcher, extractor *Extractor, discoverer *Discoverer, generator *Generator, notifier AgentNotifier, publisher Publisher, p profile.Profile, delay time.Duration) *Orchestrator {
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	return &Orchestrator{
		store:      st,
		searcher:   searcher,
		extractor:  extractor,
		discoverer: discoverer,
		generator:  generator,
		notifier:   notifier,
		publisher:  publisher,
		profile:    p,
		delay:      delay,
		sleep:      time.Sleep,
	}
}

// Run executes one pipeline run. The returned result is always populated,
// even when every candidate failed; only a broken store aborts the run.
func (o *Orchestrator) Run(ctx context.Context, params RunParams) (*RunResult, error) {
	maxLeads := params.MaxLeads
	if maxLeads <= 0 {
		maxLeads = defaultMaxLeads
	}
	targetArea := params.TargetArea
	if targetArea == "" {
		targetArea = o.profile.TargetArea
	}

	result := &RunResult{
		Errors: []string{},
		Debug:  RunDebug{ProcessedURLs: []string{}},
	}
	o.publish(params.RunID, "run.started", map[string]any{"targetArea": targetArea, "maxLeads": maxLeads})

	o.notifier.SetWorking(ctx, RoleProspector, fmt.Sprintf("%sの企業をリサーチ中...", targetArea))
	o.notifier.SetAction(ctx, RoleProspector, fmt.Sprintf("%sの企業を検索中...", targetArea))

	candidates := o.collectCandidates(ctx, maxLeads, result)
	o.notifier.SetAction(ctx, RoleProspector, fmt.Sprintf("%d件の検索結果を取得完了", len(candidates)))

	seen, err := o.loadSeenURLs(ctx)
	if err != nil {
		return nil, fmt.Errorf("load existing leads: %w", err)
	}

	processed := 0
	for _, candidate := range candidates {
		if processed >= maxLeads {
			break
		}
		if candidate.URL != "" && seen[candidate.URL] {
			result.Debug.SkippedDuplicate++
			continue
		}
		if containsAny(candidate.Title, o.profile.SkipTitleKeywords) {
			result.Debug.SkippedByTitle++
			continue
		}
		result.Debug.ProcessedURLs = append(result.Debug.ProcessedURLs, candidate.URL)

		drafted, err := o.processCandidate(ctx, params.RunID, candidate, seen, result)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("candidate %s: %v", candidate.URL, err))
			continue
		}
		if !drafted {
			continue
		}
		processed++
		// No formal rate limiter: the fixed delay is enough headroom for
		// the downstream LLM API at this call volume.
		o.sleep(o.delay)
	}

	for _, role := range []string{RoleProspector, RoleResearcher, RoleCopywriter} {
		o.notifier.SetIdle(ctx, role)
	}
	o.publish(params.RunID, "run.completed", map[string]any{
		"leadsCreated":  result.LeadsCreated,
		"draftsCreated": result.DraftsCreated,
		"errors":        len(result.Errors),
	})
	return result, nil
}

// collectCandidates fans out over the profile's queries, stopping once the
// candidate pool has enough headroom over the lead target to absorb
// rejections. Search failures are recorded and the remaining queries proceed.
func (o *Orchestrator) collectCandidates(ctx context.Context, maxLeads int, result *RunResult) []search.Result {
	var candidates []search.Result
	queries := o.profile.Queries
	if len(queries) > maxQueriesPerRun {
		queries = queries[:maxQueriesPerRun]
	}
	for _, query := range queries {
		found, err := o.searcher.Search(ctx, query, resultsPerQuery, o.profile.ExcludeDomains)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("search %q: %v", query, err))
			continue
		}
		candidates = append(candidates, found...)
		result.Debug.SearchResultsTotal += len(found)
		if len(candidates) >= maxLeads*candidateHeadroom {
			break
		}
	}
	return candidates
}

func (o *Orchestrator) loadSeenURLs(ctx context.Context) (map[string]bool, error) {
	leads, err := o.store.ListLeads(ctx, "")
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	for _, lead := range leads {
		if lead.WebsiteURL != "" {
			seen[lead.WebsiteURL] = true
		}
	}
	return seen, nil
}

// processCandidate runs extraction through draft creation for one search
// result. It reports whether a draft was produced; errors are per-candidate
// and never abort the run.
func (o *Orchestrator) processCandidate(ctx context.Context, runID string, candidate search.Result, seen map[string]bool, result *RunResult) (bool, error) {
	o.notifier.SetWorking(ctx, RoleResearcher, fmt.Sprintf("「%s」を調査中", truncateRunes(candidate.Title, 30)))
	o.notifier.SetAction(ctx, RoleResearcher, fmt.Sprintf("%s の企業情報を抽出中...", candidate.URL))

	company := o.extractor.Extract(ctx, candidate)
	if company == nil {
		result.Debug.SkippedNotCompany++
		return false, nil
	}

	var structure *form.Structure
	if o.discoverer != nil && company.WebsiteURL != "" {
		o.notifier.SetAction(ctx, RoleResearcher, fmt.Sprintf("%s のお問い合わせフォームを検索中...", company.CompanyName))
		discovered, err := o.discoverer.Discover(ctx, company.WebsiteURL)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("form discovery %s: %v", company.WebsiteURL, err))
		} else {
			structure = discovered
		}
	}

	now := timestamp()
	lead := store.Lead{
		ID:              uuid.New().String(),
		CompanyName:     company.CompanyName,
		Industry:        company.Industry,
		Location:        company.Location,
		EstimatedSize:   company.EstimatedSize,
		WebsiteURL:      company.WebsiteURL,
		ContactEmail:    company.ContactEmail,
		ContactName:     company.ContactName,
		ResearchSummary: company.ResearchSummary,
		Status:          store.LeadStatusResearching,
		Source:          "tavily_search",
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	hasCaptcha := false
	if structure != nil {
		lead.ContactFormURL = structure.ContactURL
		hasCaptcha = structure.HasCaptcha
		serialized, err := form.Marshal(*structure)
		if err == nil {
			lead.FormStructure = serialized
		}
	}
	if err := o.store.CreateLead(ctx, lead); err != nil {
		return false, fmt.Errorf("create lead: %w", err)
	}
	// The URL joins the dedup set the moment the lead exists; a later failure
	// in this candidate must not let the same site in twice.
	if lead.WebsiteURL != "" {
		seen[lead.WebsiteURL] = true
	}
	result.LeadsCreated++
	if lead.ContactFormURL != "" {
		result.FormURLsFound++
	}
	o.appendLog(ctx, store.SalesLog{
		LeadID:      lead.ID,
		Event:       store.EventLeadCreated,
		Detail:      fmt.Sprintf("%s をリードとして追加", lead.CompanyName),
		PerformedBy: "agent:" + RoleProspector,
	})
	o.publish(runID, "lead.created", map[string]any{"leadId": lead.ID, "company": lead.CompanyName})

	if hasCaptcha {
		result.CaptchaDetected++
		if err := o.store.UpdateLeadStatus(ctx, lead.ID, store.LeadStatusCaptchaRequired,
			"CAPTCHAが検出されました。手動でフォームを送信してください。"); err != nil {
			return false, fmt.Errorf("mark captcha: %w", err)
		}
		o.publish(runID, "captcha.detected", map[string]any{"leadId": lead.ID})
	}

	o.notifier.SetWorking(ctx, RoleCopywriter, fmt.Sprintf("%s 向けメッセージを生成中", company.CompanyName))
	o.notifier.SetAction(ctx, RoleCopywriter, fmt.Sprintf("%s へのパーソナライズ文章を生成中...", company.CompanyName))

	draft := o.generator.Generate(ctx, *company)
	record := store.EmailDraft{
		ID:             uuid.New().String(),
		LeadID:         lead.ID,
		Subject:        draft.Subject,
		Body:           draft.Body,
		ApprovalStatus: store.DraftPending,
		GeneratedBy:    draft.GeneratedBy,
		CreatedAt:      timestamp(),
	}
	if err := o.store.CreateDraft(ctx, record); err != nil {
		return false, fmt.Errorf("create draft: %w", err)
	}
	result.DraftsCreated++
	// A CAPTCHA-gated lead keeps its captcha_required status; draft_ready
	// would hide the manual step from the dashboard.
	if !hasCaptcha {
		if err := o.store.UpdateLeadStatus(ctx, lead.ID, store.LeadStatusDraftReady, ""); err != nil {
			return false, fmt.Errorf("mark draft ready: %w", err)
		}
	}
	o.appendLog(ctx, store.SalesLog{
		LeadID:      lead.ID,
		DraftID:     record.ID,
		Event:       store.EventDraftGenerated,
		Detail:      fmt.Sprintf("件名: %s", record.Subject),
		PerformedBy: "agent:" + RoleCopywriter,
	})
	o.publish(runID, "draft.generated", map[string]any{"leadId": lead.ID, "draftId": record.ID})
	return true, nil
}

func (o *Orchestrator) appendLog(ctx context.Context, entry store.SalesLog) {
	entry.ID = uuid.New().String()
	entry.CreatedAt = timestamp()
	_ = o.store.AppendSalesLog(ctx, entry)
}

func (o *Orchestrator) publish(runID string, eventType string, payload map[string]any) {
	if o.publisher == nil || runID == "" {
		return
	}
	o.publisher.Publish(events.PipelineEvent{
		RunID:   runID,
		Type:    eventType,
		Ts:      timestamp(),
		Payload: payload,
	})
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
