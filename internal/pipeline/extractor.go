package pipeline

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/Yibooo/mission-control/internal/llm"
	"github.com/Yibooo/mission-control/internal/profile"
	"github.com/Yibooo/mission-control/internal/search"
)

// Company is an extracted business-entity record.
type Company struct {
	CompanyName     string `json:"companyName"`
	Industry        string `json:"industry"`
	Location        string `json:"location"`
	EstimatedSize   string `json:"estimatedSize"`
	WebsiteURL      string `json:"websiteUrl"`
	ContactEmail    string `json:"contactEmail"`
	ContactName     string `json:"contactName"`
	ResearchSummary string `json:"researchSummary"`
}

// Extractor converts one search result into a Company, or rejects it. All
// failure paths resolve to a nil Company so the orchestrator moves to the
// next candidate; this component never returns an error.
type Extractor struct {
	provider llm.Provider
	profile  profile.Profile
}

func NewExtractor(provider llm.Provider, p profile.Profile) *Extractor {
	return &Extractor{provider: provider, profile: p}
}

type extractionReply struct {
	Company
	IsCompanyPage *bool `json:"isCompanyPage"`
}

// Extract applies the filter chain: title keywords and hostname keywords
// reject before any model call, then the model's reply is parsed and
// post-filtered. The TLD trust flag outranks the model's own negative
// self-report, and a trusted candidate whose reply cannot be parsed still
// yields a minimal record built from the title and domain.
func (e *Extractor) Extract(ctx context.Context, result search.Result) *Company {
	if containsAny(result.Title, e.profile.SkipTitleKeywords) {
		return nil
	}
	host := hostname(result.URL)
	if host == "" {
		return nil
	}
	for _, keyword := range e.profile.SkipHostKeywords {
		if strings.Contains(host, keyword) {
			return nil
		}
	}
	trusted := e.profile.Trusted(host)
	heuristicHit := containsAny(result.Title, e.profile.TrustKeywords) ||
		containsAny(result.URL, e.profile.TrustKeywords)

	raw, err := e.provider.Generate(ctx, llm.Request{
		Prompt:      e.prompt(result),
		MaxTokens:   700,
		Temperature: 0.7,
	})
	var reply extractionReply
	if err == nil {
		err = llm.DecodeObject(raw, &reply)
	}
	if err != nil {
		if trusted || heuristicHit {
			return e.minimalRecord(result, host)
		}
		return nil
	}

	// The model's self-report is trusted only for untrusted domains. A
	// trusted suffix, or a heuristic hit when the profile allows it,
	// overrides a negative isCompanyPage.
	if reply.IsCompanyPage != nil && !*reply.IsCompanyPage {
		override := trusted || (e.profile.TrustAllMatches && heuristicHit)
		if !override {
			return nil
		}
	}

	name := strings.TrimSpace(reply.CompanyName)
	if len([]rune(name)) < 2 {
		return nil
	}
	if containsAny(name, e.profile.NameBlocklist) {
		return nil
	}

	company := reply.Company
	company.CompanyName = name
	company.WebsiteURL = result.URL
	if company.ContactEmail == "" {
		company.ContactEmail = "info@" + host
	}
	if company.Location == "" {
		company.Location = e.profile.TargetArea
	}
	if company.EstimatedSize == "" {
		company.EstimatedSize = "不明"
	}
	return &company
}

// minimalRecord is the parse-failure fallback for candidates the heuristics
// already consider very likely legitimate.
func (e *Extractor) minimalRecord(result search.Result, host string) *Company {
	name := strings.TrimSpace(result.Title)
	for _, sep := range []string{"|", "｜", "－", " - "} {
		if idx := strings.Index(name, sep); idx > 0 {
			name = strings.TrimSpace(name[:idx])
			break
		}
	}
	if len([]rune(name)) < 2 {
		return nil
	}
	return &Company{
		CompanyName:     name,
		Industry:        "サービス業",
		Location:        e.profile.TargetArea,
		EstimatedSize:   "不明",
		WebsiteURL:      result.URL,
		ContactEmail:    "info@" + host,
		ResearchSummary: "Webサイトからの自動抽出（詳細調査が必要）",
	}
}

func (e *Extractor) prompt(result search.Result) string {
	return fmt.Sprintf(`以下のWebページから日本の企業情報をJSONで抽出してください。

ページ情報:
タイトル: %s
URL: %s
内容: %s

抽出ルール:
- companyName: 会社名（「株式会社」「有限会社」等含む正式名称。不明ならタイトルから推測）
- industry: 業種（小売業/飲食業/IT・Web/士業/製造業/建設業/医療・介護/教育/サービス業のいずれか）
- location: 都道府県+市区町村（不明な場合は "%s"）
- estimatedSize: 従業員規模（〜10名/10〜50名/50〜100名/不明）
- websiteUrl: "%s"をそのまま使用
- contactEmail: ページ内のメアド。なければ "info@%s"
- contactName: 代表者・担当者名（あれば）、なければ空文字
- researchSummary: AIで効率化できる業務（50字以内）
- isCompanyPage: 企業・店舗・個人事業・NPOのページならtrue。ニュース・求人・比較サイト・官公庁・個人ブログならfalse

重要: .co.jp や .jp ドメインは基本的に企業サイトなのでisCompanyPage=trueにしてください。

JSON形式のみで回答（コードブロック不要）:
{
  "companyName": "...",
  "industry": "...",
  "location": "...",
  "estimatedSize": "...",
  "websiteUrl": "...",
  "contactEmail": "...",
  "contactName": "",
  "researchSummary": "...",
  "isCompanyPage": true
}`,
		result.Title, result.URL, truncateRunes(result.Content, 1200),
		e.profile.TargetArea, result.URL, hostname(result.URL))
}

func hostname(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")
}

func containsAny(s string, keywords []string) bool {
	lowered := strings.ToLower(s)
	for _, keyword := range keywords {
		if keyword == "" {
			continue
		}
		if strings.Contains(lowered, strings.ToLower(keyword)) {
			return true
		}
	}
	return false
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
