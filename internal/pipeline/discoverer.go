package pipeline

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"

	"github.com/Yibooo/mission-control/internal/form"
	"github.com/Yibooo/mission-control/internal/llm"
	"github.com/Yibooo/mission-control/internal/profile"
	"github.com/Yibooo/mission-control/internal/scrape"
)

// Scraper is the slice of the scripted-browser client the pipeline uses.
type Scraper interface {
	Scrape(ctx context.Context, req scrape.Request) (*scrape.Result, error)
}

// Discoverer locates a target site's contact form and maps its fields to
// semantic roles. Discovery can end three ways: a full structure, a bare
// contact URL (page found, fields unmapped), or not found (nil, nil).
// Transport failures on the initial link fetch surface as errors so the
// orchestrator can record them.
type Discoverer struct {
	scraper   Scraper
	provider  llm.Provider
	profile   profile.Profile
	converter *md.Converter
}

func NewDiscoverer(scraper Scraper, provider llm.Provider, p profile.Profile) *Discoverer {
	return &Discoverer{
		scraper:   scraper,
		provider:  provider,
		profile:   p,
		converter: md.NewConverter("", true, nil),
	}
}

func (d *Discoverer) Discover(ctx context.Context, websiteURL string) (*form.Structure, error) {
	// Phase A: link discovery. When no link matches a contact keyword the
	// first conventional path is guessed without verification; phase B's
	// emptiness check is the only backstop.
	links, err := d.scraper.Scrape(ctx, scrape.Request{
		URL:     websiteURL,
		Formats: []string{scrape.FormatLinks},
	})
	if err != nil {
		return nil, fmt.Errorf("link discovery for %s: %w", websiteURL, err)
	}
	contactURL := d.findContactLink(links.Links)
	if contactURL == "" {
		origin, err := pageOrigin(websiteURL)
		if err != nil || len(d.profile.GuessPaths) == 0 {
			return nil, nil
		}
		contactURL = origin + d.profile.GuessPaths[0]
	}

	// Phase B: fetch the candidate page's raw markup and a text rendering.
	page, err := d.scraper.Scrape(ctx, scrape.Request{
		URL:     contactURL,
		Formats: []string{scrape.FormatRawHTML, scrape.FormatMarkdown},
	})
	if err != nil {
		return &form.Structure{SchemaVersion: form.SchemaVersion, ContactURL: contactURL}, nil
	}
	markup := page.RawHTML
	text := page.Markdown
	if text == "" && markup != "" {
		if converted, convErr := d.converter.ConvertString(markup); convErr == nil {
			text = converted
		}
	}
	if markup == "" && text == "" {
		return nil, nil
	}

	// Phase C: bot-defense detection on the raw markup and the rendering.
	haystack := strings.ToLower(markup + "\n" + text)
	structure := form.Structure{
		SchemaVersion: form.SchemaVersion,
		ContactURL:    contactURL,
	}
	for _, keyword := range d.profile.CaptchaKeywords {
		if strings.Contains(haystack, strings.ToLower(keyword)) {
			structure.HasCaptcha = true
			break
		}
	}
	for _, pattern := range d.profile.TokenPatterns {
		if strings.Contains(haystack, strings.ToLower(pattern)) {
			structure.HasDynamicToken = true
			break
		}
	}
	if structure.HasCaptcha {
		return &structure, nil
	}

	// Phase D: field mapping. The whole discovery is rejected when the model
	// maps no field to the message role, the minimum viable field for any
	// outreach form.
	source := markup
	if source == "" {
		source = text
	}
	raw, err := d.provider.Generate(ctx, llm.Request{
		Prompt:      d.fieldPrompt(source),
		MaxTokens:   600,
		Temperature: 0.2,
	})
	if err != nil {
		return &structure, nil
	}
	var mapped struct {
		SubmitURL      string       `json:"submitUrl"`
		SubmitSelector string       `json:"submitSelector"`
		Fields         []form.Field `json:"fields"`
	}
	if err := llm.DecodeObject(raw, &mapped); err != nil {
		return &structure, nil
	}

	structure.SubmitURL = resolveURL(contactURL, mapped.SubmitURL)
	structure.SubmitSelector = mapped.SubmitSelector
	structure.Fields = normalizeFields(mapped.Fields)
	if len(structure.Fields) == 0 || !structure.MessageField() {
		return nil, nil
	}
	return &structure, nil
}

func (d *Discoverer) findContactLink(links []string) string {
	for _, link := range links {
		lowered := strings.ToLower(link)
		for _, keyword := range d.profile.ContactKeywords {
			if strings.Contains(lowered, strings.ToLower(keyword)) {
				return link
			}
		}
	}
	return ""
}

func (d *Discoverer) fieldPrompt(markup string) string {
	return fmt.Sprintf(`以下はお問い合わせフォームページのHTMLです。
フォームの構造を解析して、JSON形式で返してください。

HTMLの内容:
%s

ルール:
- submitUrl: フォームのaction属性のURL（相対パスの場合はそのまま）
- submitSelector: 送信ボタンのCSSセレクタ
- fields: 各入力フィールドについて
  - selector: CSSセレクタ
  - label: 表示ラベル（例: お名前、メールアドレス）
  - role: name / email / company / phone / subject / message / other のいずれか
  - inputKind: text / email / tel / textarea / select のいずれか

JSONのみで回答（コードブロック不要）:
{
  "submitUrl": "/contact/confirm",
  "submitSelector": "button[type=submit]",
  "fields": [
    {"selector": "input[name=your-name]", "label": "お名前", "role": "name", "inputKind": "text"},
    {"selector": "textarea[name=your-message]", "label": "お問い合わせ内容", "role": "message", "inputKind": "textarea"}
  ]
}`, truncateRunes(markup, 3000))
}

func normalizeFields(fields []form.Field) []form.Field {
	known := map[string]bool{
		form.RoleName: true, form.RoleEmail: true, form.RoleCompany: true,
		form.RolePhone: true, form.RoleSubject: true, form.RoleMessage: true,
		form.RoleOther: true,
	}
	kept := make([]form.Field, 0, len(fields))
	for _, field := range fields {
		field.Role = strings.ToLower(strings.TrimSpace(field.Role))
		if field.Selector == "" {
			continue
		}
		if !known[field.Role] {
			field.Role = form.RoleOther
		}
		kept = append(kept, field)
	}
	return kept
}

func pageOrigin(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("no origin in %q", rawURL)
	}
	return parsed.Scheme + "://" + parsed.Host, nil
}

// resolveURL makes a possibly-relative submission target absolute using the
// contact page's origin.
func resolveURL(base string, target string) string {
	if target == "" {
		return ""
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return target
	}
	targetURL, err := url.Parse(target)
	if err != nil {
		return target
	}
	return baseURL.ResolveReference(targetURL).String()
}
