package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/Yibooo/mission-control/internal/llm"
	"github.com/Yibooo/mission-control/internal/profile"
)

// Draft is a generated subject/body pair plus the identity tag of whichever
// path produced it.
type Draft struct {
	Subject     string
	Body        string
	GeneratedBy string
}

// Generator produces a personalized outreach message for an extracted
// company. Generation cannot fail: any model error, unparsable reply or
// missing field falls back to a deterministic industry template.
type Generator struct {
	provider llm.Provider
	profile  profile.Profile
}

func NewGenerator(provider llm.Provider, p profile.Profile) *Generator {
	return &Generator{provider: provider, profile: p}
}

func (g *Generator) Generate(ctx context.Context, company Company) Draft {
	raw, err := g.provider.Generate(ctx, llm.Request{
		Prompt:      g.prompt(company),
		MaxTokens:   1000,
		Temperature: 0.7,
	})
	if err != nil {
		return g.fallback(company)
	}
	var reply struct {
		Subject string `json:"subject"`
		Body    string `json:"body"`
	}
	if err := llm.DecodeObject(raw, &reply); err != nil {
		return g.fallback(company)
	}
	subject := strings.TrimSpace(reply.Subject)
	body := strings.TrimSpace(reply.Body)
	if subject == "" || body == "" {
		return g.fallback(company)
	}
	if !strings.Contains(body, g.profile.Identity.SiteURL) {
		body = body + "\n\n" + g.profile.Signature()
	}
	return Draft{
		Subject:     subject,
		Body:        body,
		GeneratedBy: "agent:Copywriter(LLM)",
	}
}

func (g *Generator) prompt(company Company) string {
	return fmt.Sprintf(`あなたはAI導入支援サービス「%s」の営業担当です。
以下の企業情報をもとに、企業のお問い合わせフォームに入力する営業メッセージを作成してください。

【企業情報】
会社名: %s
業種: %s
所在地: %s
AI活用の余地: %s

【%sのサービス】
%s

【作成ルール】
1. 件名（subject）: 企業固有の課題に言及した30字以内の件名
2. 本文（body）: 200〜280字。書き出しで企業への具体的な言及、課題提示、サービス提案、CTAを含める
3. トーン: 丁寧・親しみやすい・押しつけがましくない
4. 締めは「%s / %s」
5. フォーム送信を想定（「メール」という表現を避け、「ご連絡」「お問い合わせ」を使う）

JSON形式のみで回答（他のテキスト不要）:
{"subject":"件名","body":"本文（\nで改行）"}`,
		g.profile.Identity.ServiceName,
		company.CompanyName, company.Industry, company.Location, company.ResearchSummary,
		g.profile.Identity.ServiceName, g.profile.ServiceDescription,
		g.profile.Identity.ServiceName, g.profile.Identity.SiteURL)
}

// fallback is pure string formatting with no external call, so it can never
// fail. The template is selected by matching the company's industry against
// the profile's keyword table.
func (g *Generator) fallback(company Company) Draft {
	key := g.profile.DefaultIndustryKey
	keywords := make([]string, 0, len(g.profile.Industries))
	for keyword := range g.profile.Industries {
		keywords = append(keywords, keyword)
	}
	sort.Strings(keywords)
	for _, keyword := range keywords {
		if strings.Contains(company.Industry, keyword) {
			key = keyword
			break
		}
	}
	template := g.profile.Industries[key]

	subject := fmt.Sprintf(template.Subject, company.CompanyName)
	body := fmt.Sprintf(`ご担当者様

突然のご連絡失礼いたします。中小企業向けAI導入支援「%s」と申します。

%sの企業様では、%sにAIを活用して大幅な業務削減を実現する事例が増えています。

まずは30分の無料相談で、%s様に合ったAI活用方法をご提案できればと思います。

ご興味があればお気軽にお問い合わせください。

%s`,
		g.profile.Identity.ServiceName,
		company.Industry, template.PainPoint,
		company.CompanyName,
		g.profile.Signature())

	return Draft{
		Subject:     subject,
		Body:        body,
		GeneratedBy: "agent:Copywriter(template)",
	}
}
