// Package profile bundles the per-market-segment parameters of the sales
// pipeline: search queries, exclusion and skip lists, trust rules and message
// templates. One pipeline, many profiles: deployments targeting a new market
// segment change only these tables.
package profile

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Template is a deterministic fallback message for one industry keyword.
type Template struct {
	Subject   string `yaml:"subject"`
	PainPoint string `yaml:"painPoint"`
}

// Identity is the sending organization: the values typed into discovered
// forms and the signature appended to every generated body.
type Identity struct {
	SenderName  string `yaml:"senderName"`
	Email       string `yaml:"email"`
	Company     string `yaml:"company"`
	ServiceName string `yaml:"serviceName"`
	SiteURL     string `yaml:"siteUrl"`
}

type Profile struct {
	Name              string              `yaml:"name"`
	TargetArea        string              `yaml:"targetArea"`
	Queries           []string            `yaml:"queries"`
	ExcludeDomains    []string            `yaml:"excludeDomains"`
	SkipTitleKeywords []string            `yaml:"skipTitleKeywords"`
	SkipHostKeywords  []string            `yaml:"skipHostKeywords"`
	NameBlocklist     []string            `yaml:"nameBlocklist"`
	TrustedSuffixes   []string            `yaml:"trustedSuffixes"`
	// TrustAllMatches makes the URL/title keyword heuristic override a
	// negative model self-report unconditionally instead of only for
	// trusted suffixes. Specialized variants (e.g. ryokan) set this.
	TrustAllMatches    bool                `yaml:"trustAllMatches"`
	TrustKeywords      []string            `yaml:"trustKeywords"`
	ContactKeywords    []string            `yaml:"contactKeywords"`
	GuessPaths         []string            `yaml:"guessPaths"`
	CaptchaKeywords    []string            `yaml:"captchaKeywords"`
	TokenPatterns      []string            `yaml:"tokenPatterns"`
	SuccessPhrases     []string            `yaml:"successPhrases"`
	Industries         map[string]Template `yaml:"industries"`
	DefaultIndustryKey string              `yaml:"defaultIndustryKey"`
	Identity           Identity            `yaml:"identity"`
	ServiceDescription string              `yaml:"serviceDescription"`
}

// Signature is the fixed closing block every outgoing body ends with.
func (p Profile) Signature() string {
	return fmt.Sprintf("━━━━━━━━━━━━\n%s\n%s\n━━━━━━━━━━━━", p.Identity.ServiceName, p.Identity.SiteURL)
}

// Trusted reports whether a hostname carries one of the profile's trusted
// suffixes (a country-code commercial suffix implies a genuine organization
// page).
func (p Profile) Trusted(host string) bool {
	host = strings.ToLower(host)
	for _, suffix := range p.TrustedSuffixes {
		if strings.HasSuffix(host, suffix) {
			return true
		}
	}
	return false
}

// LoadFile reads a YAML profile. Absent keys keep the default profile's
// values, so segment files only list what they change.
func LoadFile(path string) (Profile, error) {
	p := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, err
	}
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return Profile{}, fmt.Errorf("parse campaign profile %s: %w", path, err)
	}
	return p, nil
}

// Default is the Tokyo-area small-business campaign the system shipped with.
func Default() Profile {
	return Profile{
		Name:       "default",
		TargetArea: "東京都・首都圏",
		Queries: []string{
			"東京都 渋谷区 株式会社 代表取締役 資本金 設立",
			"東京都 新宿区 有限会社 代表者 資本金 設立年月",
			"東京都 港区 株式会社 代表取締役社長 資本金 従業員",
			"神奈川県 横浜市 株式会社 代表取締役 資本金 設立",
			"東京都 世田谷区 株式会社 代表取締役 事業内容 資本金",
			"東京都 品川区 有限会社 代表者 設立 事業内容",
			"東京都 墨田区 江東区 株式会社 代表取締役 資本金",
		},
		ExcludeDomains: []string{
			"nikkei.com", "asahi.com", "yomiuri.co.jp", "mainichi.jp", "nhk.or.jp",
			"sankei.com", "jiji.com", "kyodo.co.jp",
			"yahoo.co.jp", "google.com", "bing.com",
			"hatena.ne.jp", "ameblo.jp", "livedoor.com", "note.com", "blogger.com",
			"twitter.com", "x.com", "facebook.com", "instagram.com", "linkedin.com",
			"youtube.com", "github.com", "wikipedia.org",
			"indeed.com", "glassdoor.com", "recruit.co.jp", "rikunabi.com",
			"mynavi.jp", "doda.jp", "hellowork.mhlw.go.jp",
			"itmedia.co.jp", "techcrunch.com", "cnet.com", "wired.jp",
			"pref.tokyo.lg.jp", "metro.tokyo.lg.jp", "city.shibuya.tokyo.jp",
			"bengo4.com", "keyman.or.jp", "aismiley.jp",
		},
		SkipTitleKeywords: []string{
			"ニュース", "速報", "まとめ", "ランキング", "一覧", "比較",
			"おすすめ", "プレスリリース", "転職", "求人", "掲示板",
		},
		SkipHostKeywords: []string{
			"auction", "rakuten", "tabelog", "tripadvisor", "jalan", "ikyu", "booking",
		},
		NameBlocklist:   []string{"ニュース", "行政", "一覧", "まとめ", "比較"},
		TrustedSuffixes: []string{".co.jp", ".jp"},
		TrustKeywords:   []string{"株式会社", "有限会社", "公式サイト"},
		ContactKeywords: []string{
			"contact", "お問い合わせ", "inquiry", "inquire",
			"問合せ", "問い合わせ", "toiawase", "otoiawase", "contact-us",
		},
		GuessPaths: []string{"/contact", "/contact/", "/inquiry", "/お問い合わせ"},
		CaptchaKeywords: []string{
			"captcha", "recaptcha", "hcaptcha", "recaptha", "robot", "ロボット", "認証",
		},
		TokenPatterns: []string{
			"_wpnonce", "csrf", "_token", "authenticity_token", "nonce",
		},
		SuccessPhrases: []string{
			"ありがとうございました", "送信が完了", "送信完了", "受け付けました", "受付完了",
			"thank you", "received", "successfully",
		},
		Industries: map[string]Template{
			"小売": {Subject: "【在庫管理の自動化】%s様の業務効率化について", PainPoint: "在庫管理・発注業務の自動化"},
			"飲食": {Subject: "【予約・注文管理をAIで効率化】%s様へ", PainPoint: "予約管理・メニュー提案の自動化"},
			"IT":  {Subject: "【社内業務の30%%削減】AI活用のご提案 — %s様", PainPoint: "見積・議事録・コード作成の効率化"},
			"士業": {Subject: "【書類作成をAIで半分の時間に】%s様へのご提案", PainPoint: "契約書・申請書類作成の効率化"},
			"製造": {Subject: "【報告書・見積作成をAIで自動化】%s様へ", PainPoint: "見積・報告書作成の効率化"},
		},
		DefaultIndustryKey: "IT",
		Identity: Identity{
			SenderName:  "AI駆け込み寺 営業担当",
			Email:       "info@ai-kakekomi-dera.vercel.app",
			Company:     "AI駆け込み寺",
			ServiceName: "AI駆け込み寺",
			SiteURL:     "https://ai-kakekomi-dera.vercel.app",
		},
		ServiceDescription: `- 無料相談（30分、オンライン）
- AIスターターパック（¥5,000）: ChatGPT/Claude等の初期設定・プロンプト設計
- 本格導入・顧問（¥50,000〜/月）
- URL: https://ai-kakekomi-dera.vercel.app`,
	}
}
