// Package locale holds every user-facing string the resolvers produce.
package locale

import (
	"fmt"
	"strings"
)

// Messages is one complete set of user-facing phrasing.
type Messages struct {
	Lang string

	ErrorPrefix      string // prefixed to any error surfaced in a description
	Timeout          string
	Cloudflare       string
	Refused          string // HTTP 403 from the site
	NoScheme         string
	NotMediaWiki     string // followed by the cause
	SiteInfoFailed   string // followed by the cause
	NoTextExtracts   string
	EmptyQuery       string
	InvalidTitleFrom string // English reason prefix reported by MediaWiki
	InvalidTitleTo   string
	InvalidTitleWrap string // %s is the translated reason
	RedactedPrefix   string

	// Hints appended to transport errors for hosts known to be flaky.
	HostHints map[string]string
}

// ZhCN is the default message set.
var ZhCN = Messages{
	Lang:             "zh-CN",
	ErrorPrefix:      "发生错误：",
	Timeout:          "错误：尝试建立连接超时。",
	Cloudflare:       "CloudFlare拦截了机器人的请求，请联系站点管理员解决此问题。",
	Refused:          "服务器拒绝了机器人的请求。",
	NoScheme:         "所给的链接没有指明协议头（链接应以http://或https://开头）。",
	NotMediaWiki:     "此站点也许不是一个有效的Mediawiki：",
	SiteInfoFailed:   "从API获取信息时出错：",
	NoTextExtracts:   "警告：此wiki没有启用TextExtracts扩展，返回的页面预览内容将为未处理的原始Wikitext文本。",
	EmptyQuery:       "发生错误：API未返回任何内容，请联系此站点管理员获取原因。",
	InvalidTitleFrom: "The requested page title contains invalid characters:",
	InvalidTitleTo:   "请求的页面标题包含非法字符：",
	InvalidTitleWrap: "发生错误：“%s”。",
	RedactedPrefix:   "（已屏蔽）",
	HostHints: map[string]string{
		"moegirl.org.cn": "萌娘百科的api接口不稳定，请稍后再试或直接访问站点。",
	},
}

// En is an English message set.
var En = Messages{
	Lang:             "en",
	ErrorPrefix:      "Error: ",
	Timeout:          "Error: timed out while connecting.",
	Cloudflare:       "Cloudflare blocked the bot's request; ask the site administrator to allow it.",
	Refused:          "The server refused the bot's request.",
	NoScheme:         "The link has no scheme (it should start with http:// or https://).",
	NotMediaWiki:     "This site may not be a valid MediaWiki: ",
	SiteInfoFailed:   "Error while fetching site information: ",
	NoTextExtracts:   "Warning: this wiki does not have the TextExtracts extension; page previews will be raw wikitext.",
	EmptyQuery:       "Error: the API returned nothing; contact the site administrator.",
	InvalidTitleFrom: "The requested page title contains invalid characters:",
	InvalidTitleTo:   "The requested page title contains invalid characters:",
	InvalidTitleWrap: "Error: \"%s\".",
	RedactedPrefix:   "(redacted) ",
	HostHints: map[string]string{
		"moegirl.org.cn": "The Moegirlpedia API is unstable; try again later or visit the site directly.",
	},
}

// ByLang returns the message set for lang, defaulting to ZhCN.
func ByLang(lang string) Messages {
	switch strings.ToLower(strings.TrimSpace(lang)) {
	case "en", "en-us", "en-gb":
		return En
	default:
		return ZhCN
	}
}

// Hint returns the extra advice for the first known host contained in rawURL.
func (m Messages) Hint(rawURL string) string {
	for host, hint := range m.HostHints {
		if strings.Contains(rawURL, host) {
			return hint
		}
	}
	return ""
}

// InvalidTitle turns the wiki's invalid-title reason into a description.
func (m Messages) InvalidTitle(reason string) string {
	translated := strings.ReplaceAll(reason, m.InvalidTitleFrom, m.InvalidTitleTo)
	out := fmt.Sprintf(m.InvalidTitleWrap, translated)
	// The reason usually ends with a quoted title followed by a period.
	return strings.ReplaceAll(out, "\".”", "\"”")
}
