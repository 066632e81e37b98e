package page

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/olgasafonova/wiki-resolver-mcp-server/internal/base"
	"github.com/olgasafonova/wiki-resolver-mcp-server/internal/locale"
)

// DefaultAcceptLanguage prefers Chinese content variants, then English.
const DefaultAcceptLanguage = "zh-CN,zh;q=0.9,en;q=0.8,en-GB;q=0.7,en-US;q=0.6"

// Config holds resolver settings
type Config struct {
	// Timeout for a single HTTP attempt
	Timeout time.Duration

	// MaxRetries for failed requests
	MaxRetries int

	// UserAgent identifies the resolver to wiki operators
	UserAgent string

	// AcceptLanguage is sent with every request so wikis pick a content variant
	AcceptLanguage string

	// CachePath is the SQLite file for siteinfo; empty keeps the cache in memory
	CachePath string

	// AuditFile is a YAML allow/block list keyed by API URL (optional)
	AuditFile string

	// ModerationEnabled turns the moderation gate on for sites not on the allow list
	ModerationEnabled bool

	// BlockedWordsFile is a YAML word list for the built-in checker (optional)
	BlockedWordsFile string

	// DefaultWiki is used when a caller names no wiki
	DefaultWiki string

	// Lang selects the message set ("zh-CN" or "en")
	Lang string

	// RedactedPrefix starts the description of a redacted result;
	// empty uses the message set's prefix
	RedactedPrefix string

	// RedactMirror is an optional "$1" template wrapping the encoded link of a redacted result
	RedactMirror string
}

// DefaultConfig returns the settings used when no environment is set.
func DefaultConfig() Config {
	return Config{
		Timeout:           base.DefaultTimeout,
		MaxRetries:        base.DefaultMaxRetry,
		UserAgent:         base.DefaultUserAgent,
		AcceptLanguage:    DefaultAcceptLanguage,
		ModerationEnabled: true,
		Lang:              locale.ZhCN.Lang,
	}
}

// LoadConfig loads configuration from WIKI_RESOLVER_* environment variables.
// Unparsable durations and counts fall back to their defaults.
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	if t := os.Getenv("WIKI_RESOLVER_TIMEOUT"); t != "" {
		if d, err := time.ParseDuration(t); err == nil && d > 0 {
			cfg.Timeout = d
		}
	}

	if r := os.Getenv("WIKI_RESOLVER_MAX_RETRIES"); r != "" {
		if n, err := strconv.Atoi(r); err == nil && n > 0 {
			cfg.MaxRetries = n
		}
	}

	if ua := os.Getenv("WIKI_RESOLVER_USER_AGENT"); ua != "" {
		cfg.UserAgent = ua
	}
	if al := os.Getenv("WIKI_RESOLVER_ACCEPT_LANGUAGE"); al != "" {
		cfg.AcceptLanguage = al
	}
	if lang := os.Getenv("WIKI_RESOLVER_LANG"); lang != "" {
		cfg.Lang = lang
	}

	if m := os.Getenv("WIKI_RESOLVER_MODERATION"); m != "" {
		switch strings.ToLower(strings.TrimSpace(m)) {
		case "on", "true", "1", "yes":
			cfg.ModerationEnabled = true
		case "off", "false", "0", "no":
			cfg.ModerationEnabled = false
		default:
			return nil, fmt.Errorf("WIKI_RESOLVER_MODERATION must be on or off, got %q", m)
		}
	}

	cfg.CachePath = os.Getenv("WIKI_RESOLVER_CACHE_PATH")
	cfg.AuditFile = os.Getenv("WIKI_RESOLVER_AUDIT_FILE")
	cfg.BlockedWordsFile = os.Getenv("WIKI_RESOLVER_BLOCKED_WORDS")
	cfg.DefaultWiki = os.Getenv("WIKI_RESOLVER_DEFAULT_WIKI")
	cfg.RedactedPrefix = os.Getenv("WIKI_RESOLVER_REDACTED_PREFIX")
	cfg.RedactMirror = os.Getenv("WIKI_RESOLVER_REDACT_MIRROR")

	if cfg.RedactMirror != "" && !strings.Contains(cfg.RedactMirror, "$1") {
		return nil, fmt.Errorf("WIKI_RESOLVER_REDACT_MIRROR must contain $1, got %q", cfg.RedactMirror)
	}

	return &cfg, nil
}

// Messages returns the message set selected by Lang.
func (c Config) Messages() locale.Messages {
	return locale.ByLang(c.Lang)
}
