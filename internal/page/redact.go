package page

import (
	"strings"
)

// redact clears everything that could surface rejected content. The link
// survives only in ROT13 form inside the description so operators can audit it.
func (r *Resolver) redact(d Descriptor, reason string) Descriptor {
	prefix := r.engine.cfg.RedactedPrefix
	if prefix == "" {
		prefix = r.engine.msgs.RedactedPrefix
	}

	desc := prefix
	if d.Link != nil {
		encoded := rot13(*d.Link)
		if mirror := r.engine.cfg.RedactMirror; mirror != "" {
			encoded = strings.ReplaceAll(mirror, "$1", encoded)
		}
		desc += encoded
	}

	d.Status = false
	d.Title = nil
	d.BeforeTitle = nil
	d.ID = -1
	d.Link = nil
	d.Description = &desc
	d.Redacted = true

	r.engine.logger.Info("page redacted", "site", r.baseURL, "reason", reason)
	return d
}

func rot13(s string) string {
	return strings.Map(func(c rune) rune {
		switch {
		case 'a' <= c && c <= 'z':
			return 'a' + (c-'a'+13)%26
		case 'A' <= c && c <= 'Z':
			return 'A' + (c-'A'+13)%26
		}
		return c
	}, s)
}
