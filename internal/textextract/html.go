package textextract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// dropped are elements whose content never belongs in a description.
const dropped = "script, style, noscript, table, img, sup.reference, .mw-empty-elt"

// HTMLToText renders parsed article HTML as plain text. Headings become
// "## Heading[edit]" lines, list items get a "* " prefix and each block ends
// with a single line break. Link text is kept; links, images and tables are not.
func HTMLToText(src string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(src))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	doc.Find(dropped).Remove()

	// Newer MediaWiki wraps headings in div.mw-heading with the edit link as a
	// sibling; move it inside so the marker stays on the heading line.
	doc.Find("div.mw-heading").Each(func(_ int, s *goquery.Selection) {
		heading := s.ChildrenFiltered("h1, h2, h3, h4, h5, h6").First()
		edit := s.ChildrenFiltered(".mw-editsection")
		if heading.Length() > 0 && edit.Length() > 0 {
			heading.AppendSelection(edit)
		}
	})

	w := &textWriter{}
	for _, n := range doc.Find("body").Nodes {
		w.children(n)
	}
	w.flush()
	return strings.Join(w.lines, "\n"), nil
}

type textWriter struct {
	lines []string
	cur   strings.Builder
	pre   int
}

func (w *textWriter) flush() {
	line := strings.TrimSpace(w.cur.String())
	if line != "" {
		w.lines = append(w.lines, line)
	}
	w.cur.Reset()
}

func (w *textWriter) text(s string) {
	if w.pre > 0 {
		for i, part := range strings.Split(s, "\n") {
			if i > 0 {
				w.flush()
			}
			w.cur.WriteString(part)
		}
		return
	}
	collapsed := strings.Join(strings.Fields(s), " ")
	if collapsed == "" {
		if s != "" {
			w.space()
		}
		return
	}
	if startsWithSpace(s) {
		w.space()
	}
	w.cur.WriteString(collapsed)
	if endsWithSpace(s) {
		w.space()
	}
}

func (w *textWriter) space() {
	cur := w.cur.String()
	if cur != "" && !strings.HasSuffix(cur, " ") {
		w.cur.WriteByte(' ')
	}
}

func (w *textWriter) children(n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.node(c)
	}
}

func (w *textWriter) node(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		w.text(n.Data)
		return
	case html.ElementNode:
	default:
		w.children(n)
		return
	}

	switch n.Data {
	case "br":
		w.flush()
	case "h1", "h2", "h3", "h4", "h5", "h6":
		w.flush()
		w.cur.WriteString(strings.Repeat("#", int(n.Data[1]-'0')) + " ")
		w.children(n)
		w.flush()
	case "li":
		w.flush()
		w.cur.WriteString("* ")
		w.children(n)
		w.flush()
	case "pre":
		w.flush()
		w.pre++
		w.children(n)
		w.pre--
		w.flush()
	case "p", "div", "ul", "ol", "dl", "dt", "dd", "blockquote", "section",
		"figure", "figcaption", "center", "hr":
		w.flush()
		w.children(n)
		w.flush()
	default:
		w.children(n)
	}
}

func startsWithSpace(s string) bool {
	return s != "" && strings.TrimLeft(s[:1], " \t\n\r\f") == ""
}

func endsWithSpace(s string) bool {
	return s != "" && strings.TrimRight(s[len(s)-1:], " \t\n\r\f") == ""
}

// ExtractSection returns the text after the heading line named section, or
// text unchanged when no heading matches. The heading may carry a trailing
// bracketed marker such as "[edit]" or "[编辑]".
func ExtractSection(text, section string) string {
	if section == "" {
		return text
	}

	names := []string{section}
	if spaced := strings.ReplaceAll(section, "_", " "); spaced != section {
		names = append(names, spaced)
	}

	lines := strings.Split(text, "\n")
	for _, name := range names {
		heading := regexp.MustCompile(`^#{2,6}\s*` + regexp.QuoteMeta(name) + `\s*(?:\[[^\]]*\])?\s*$`)
		for i, l := range lines {
			if heading.MatchString(l) {
				return strings.Join(lines[i+1:], "\n")
			}
		}
	}
	return text
}
