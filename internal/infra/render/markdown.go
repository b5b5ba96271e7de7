// Package render turns remote model output into HTML that is safe to inject.
// Raw HTML in the source is never passed through: goldmark drops it and the
// bluemonday policy strips anything that survives.
package render

import (
	"bytes"
	"fmt"
	"html"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
)

// Theme is passed explicitly with every render.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// ParseTheme falls back to light for anything unknown.
func ParseTheme(s string) Theme {
	if strings.EqualFold(strings.TrimSpace(s), string(ThemeDark)) {
		return ThemeDark
	}
	return ThemeLight
}

type Options struct {
	Theme Theme
}

type Renderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

func New() *Renderer {
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
	)
	policy := bluemonday.UGCPolicy()
	policy.RequireNoFollowOnLinks(true)
	policy.AddTargetBlankToFullyQualifiedLinks(true)
	return &Renderer{md: md, policy: policy}
}

// Render converts Markdown (or plain text) into sanitized HTML wrapped in an
// article carrying the theme class.
func (r *Renderer) Render(raw string, opts Options) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(normalize(raw)), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	body := r.policy.SanitizeBytes(buf.Bytes())
	theme := opts.Theme
	if theme == "" {
		theme = ThemeLight
	}
	return fmt.Sprintf(`<article class="report theme-%s">%s</article>`, html.EscapeString(string(theme)), body), nil
}

// normalize promotes the "Heading:" lines some models emit on their own line
// into Markdown headings and unifies line endings.
func normalize(raw string) string {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	lines := strings.Split(raw, "\n")
	for i, l := range lines {
		t := strings.TrimSpace(l)
		if len(t) > 1 && len(t) <= 60 && strings.HasSuffix(t, ":") && !strings.ContainsAny(t, "#-*|`") &&
			(i == 0 || strings.TrimSpace(lines[i-1]) == "") &&
			(i+1 < len(lines) && strings.TrimSpace(lines[i+1]) != "") {
			lines[i] = "## " + strings.TrimSuffix(t, ":")
		}
	}
	return strings.Join(lines, "\n")
}

// Filename is the download name of a report: <tool>-report-<date>.txt.
func Filename(tool string, at time.Time) string {
	return fmt.Sprintf("%s-report-%s.txt", tool, at.UTC().Format("2006-01-02"))
}

// PlainText is the body of the download: title, the raw report and a footer.
func PlainText(title, raw, disclaimer string, at time.Time) string {
	var b strings.Builder
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", utf8.RuneCountInString(title)))
	b.WriteString("\n")
	fmt.Fprintf(&b, "Generated %s\n\n", at.UTC().Format(time.RFC1123))
	b.WriteString(strings.TrimSpace(raw))
	b.WriteString("\n")
	if disclaimer != "" && !strings.Contains(raw, disclaimer) {
		b.WriteString("\n")
		b.WriteString(disclaimer)
		b.WriteString("\n")
	}
	return b.String()
}
