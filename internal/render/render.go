// Package render turns message text into safe HTML for the web viewer.
package render

import (
	"bytes"
	"html"
	"html/template"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/util"
)

// Only paragraphs and emphasis are parsed. Lists, headings, code spans and
// raw HTML stay literal text, and the renderer escapes them.
var md = goldmark.New(
	goldmark.WithParser(parser.NewParser(
		parser.WithBlockParsers(util.Prioritized(parser.NewParagraphParser(), 1000)),
		parser.WithInlineParsers(util.Prioritized(parser.NewEmphasisParser(), 500)),
	)),
)

// Message renders text as HTML. **bold** is honoured and every newline
// becomes a <br>, blank lines included.
func Message(text string) template.HTML {
	lines := strings.Split(text, "\n")
	out := make([]string, len(lines))
	for i, line := range lines {
		out[i] = inline(line)
	}
	return template.HTML(strings.Join(out, "<br>\n"))
}

// inline renders one line without its paragraph wrapper.
func inline(line string) string {
	var buf bytes.Buffer
	if err := md.Convert([]byte(line), &buf); err != nil {
		return html.EscapeString(line)
	}
	s := strings.TrimSpace(buf.String())
	s = strings.TrimPrefix(s, "<p>")
	return strings.TrimSuffix(s, "</p>")
}

// IsRTL reports whether text contains Hebrew and should be laid out
// right-to-left.
func IsRTL(text string) bool {
	for _, r := range text {
		if r >= 0x0590 && r <= 0x05FF {
			return true
		}
	}
	return false
}

// Dir is IsRTL as an HTML dir attribute value.
func Dir(text string) string {
	if IsRTL(text) {
		return "rtl"
	}
	return "ltr"
}
