// Package render turns file contents into the HTML fragments the viewer
// displays.
package render

import (
	"html"
	"strings"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

const DefaultStyle = "github"

// SplitLines splits text the way the viewer numbers lines: a trailing
// newline does not start a new line.
func SplitLines(text string) []string {
	lines := strings.Split(text, "\n")
	if len(lines) > 1 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// Highlight tokenizes source with a lexer picked from path and returns one
// HTML fragment per line, aligned with SplitLines(source).
func Highlight(path, source string) ([]string, error) {
	lexer := lexers.Match(path)
	if lexer == nil {
		lexer = lexers.Analyse(source)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	it, err := lexer.Tokenise(nil, source)
	if err != nil {
		return nil, err
	}

	want := len(SplitLines(source))
	out := make([]string, 0, want)
	for _, line := range chroma.SplitTokensIntoLines(it.Tokens()) {
		if len(out) == want {
			break
		}
		var b strings.Builder
		for _, tok := range line {
			text := strings.TrimSuffix(tok.Value, "\n")
			if text == "" {
				continue
			}
			class := tokenClass(tok.Type)
			if class == "" {
				b.WriteString(html.EscapeString(text))
				continue
			}
			b.WriteString(`<span class="`)
			b.WriteString(class)
			b.WriteString(`">`)
			b.WriteString(html.EscapeString(text))
			b.WriteString(`</span>`)
		}
		out = append(out, b.String())
	}
	for len(out) < want {
		out = append(out, "")
	}
	return out, nil
}

func tokenClass(tt chroma.TokenType) string {
	for _, t := range []chroma.TokenType{tt, tt.SubCategory(), tt.Category()} {
		if class, ok := chroma.StandardTypes[t]; ok {
			return class
		}
	}
	return ""
}

// StyleCSS returns the stylesheet for the class names Highlight emits,
// scoped under the .chroma container.
func StyleCSS(name string) (string, error) {
	if name == "" {
		name = DefaultStyle
	}
	var b strings.Builder
	formatter := chromahtml.New(chromahtml.WithClasses(true))
	if err := formatter.WriteCSS(&b, styles.Get(name)); err != nil {
		return "", err
	}
	return b.String(), nil
}
