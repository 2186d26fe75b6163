package service

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/codescope/codescope/domain/assembly"
)

// Formatter renders an AssembledContext to bytes. Formatters are pure;
// exactly one is selected by configuration.
type Formatter interface {
	Name() string
	Format(ctx assembly.AssembledContext) []byte
}

// NewFormatter returns the named formatter; unknown names fall back to
// markdown.
func NewFormatter(name string) Formatter {
	switch name {
	case "claude":
		return claudeFormatter{}
	case "plain":
		return plainFormatter{}
	case "json":
		return jsonFormatter{}
	default:
		return markdownFormatter{}
	}
}

type markdownFormatter struct{}

func (markdownFormatter) Name() string { return "markdown" }

func (markdownFormatter) Format(ctx assembly.AssembledContext) []byte {
	var b strings.Builder
	b.WriteString("# Context\n\n")
	b.WriteString(ctx.Text)
	b.WriteString("\n\n## Sources\n\n")
	for _, s := range ctx.Sources {
		fmt.Fprintf(&b, "- **%s** (%s) — %s, score %.3f", s.Identifier, s.Type, s.FilePath, s.Score)
		if s.Truncated {
			b.WriteString(", truncated")
		}
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "\nTokens: %d/%d\n", ctx.TokensUsed, ctx.Budget)
	return []byte(b.String())
}

type claudeFormatter struct{}

func (claudeFormatter) Name() string { return "claude" }

// Format wraps the Markdown body in XML with token accounting on the
// attributes. Content is escaped so unit source cannot break the framing.
func (claudeFormatter) Format(ctx assembly.AssembledContext) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "<context tokens=%q budget=%q>\n", fmt.Sprint(ctx.TokensUsed), fmt.Sprint(ctx.Budget))
	b.WriteString(escapeXML(ctx.Text))
	b.WriteString("\n<sources>\n")
	for _, s := range ctx.Sources {
		fmt.Fprintf(&b, "  <source identifier=%q type=%q file=%q score=\"%.3f\" truncated=\"%t\"/>\n",
			escapeXML(s.Identifier), escapeXML(string(s.Type)), escapeXML(s.FilePath), s.Score, s.Truncated)
	}
	b.WriteString("</sources>\n</context>\n")
	return []byte(b.String())
}

type plainFormatter struct{}

func (plainFormatter) Name() string { return "plain" }

func (plainFormatter) Format(ctx assembly.AssembledContext) []byte {
	var b strings.Builder
	b.WriteString(strings.Repeat("=", 60) + "\n")
	b.WriteString(ctx.Text)
	b.WriteString("\n" + strings.Repeat("=", 60) + "\n")
	fmt.Fprintf(&b, "Tokens: %d/%d\n", ctx.TokensUsed, ctx.Budget)
	b.WriteString("Sources:\n")
	for _, s := range ctx.Sources {
		fmt.Fprintf(&b, "  [%s] %s (%s)\n", s.Type, s.Identifier, s.FilePath)
	}
	return []byte(b.String())
}

type jsonFormatter struct{}

func (jsonFormatter) Name() string { return "json" }

func (jsonFormatter) Format(ctx assembly.AssembledContext) []byte {
	data, err := json.MarshalIndent(ctx, "", "  ")
	if err != nil {
		return []byte(fmt.Sprintf(`{"error":%q}`, err.Error()))
	}
	return append(data, '\n')
}

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
)

func escapeXML(s string) string {
	return xmlEscaper.Replace(s)
}
