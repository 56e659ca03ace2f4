// Package snippet turns raw model output into an executable binding program.
//
// A binding snippet is a sequence of `name = <query>;` statements written in
// DuckDB SQL. The statement binding AnswerBinding holds the result shown to
// the user and the optional ChartBinding holds a chart series.
package snippet

import (
	"regexp"
	"strings"
)

const (
	AnswerBinding = "ANSWER"
	ChartBinding  = "CHART"
)

type Kind string

const (
	KindSnippet Kind = "snippet"
	KindReply   Kind = "reply"
)

// Response is one classified model reply. Exactly one of Snippet and Reply is
// set, according to Kind.
type Response struct {
	Kind    Kind
	Snippet string
	Reply   string
}

var (
	fenceLinePattern  = regexp.MustCompile("^\\s*```[A-Za-z0-9_+.-]*\\s*$")
	snippetTagPattern = regexp.MustCompile(`(?is)<snippet>(.*?)(?:</snippet>|$)`)
	replyTagPattern   = regexp.MustCompile(`(?is)<reply>(.*?)(?:</reply>|$)`)
	answerAssignment  = regexp.MustCompile(`(?m)^\s*` + AnswerBinding + `\s*=`)
)

// Sanitize strips markdown code fences and surrounding whitespace. Fence lines
// with or without a language tag are removed, as are fence markers glued to
// the start or end of a line. Markers elsewhere are left alone so string
// literals survive.
func Sanitize(raw string) string {
	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if fenceLinePattern.MatchString(line) {
			continue
		}
		if trimmed := strings.TrimLeft(line, " \t"); strings.HasPrefix(trimmed, "```") {
			line = strings.TrimPrefix(trimmed, "```")
		}
		if trimmed := strings.TrimRight(line, " \t"); strings.HasSuffix(trimmed, "```") {
			line = strings.TrimSuffix(trimmed, "```")
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// Classify decides whether raw is a snippet to execute or prose to relay.
// Tagged output wins. Untagged output is a snippet only when a line assigns
// the answer binding.
func Classify(raw string) Response {
	if match := snippetTagPattern.FindStringSubmatch(raw); match != nil {
		return Response{Kind: KindSnippet, Snippet: Sanitize(match[1])}
	}
	if match := replyTagPattern.FindStringSubmatch(raw); match != nil {
		return Response{Kind: KindReply, Reply: Sanitize(match[1])}
	}

	cleaned := Sanitize(raw)
	if answerAssignment.MatchString(cleaned) {
		return Response{Kind: KindSnippet, Snippet: cleaned}
	}
	return Response{Kind: KindReply, Reply: cleaned}
}
