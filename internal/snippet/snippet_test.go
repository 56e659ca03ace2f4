package snippet

import (
	"errors"
	"strings"
	"testing"
)

func TestSanitizeStripsFences(t *testing.T) {
	inner := "ANSWER = SELECT count(*) FROM transactions;"
	cases := []string{
		inner,
		"```\n" + inner + "\n```",
		"```sql\n" + inner + "\n```",
		"  ```duckdb\n" + inner + "\n```  \n",
		"```" + inner + "```",
	}
	for _, raw := range cases {
		if got := Sanitize(raw); got != inner {
			t.Fatalf("Sanitize(%q) = %q, want %q", raw, got, inner)
		}
	}
}

func TestSanitizeKeepsInnerLines(t *testing.T) {
	raw := "```sql\nx = SELECT 1;\n\nANSWER = SELECT * FROM x;\n```"
	want := "x = SELECT 1;\n\nANSWER = SELECT * FROM x;"
	if got := Sanitize(raw); got != want {
		t.Fatalf("Sanitize() = %q, want %q", got, want)
	}
}

func TestSanitizeKeepsFenceMarkersInsideLiterals(t *testing.T) {
	raw := "```sql\nANSWER = SELECT 'a```b' AS note;\n```"
	want := "ANSWER = SELECT 'a```b' AS note;"
	if got := Sanitize(raw); got != want {
		t.Fatalf("Sanitize() = %q, want %q", got, want)
	}
}

func TestClassifyTaggedOutput(t *testing.T) {
	got := Classify("Sure!\n<SNIPPET>\n```sql\nANSWER = SELECT 1;\n```\n</snippet>")
	if got.Kind != KindSnippet || got.Snippet != "ANSWER = SELECT 1;" {
		t.Fatalf("Classify() = %#v", got)
	}

	got = Classify("<reply>I'm sorry, I can only answer questions about the transactions dataset.</reply>")
	if got.Kind != KindReply || got.Reply != "I'm sorry, I can only answer questions about the transactions dataset." {
		t.Fatalf("Classify() = %#v", got)
	}
}

func TestClassifyFallsBackToAnswerAssignment(t *testing.T) {
	got := Classify("```\nmonthly = SELECT 1 AS n;\nANSWER = SELECT n FROM monthly;\n```")
	if got.Kind != KindSnippet {
		t.Fatalf("Kind = %q", got.Kind)
	}
	if !strings.HasPrefix(got.Snippet, "monthly =") {
		t.Fatalf("Snippet = %q", got.Snippet)
	}
}

func TestClassifyProseMentioningAnswerIsReply(t *testing.T) {
	for _, raw := range []string{
		"I'm sorry, I can only answer questions about the transactions dataset.",
		"The ANSWER is that spending rose in March.",
		"answer = 42",
	} {
		got := Classify(raw)
		if got.Kind != KindReply {
			t.Fatalf("Classify(%q) kind = %q", raw, got.Kind)
		}
		if got.Reply != raw {
			t.Fatalf("Classify(%q) reply = %q", raw, got.Reply)
		}
	}
}

func TestParseSplitsBindings(t *testing.T) {
	program, err := Parse(`
-- monthly totals; grouped
monthly = SELECT date_trunc('month', date) AS month, sum(amount) AS total
          FROM transactions GROUP BY 1;
/* the answer; finally */
ANSWER = SELECT total FROM monthly WHERE note = 'a;b' AND "odd;name" = 'it''s';
`)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(program.Bindings) != 2 {
		t.Fatalf("bindings = %#v", program.Bindings)
	}
	if program.Bindings[0].Name != "monthly" || !strings.HasPrefix(program.Bindings[0].Query, "SELECT date_trunc('month', date)") {
		t.Fatalf("first binding = %#v", program.Bindings[0])
	}
	second := program.Bindings[1]
	if second.Name != AnswerBinding {
		t.Fatalf("second binding name = %q", second.Name)
	}
	if !strings.Contains(second.Query, "'a;b'") || !strings.Contains(second.Query, `"odd;name" = 'it''s'`) {
		t.Fatalf("second binding query = %q", second.Query)
	}
	if !program.Binds(AnswerBinding) || program.Binds(ChartBinding) {
		t.Fatal("Binds() mismatch")
	}
}

func TestParseKeepsDollarQuotedStrings(t *testing.T) {
	program, err := Parse("x = SELECT $$a;b$$ AS s, $tag$it's; $$ok$$$tag$ AS t;\nANSWER = SELECT s FROM x;")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(program.Bindings) != 2 {
		t.Fatalf("bindings = %#v", program.Bindings)
	}
	if want := "SELECT $$a;b$$ AS s, $tag$it's; $$ok$$$tag$ AS t"; program.Bindings[0].Query != want {
		t.Fatalf("first query = %q, want %q", program.Bindings[0].Query, want)
	}

	if _, err := Parse("ANSWER = SELECT $$never closed;"); err == nil {
		t.Fatal("expected unterminated dollar quote error")
	}
}

func TestParseRejectsMalformedSnippets(t *testing.T) {
	cases := map[string]string{
		"empty":          "  -- nothing here\n",
		"bare query":     "SELECT 1;",
		"bad name":       "1x = SELECT 1;",
		"missing query":  "ANSWER = ;",
		"open quote":     "ANSWER = SELECT 'oops;",
		"open comment":   "ANSWER = SELECT 1 /* never closed",
		"second is bare": "x = SELECT 1; DROP TABLE transactions;",
	}
	for name, text := range cases {
		_, err := Parse(text)
		var syntaxErr *SyntaxError
		if !errors.As(err, &syntaxErr) {
			t.Fatalf("%s: expected SyntaxError, got %v", name, err)
		}
	}
}

func TestParseReportsStatementNumber(t *testing.T) {
	_, err := Parse("x = SELECT 1;\nDELETE FROM transactions;")
	var syntaxErr *SyntaxError
	if !errors.As(err, &syntaxErr) {
		t.Fatalf("expected SyntaxError, got %v", err)
	}
	if syntaxErr.Statement != 2 {
		t.Fatalf("Statement = %d", syntaxErr.Statement)
	}
	if !strings.Contains(err.Error(), "statement 2") {
		t.Fatalf("Error() = %q", err.Error())
	}
}
