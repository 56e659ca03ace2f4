// Package prompt builds the instruction text sent to the model.
package prompt

import (
	"fmt"
	"strings"

	"github.com/duckmesh/duckchat/internal/dataset"
	"github.com/duckmesh/duckchat/internal/session"
	"github.com/duckmesh/duckchat/internal/snippet"
)

const SnippetSystemPrompt = "You are a data assistant that answers questions by writing DuckDB SQL binding snippets. " +
	"You never invent data and you never describe results you have not computed."

const ExplanationSystemPrompt = "You are a data assistant. You explain computed query results to a non-technical user " +
	"in plain language, using only the numbers you are given."

// RefusalSentence is the fixed reply for questions the dataset cannot answer.
func RefusalSentence(datasetName string) string {
	return fmt.Sprintf("I'm sorry, I can only answer questions about the %s dataset.", datasetName)
}

type Composer struct {
	DatasetName     string
	ScopeGuard      bool
	MaxHistoryTurns int
}

// ComposeSnippetPrompt assembles the code generation prompt. It only reads
// history, and identical inputs always give identical output.
func (c Composer) ComposeSnippetPrompt(question string, ctx dataset.Context, history []session.Turn) string {
	var b strings.Builder

	b.WriteString("Write a DuckDB SQL binding snippet that answers the user's question about the dataset below.\n\n")

	b.WriteString("**Dataset Name:**\n")
	b.WriteString(c.DatasetName)
	b.WriteString("\n\n**Dataset Columns:**\n")
	b.WriteString(ctx.SchemaText)
	b.WriteString("\n\n**Sample Data:**\n")
	b.WriteString(ctx.SampleRows)
	b.WriteString("\n\n**Conversation So Far:**\n")
	b.WriteString(FormatHistory(session.Recent(history, c.MaxHistoryTurns)))
	b.WriteString("\n\n**User Question:**\n")
	b.WriteString(strings.TrimSpace(question))

	b.WriteString("\n\n**Instructions:**\n")
	for i, rule := range c.rules() {
		fmt.Fprintf(&b, "%d. %s\n", i+1, rule)
	}

	b.WriteString("\n**Example:**\n")
	b.WriteString("Question: What is the average amount per category?\n")
	b.WriteString("<snippet>\n")
	fmt.Fprintf(&b, "per_category = SELECT category, avg(amount) AS avg_amount FROM %s GROUP BY category;\n", c.DatasetName)
	fmt.Fprintf(&b, "%s = SELECT * FROM per_category ORDER BY avg_amount DESC;\n", snippet.AnswerBinding)
	fmt.Fprintf(&b, "%s = SELECT category, avg_amount FROM per_category ORDER BY category;\n", snippet.ChartBinding)
	b.WriteString("</snippet>")
	return b.String()
}

func (c Composer) rules() []string {
	rules := []string{
		"Write one or more statements of the form `name = <query>;`. Each query is a single read-only DuckDB SELECT (WITH, FROM, VALUES and TABLE are allowed too).",
		fmt.Sprintf("A statement may read the dataset table `%s` and any name bound by an earlier statement.", c.DatasetName),
		fmt.Sprintf("The dataset is already loaded as the table `%s`. Do not load, import, create or modify it.", c.DatasetName),
		"Date columns are timestamps; use date_trunc, strftime and date arithmetic directly.",
		fmt.Sprintf("**Bind the final result to `%s`.** It may be a single value or a table.", snippet.AnswerBinding),
		fmt.Sprintf("Optionally bind `%s` to a table whose first column is the x axis and whose other columns are numbers, when a chart helps.", snippet.ChartBinding),
		"Keep the snippet concise and focused on the question.",
		"Wrap the snippet in <snippet></snippet> tags. Do not use markdown fences.",
	}
	if c.ScopeGuard {
		rules = append(rules, fmt.Sprintf(
			"If the question cannot be answered from this dataset, do not write a snippet. Reply inside <reply></reply> tags with exactly: %s",
			RefusalSentence(c.DatasetName),
		))
	} else {
		rules = append(rules, "If the question does not need data, reply in plain language inside <reply></reply> tags.")
	}
	return rules
}

// ComposeExplanationPrompt asks the model to explain a computed result.
func (c Composer) ComposeExplanationPrompt(question, resultText string) string {
	var b strings.Builder
	b.WriteString("The user asked:\n")
	b.WriteString(strings.TrimSpace(question))
	b.WriteString("\n\nHere is the result computed from the ")
	b.WriteString(c.DatasetName)
	b.WriteString(" dataset:\n")
	b.WriteString(resultText)
	b.WriteString("\n\nAnswer the question and summarize the result in a few sentences. ")
	b.WriteString("Where the data allows, describe what it suggests about the spending habits behind it. ")
	b.WriteString("Do not mention SQL, snippets or bindings.")
	return b.String()
}

// FormatHistory renders turns as User:/Assistant: lines in order.
func FormatHistory(turns []session.Turn) string {
	if len(turns) == 0 {
		return "(none)"
	}
	lines := make([]string, 0, len(turns))
	for _, turn := range turns {
		label := "User"
		if turn.Role == session.RoleAssistant {
			label = "Assistant"
		}
		lines = append(lines, label+": "+strings.TrimSpace(turn.Content))
	}
	return strings.Join(lines, "\n")
}
