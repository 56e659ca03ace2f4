package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/duckmesh/duckchat/internal/dataset"
	"github.com/duckmesh/duckchat/internal/llm"
	"github.com/duckmesh/duckchat/internal/observability"
	"github.com/duckmesh/duckchat/internal/prompt"
	"github.com/duckmesh/duckchat/internal/query"
)

const DefaultSummaryRows = 50

// Synthesizer turns a computed answer into a plain-language explanation.
type Synthesizer struct {
	model       llm.Completer
	composer    prompt.Composer
	summaryRows int
}

func NewSynthesizer(model llm.Completer, composer prompt.Composer, summaryRows int) *Synthesizer {
	if summaryRows <= 0 {
		summaryRows = DefaultSummaryRows
	}
	return &Synthesizer{model: model, composer: composer, summaryRows: summaryRows}
}

// Stringify renders an answer the way it is shown to the model.
func (s *Synthesizer) Stringify(value query.Value) string {
	if value.Kind == query.ValueScalar {
		return dataset.FormatValue(value.Scalar)
	}
	if len(value.Rows) == 0 {
		return dataset.FormatTable(value.Columns, nil, 0) + "\n(no rows)"
	}

	text := dataset.FormatTable(value.Columns, value.Rows, s.summaryRows)
	shown := min(len(value.Rows), s.summaryRows)
	switch {
	case value.Truncated:
		text += fmt.Sprintf("\n(showing the first %d rows; the result has more)", shown)
	case shown < len(value.Rows):
		text += fmt.Sprintf("\n(showing %d of %d rows)", shown, len(value.Rows))
	}
	return text
}

// Explain asks the model to explain answer and returns its text verbatim.
func (s *Synthesizer) Explain(ctx context.Context, question string, answer query.Value) (string, error) {
	completion, err := complete(ctx, s.model, observability.ModelStageExplanation, llm.Request{
		System: prompt.ExplanationSystemPrompt,
		Prompt: s.composer.ComposeExplanationPrompt(question, s.Stringify(answer)),
	})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(completion.Text) == "" {
		return "", llm.ErrEmptyCompletion
	}
	return completion.Text, nil
}

func complete(ctx context.Context, model llm.Completer, stage string, req llm.Request) (llm.Completion, error) {
	start := time.Now()
	completion, err := model.Complete(ctx, req)
	observability.ObserveModelCall(stage, err, time.Since(start))
	return completion, err
}
