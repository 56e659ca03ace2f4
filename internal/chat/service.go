// Package chat runs one question through the answer pipeline: prompt, model,
// sanitizer, sandbox, explanation, and the session log.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/duckmesh/duckchat/internal/dataset"
	"github.com/duckmesh/duckchat/internal/llm"
	"github.com/duckmesh/duckchat/internal/observability"
	"github.com/duckmesh/duckchat/internal/prompt"
	"github.com/duckmesh/duckchat/internal/query"
	"github.com/duckmesh/duckchat/internal/session"
	"github.com/duckmesh/duckchat/internal/snippet"
)

var (
	ErrTurnInProgress = errors.New("a turn is already in progress for this session")
	ErrEmptyQuestion  = errors.New("question is required")
)

type Outcome string

const (
	OutcomeAnswered        Outcome = "answered"
	OutcomeReplied         Outcome = "replied"
	OutcomeNoAnswer        Outcome = "no_answer"
	OutcomeExecutionFailed Outcome = "execution_failed"
	OutcomeModelFailed     Outcome = "model_failed"
	OutcomeExplainFailed   Outcome = "explain_failed"
)

const (
	messageModelFailed     = "Sorry, the assistant could not be reached. Please try again."
	messageNoAnswer        = "Sorry, the generated query ran but did not produce an answer. Try rephrasing the question."
	messageExecutionFailed = "Sorry, the generated query failed. Try rephrasing the question."
	messageExplainFailed   = "The answer was computed but could not be explained. The raw result is shown instead."
)

const recordTimeout = 5 * time.Second

// TurnError describes why a turn did not produce an answer.
type TurnError struct {
	Kind    string `json:"kind"`
	Binding string `json:"binding,omitempty"`
	Detail  string `json:"detail"`
}

type TurnResult struct {
	SessionID  string       `json:"session_id"`
	Outcome    Outcome      `json:"outcome"`
	Question   string       `json:"question"`
	Reply      string       `json:"reply,omitempty"`
	Message    string       `json:"message,omitempty"`
	Snippet    string       `json:"snippet,omitempty"`
	Answer     *query.Value `json:"answer,omitempty"`
	AnswerText string       `json:"answer_text,omitempty"`
	Chart      *query.Chart `json:"chart,omitempty"`
	Warnings   []string     `json:"warnings,omitempty"`
	Error      *TurnError   `json:"error,omitempty"`
	DurationMS int64        `json:"duration_ms"`
}

// Recorded reports whether the turn appends an assistant entry to the log.
func (r TurnResult) Recorded() bool {
	return r.Outcome == OutcomeAnswered || r.Outcome == OutcomeReplied
}

type Config struct {
	Context        dataset.Context
	Tables         []query.TableFile
	Composer       prompt.Composer
	RowLimit       int
	SandboxTimeout time.Duration
	SummaryRows    int
}

type Service struct {
	sessions session.Store
	model    llm.Completer
	engine   query.Engine
	synth    *Synthesizer
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time

	mu   sync.Mutex
	busy map[string]struct{}
}

func NewService(sessions session.Store, model llm.Completer, engine query.Engine, cfg Config, logger *slog.Logger) (*Service, error) {
	if sessions == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if model == nil {
		return nil, fmt.Errorf("model is required")
	}
	if engine == nil {
		return nil, fmt.Errorf("query engine is required")
	}
	if len(cfg.Tables) == 0 {
		return nil, fmt.Errorf("at least one dataset table is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		sessions: sessions,
		model:    model,
		engine:   engine,
		synth:    NewSynthesizer(model, cfg.Composer, cfg.SummaryRows),
		cfg:      cfg,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
		busy:     map[string]struct{}{},
	}, nil
}

// Ask processes one question in a session. Pipeline failures are reported
// through the returned Outcome; the error return is reserved for requests
// that cannot start a turn or whose result could not be recorded.
func (s *Service) Ask(ctx context.Context, sessionID, question string) (TurnResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return TurnResult{}, ErrEmptyQuestion
	}
	id, err := session.NormalizeID(sessionID)
	if err != nil {
		return TurnResult{}, err
	}
	if !s.acquire(id) {
		return TurnResult{}, ErrTurnInProgress
	}
	defer s.release(id)

	current, err := s.sessions.Get(ctx, id)
	if err != nil {
		return TurnResult{}, err
	}

	ctx = observability.ContextWithSessionID(ctx, id)
	observability.TurnStarted()
	defer observability.TurnFinished()

	startedAt := s.now()
	result := s.runTurn(ctx, question, current.Turns)
	result.SessionID = id
	result.Question = question
	result.DurationMS = s.now().Sub(startedAt).Milliseconds()

	turns := []session.Turn{{Role: session.RoleUser, Content: question, CreatedAt: startedAt}}
	if result.Recorded() {
		turns = append(turns, session.Turn{Role: session.RoleAssistant, Content: result.Reply, CreatedAt: s.now()})
	}
	// The question is recorded even when the caller has gone away.
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	if err := s.sessions.AppendTurns(recordCtx, id, turns...); err != nil {
		return TurnResult{}, fmt.Errorf("record turn: %w", err)
	}

	observability.ObserveTurn(string(result.Outcome))
	attrs := append(observability.TurnAttrs(ctx), "outcome", string(result.Outcome), "duration_ms", result.DurationMS)
	if result.Error != nil {
		s.logger.Warn("turn did not produce an answer", append(attrs, "error_kind", result.Error.Kind, "error", result.Error.Detail)...)
	} else {
		s.logger.Info("turn completed", attrs...)
	}
	return result, nil
}

func (s *Service) runTurn(ctx context.Context, question string, history []session.Turn) TurnResult {
	completion, err := complete(ctx, s.model, observability.ModelStageSnippet, llm.Request{
		System: prompt.SnippetSystemPrompt,
		Prompt: s.cfg.Composer.ComposeSnippetPrompt(question, s.cfg.Context, history),
	})
	if err != nil {
		return failed(OutcomeModelFailed, messageModelFailed, "model", "", err)
	}

	response := snippet.Classify(completion.Text)
	if response.Kind == snippet.KindReply {
		if response.Reply == "" {
			return failed(OutcomeModelFailed, messageModelFailed, "model", "", llm.ErrEmptyCompletion)
		}
		return TurnResult{Outcome: OutcomeReplied, Reply: response.Reply}
	}

	result := TurnResult{Snippet: response.Snippet}
	program, err := snippet.Parse(response.Snippet)
	if err != nil {
		return withSnippet(executionFailure(query.FromSyntaxError(err)), response.Snippet)
	}

	execution, err := s.engine.Execute(ctx, query.Request{
		Program:  program,
		Tables:   s.cfg.Tables,
		RowLimit: s.cfg.RowLimit,
		Timeout:  s.cfg.SandboxTimeout,
	})
	observability.ObserveSnippetExecution(execution.Duration)
	if errors.Is(err, query.ErrNoAnswer) {
		failure := failed(OutcomeNoAnswer, messageNoAnswer, "no_answer", "", err)
		failure.Warnings = append(execution.Warnings, fmt.Sprintf("snippet bound %s but never %s", strings.Join(execution.Bindings, ", "), snippet.AnswerBinding))
		return withSnippet(failure, response.Snippet)
	}
	if err != nil {
		return withSnippet(executionFailure(err), response.Snippet)
	}

	answer := execution.Answer
	result.Answer = &answer
	result.AnswerText = s.synth.Stringify(answer)
	result.Chart = execution.Chart
	result.Warnings = execution.Warnings

	explanation, err := s.synth.Explain(ctx, question, answer)
	if err != nil {
		result.Outcome = OutcomeExplainFailed
		result.Message = messageExplainFailed
		result.Error = &TurnError{Kind: "model", Detail: err.Error()}
		return result
	}
	result.Outcome = OutcomeAnswered
	result.Reply = explanation
	return result
}

func (s *Service) acquire(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.busy[id]; busy {
		return false
	}
	s.busy[id] = struct{}{}
	return true
}

func (s *Service) release(id string) {
	s.mu.Lock()
	delete(s.busy, id)
	s.mu.Unlock()
}

func executionFailure(err error) TurnResult {
	var execErr *query.ExecutionError
	if errors.As(err, &execErr) {
		return failed(OutcomeExecutionFailed, messageExecutionFailed, string(execErr.Kind), execErr.Binding, execErr.Err)
	}
	return failed(OutcomeExecutionFailed, messageExecutionFailed, string(query.KindRuntime), "", err)
}

func failed(outcome Outcome, message, kind, binding string, err error) TurnResult {
	return TurnResult{
		Outcome: outcome,
		Message: message,
		Error:   &TurnError{Kind: kind, Binding: binding, Detail: err.Error()},
	}
}

func withSnippet(result TurnResult, text string) TurnResult {
	result.Snippet = text
	return result
}
