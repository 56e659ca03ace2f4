// Package llm is the boundary to the hosted language model. The model is
// treated as an opaque text completion service.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

var ErrEmptyCompletion = errors.New("model returned an empty completion")

type Request struct {
	System string
	Prompt string
}

type Completion struct {
	Text     string
	Provider string
	Model    string
}

type Completer interface {
	Complete(ctx context.Context, req Request) (Completion, error)
}

// StatusError is a non-success HTTP response from a provider.
type StatusError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s completion failed status=%d: %s", e.Provider, e.StatusCode, e.Message)
}

// Retryable reports whether repeating the same request could succeed.
func (e *StatusError) Retryable() bool {
	switch {
	case e.StatusCode == http.StatusRequestTimeout, e.StatusCode == http.StatusTooManyRequests:
		return true
	case e.StatusCode >= 500:
		return true
	default:
		return false
	}
}
