package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAICompleterSendsSystemAndPrompt(t *testing.T) {
	var payload struct {
		Model    string              `json:"model"`
		Messages []map[string]string `json:"messages"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &payload))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"<snippet>ANSWER = SELECT 1;</snippet>"}}]}`))
	}))
	defer server.Close()

	completer, err := NewOpenAICompleter(OpenAIConfig{BaseURL: server.URL + "/", APIKey: "secret", Model: "gpt-test"})
	require.NoError(t, err)

	got, err := completer.Complete(context.Background(), Request{System: "be terse", Prompt: "count rows"})
	require.NoError(t, err)
	assert.Equal(t, "<snippet>ANSWER = SELECT 1;</snippet>", got.Text)
	assert.Equal(t, ProviderOpenAI, got.Provider)
	assert.Equal(t, "gpt-test", got.Model)

	assert.Equal(t, "gpt-test", payload.Model)
	require.Len(t, payload.Messages, 2)
	assert.Equal(t, "system", payload.Messages[0]["role"])
	assert.Equal(t, "be terse", payload.Messages[0]["content"])
	assert.Equal(t, "count rows", payload.Messages[1]["content"])
}

func TestOpenAICompleterMapsStatusErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"bad key"}`))
	}))
	defer server.Close()

	completer, err := NewOpenAICompleter(OpenAIConfig{BaseURL: server.URL, APIKey: "secret"})
	require.NoError(t, err)

	_, err = completer.Complete(context.Background(), Request{Prompt: "hi"})
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
	assert.False(t, statusErr.Retryable())
}

func TestOpenAICompleterRejectsEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	completer, err := NewOpenAICompleter(OpenAIConfig{BaseURL: server.URL, APIKey: "secret"})
	require.NoError(t, err)

	_, err = completer.Complete(context.Background(), Request{Prompt: "hi"})
	assert.ErrorIs(t, err, ErrEmptyCompletion)
}

func TestNewOpenAICompleterValidatesConfig(t *testing.T) {
	completer, err := NewOpenAICompleter(OpenAIConfig{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, defaultOpenAIBaseURL, completer.baseURL)
	_, err = NewOpenAICompleter(OpenAIConfig{BaseURL: "http://localhost"})
	assert.Error(t, err)
}

func TestStatusErrorRetryable(t *testing.T) {
	cases := map[int]bool{
		http.StatusBadRequest:          false,
		http.StatusForbidden:           false,
		http.StatusRequestTimeout:      true,
		http.StatusTooManyRequests:     true,
		http.StatusInternalServerError: true,
		http.StatusServiceUnavailable:  true,
	}
	for code, want := range cases {
		err := &StatusError{Provider: ProviderOpenAI, StatusCode: code}
		assert.Equal(t, want, err.Retryable(), "status %d", code)
	}
}
