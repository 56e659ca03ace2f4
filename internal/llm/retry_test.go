package llm

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duckmesh/duckchat/internal/config"
)

type scriptedCompleter struct {
	mu     sync.Mutex
	calls  int
	errors []error
}

func (s *scriptedCompleter) Complete(ctx context.Context, req Request) (Completion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(s.errors) > 0 {
		err := s.errors[0]
		s.errors = s.errors[1:]
		if err != nil {
			return Completion{}, err
		}
	}
	return Completion{Text: "ok:" + req.Prompt, Provider: "fake"}, nil
}

type blockingCompleter struct {
	mu    sync.Mutex
	calls int
}

func (b *blockingCompleter) Complete(ctx context.Context, _ Request) (Completion, error) {
	b.mu.Lock()
	b.calls++
	b.mu.Unlock()
	<-ctx.Done()
	return Completion{}, ctx.Err()
}

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{MaxAttempts: attempts, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
}

func TestRetryingCompleterRetriesTransientErrors(t *testing.T) {
	next := &scriptedCompleter{errors: []error{
		&StatusError{Provider: "fake", StatusCode: http.StatusServiceUnavailable},
		errors.New("connection reset by peer"),
	}}
	completer := NewRetryingCompleter(next, fastRetry(3), nil)

	got, err := completer.Complete(context.Background(), Request{Prompt: "q"})
	require.NoError(t, err)
	assert.Equal(t, "ok:q", got.Text)
	assert.Equal(t, 3, next.calls)
}

func TestRetryingCompleterStopsOnPermanentErrors(t *testing.T) {
	next := &scriptedCompleter{errors: []error{&StatusError{Provider: "fake", StatusCode: http.StatusBadRequest}}}
	completer := NewRetryingCompleter(next, fastRetry(5), nil)

	_, err := completer.Complete(context.Background(), Request{Prompt: "q"})
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusBadRequest, statusErr.StatusCode)
	assert.Equal(t, 1, next.calls)
}

func TestRetryingCompleterGivesUpAfterMaxAttempts(t *testing.T) {
	failure := &StatusError{Provider: "fake", StatusCode: http.StatusTooManyRequests}
	next := &scriptedCompleter{errors: []error{failure, failure, failure, failure}}
	completer := NewRetryingCompleter(next, fastRetry(2), nil)

	_, err := completer.Complete(context.Background(), Request{Prompt: "q"})
	require.Error(t, err)
	assert.Equal(t, 2, next.calls)
}

func TestRetryingCompleterAppliesAttemptTimeout(t *testing.T) {
	next := &blockingCompleter{}
	cfg := fastRetry(2)
	cfg.AttemptTimeout = 10 * time.Millisecond
	completer := NewRetryingCompleter(next, cfg, nil)

	_, err := completer.Complete(context.Background(), Request{Prompt: "q"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 2, next.calls)
}

func TestRetryingCompleterHonorsCallerCancellation(t *testing.T) {
	next := &blockingCompleter{}
	completer := NewRetryingCompleter(next, fastRetry(5), nil)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := completer.Complete(ctx, Request{Prompt: "q"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, next.calls)
}

func TestNewSelectsProvider(t *testing.T) {
	_, err := New(context.Background(), config.AIConfig{Provider: ProviderOpenAI}, nil)
	require.Error(t, err, "missing api key must fail")

	_, err = New(context.Background(), config.AIConfig{Provider: "llama", APIKey: "k"}, nil)
	require.Error(t, err)

	completer, err := New(context.Background(), config.AIConfig{
		Provider:    ProviderOpenAI,
		BaseURL:     "http://localhost:1",
		APIKey:      "k",
		MaxAttempts: 2,
	}, nil)
	require.NoError(t, err)
	_, ok := completer.(*RetryingCompleter)
	assert.True(t, ok)
}

func TestNewPassesBaseURLToGemini(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"<reply>Hi</reply>"}]}}]}`))
	}))
	defer server.Close()

	completer, err := New(context.Background(), config.AIConfig{
		Provider:    ProviderGemini,
		BaseURL:     server.URL,
		APIKey:      "k",
		MaxAttempts: 1,
	}, nil)
	require.NoError(t, err)

	got, err := completer.Complete(context.Background(), Request{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "<reply>Hi</reply>", got.Text)
	assert.Equal(t, 1, hits)
}
