// Package duckchatctl is the command line client for the duckchat API.
package duckchatctl

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type Options struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
	Stdin      io.Reader
	Stdout     io.Writer
	Stderr     io.Writer
}

type client struct {
	http    *http.Client
	baseURL string
	apiKey  string
}

// turnResponse is the subset of a turn result the CLI prints.
type turnResponse struct {
	SessionID  string   `json:"session_id"`
	Outcome    string   `json:"outcome"`
	Reply      string   `json:"reply"`
	Message    string   `json:"message"`
	Snippet    string   `json:"snippet"`
	AnswerText string   `json:"answer_text"`
	Warnings   []string `json:"warnings"`
	Error      *struct {
		Kind    string `json:"kind"`
		Binding string `json:"binding"`
		Detail  string `json:"detail"`
	} `json:"error"`
}

func Run(ctx context.Context, args []string, defaults Options) int {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	fs := flag.NewFlagSet("duckchatctl", flag.ContinueOnError)
	fs.SetOutput(stderr)

	baseURL := fs.String("base-url", firstNonEmpty(defaults.BaseURL, "http://localhost:8080"), "duckchat API base URL")
	apiKey := fs.String("api-key", defaults.APIKey, "API key for authenticated requests")
	timeout := fs.Duration("timeout", durationOr(defaults.Timeout, 2*time.Minute), "HTTP timeout (e.g. 90s)")
	rawJSON := fs.Bool("json", false, "print raw JSON responses for ask and chat")
	showSnippet := fs.Bool("show-snippet", false, "print the generated snippet for ask and chat")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		writeUsage(stderr)
		return 2
	}

	c := client{http: defaults.HTTPClient, baseURL: strings.TrimRight(*baseURL, "/"), apiKey: strings.TrimSpace(*apiKey)}
	if c.http == nil {
		c.http = &http.Client{Timeout: *timeout}
	}
	printer := turnPrinter{out: stdout, raw: *rawJSON, showSnippet: *showSnippet}

	command := strings.TrimSpace(fs.Arg(0))
	rest := fs.Args()[1:]
	switch command {
	case "health":
		return c.printJSON(ctx, stdout, stderr, http.MethodGet, "/v1/health", nil)
	case "ready":
		return c.printJSON(ctx, stdout, stderr, http.MethodGet, "/v1/ready", nil)
	case "dataset":
		return c.printJSON(ctx, stdout, stderr, http.MethodGet, "/v1/dataset", nil)
	case "new-session":
		return c.printJSON(ctx, stdout, stderr, http.MethodPost, "/v1/sessions", nil)
	case "history":
		if len(rest) != 1 {
			_, _ = fmt.Fprintln(stderr, "usage: duckchatctl history <session-id>")
			return 2
		}
		return c.printJSON(ctx, stdout, stderr, http.MethodGet, sessionPath(rest[0]), nil)
	case "ask":
		if len(rest) < 2 {
			_, _ = fmt.Fprintln(stderr, "usage: duckchatctl ask <session-id> <question>")
			return 2
		}
		if err := c.ask(ctx, rest[0], strings.Join(rest[1:], " "), printer); err != nil {
			_, _ = fmt.Fprintln(stderr, err)
			return 1
		}
		return 0
	case "chat":
		if len(rest) > 1 {
			_, _ = fmt.Fprintln(stderr, "usage: duckchatctl chat [session-id]")
			return 2
		}
		sessionID := ""
		if len(rest) == 1 {
			sessionID = rest[0]
		}
		return c.chat(ctx, sessionID, defaults.Stdin, printer, stderr)
	default:
		_, _ = fmt.Fprintf(stderr, "unknown command %q\n\n", command)
		writeUsage(stderr)
		return 2
	}
}

func (c client) printJSON(ctx context.Context, stdout, stderr io.Writer, method, path string, body any) int {
	code, responseBody, err := c.do(ctx, method, path, body)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "request failed: %v\n", err)
		return 1
	}
	if code >= 400 {
		_, _ = fmt.Fprintf(stderr, "http %d: %s\n", code, strings.TrimSpace(string(responseBody)))
		return 1
	}
	if pretty, ok := prettyJSON(responseBody); ok {
		_, _ = fmt.Fprintln(stdout, pretty)
		return 0
	}
	if len(responseBody) > 0 {
		_, _ = fmt.Fprintln(stdout, string(responseBody))
	}
	return 0
}

func (c client) ask(ctx context.Context, sessionID, question string, printer turnPrinter) error {
	code, body, err := c.do(ctx, http.MethodPost, sessionPath(sessionID)+"/turns", map[string]string{"question": question})
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	if code >= 400 {
		return fmt.Errorf("http %d: %s", code, strings.TrimSpace(string(body)))
	}
	return printer.print(body)
}

func (c client) createSession(ctx context.Context) (string, error) {
	code, body, err := c.do(ctx, http.MethodPost, "/v1/sessions", nil)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	if code >= 400 {
		return "", fmt.Errorf("http %d: %s", code, strings.TrimSpace(string(body)))
	}
	var created struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(body, &created); err != nil || created.SessionID == "" {
		return "", fmt.Errorf("unexpected session response: %s", strings.TrimSpace(string(body)))
	}
	return created.SessionID, nil
}

// chat reads one question per line until EOF or "exit". A failed turn is
// reported and the loop continues.
func (c client) chat(ctx context.Context, sessionID string, stdin io.Reader, printer turnPrinter, stderr io.Writer) int {
	if stdin == nil {
		stdin = strings.NewReader("")
	}
	if strings.TrimSpace(sessionID) == "" {
		created, err := c.createSession(ctx)
		if err != nil {
			_, _ = fmt.Fprintln(stderr, err)
			return 1
		}
		sessionID = created
	}
	_, _ = fmt.Fprintf(printer.out, "session %s (type \"exit\" to quit)\n", sessionID)

	scanner := bufio.NewScanner(stdin)
	scanner.Buffer(make([]byte, 0, 4096), 64<<10)
	for {
		_, _ = fmt.Fprint(printer.out, "> ")
		if !scanner.Scan() {
			break
		}
		question := strings.TrimSpace(scanner.Text())
		switch question {
		case "":
			continue
		case "exit", "quit":
			return 0
		}
		if err := c.ask(ctx, sessionID, question, printer); err != nil {
			_, _ = fmt.Fprintln(stderr, err)
		}
		if ctx.Err() != nil {
			return 1
		}
	}
	_, _ = fmt.Fprintln(printer.out)
	if err := scanner.Err(); err != nil {
		_, _ = fmt.Fprintf(stderr, "read input: %v\n", err)
		return 1
	}
	return 0
}

func (c client) do(ctx context.Context, method, path string, payload any) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
		body = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, responseBody, nil
}

type turnPrinter struct {
	out         io.Writer
	raw         bool
	showSnippet bool
}

func (p turnPrinter) print(body []byte) error {
	if p.raw {
		if pretty, ok := prettyJSON(body); ok {
			_, _ = fmt.Fprintln(p.out, pretty)
			return nil
		}
	}
	var turn turnResponse
	if err := json.Unmarshal(body, &turn); err != nil {
		return fmt.Errorf("decode turn response: %w", err)
	}
	if p.showSnippet && turn.Snippet != "" {
		_, _ = fmt.Fprintf(p.out, "--- snippet ---\n%s\n---------------\n", turn.Snippet)
	}
	switch turn.Outcome {
	case "answered", "replied":
		_, _ = fmt.Fprintln(p.out, strings.TrimSpace(turn.Reply))
	default:
		_, _ = fmt.Fprintln(p.out, turn.Message)
		if turn.AnswerText != "" {
			_, _ = fmt.Fprintln(p.out, turn.AnswerText)
		}
		if turn.Error != nil && turn.Error.Detail != "" {
			_, _ = fmt.Fprintf(p.out, "(%s: %s)\n", turn.Error.Kind, turn.Error.Detail)
		}
	}
	for _, warning := range turn.Warnings {
		_, _ = fmt.Fprintf(p.out, "warning: %s\n", warning)
	}
	return nil
}

func sessionPath(id string) string {
	return "/v1/sessions/" + url.PathEscape(strings.TrimSpace(id))
}

func prettyJSON(raw []byte) (string, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", false
	}
	var anyValue any
	if err := json.Unmarshal(raw, &anyValue); err != nil {
		return "", false
	}
	formatted, err := json.MarshalIndent(anyValue, "", "  ")
	if err != nil {
		return "", false
	}
	return string(formatted), true
}

func writeUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "usage: duckchatctl [flags] <command>")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "commands:")
	_, _ = fmt.Fprintln(w, "  health                      GET /v1/health")
	_, _ = fmt.Fprintln(w, "  ready                       GET /v1/ready")
	_, _ = fmt.Fprintln(w, "  dataset                     GET /v1/dataset")
	_, _ = fmt.Fprintln(w, "  new-session                 POST /v1/sessions")
	_, _ = fmt.Fprintln(w, "  history <session>           GET /v1/sessions/{session}")
	_, _ = fmt.Fprintln(w, "  ask <session> <question>    POST /v1/sessions/{session}/turns")
	_, _ = fmt.Fprintln(w, "  chat [session]              interactive loop, one question per line")
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
