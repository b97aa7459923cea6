// Package anthropic generates shop assistant replies with the Anthropic
// Messages API.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/custodia-labs/vetrina/internal/core/domain"
	"github.com/custodia-labs/vetrina/internal/core/ports/driven"
	"github.com/custodia-labs/vetrina/internal/logger"
)

var _ driven.LLMService = (*LLMService)(nil)

const (
	DefaultBaseURL    = "https://api.anthropic.com"
	DefaultModel      = "claude-sonnet-4-20250514"
	DefaultTimeout    = 120 * time.Second
	DefaultMaxTokens  = 2048
	DefaultMaxRetries = 2
	DefaultBackoff    = time.Second

	// Prices in USD per million tokens, used for the running cost estimate.
	DefaultInputPrice  = 3.00
	DefaultOutputPrice = 15.00

	apiVersion   = "2023-06-01"
	errBodyLimit = 4096

	// statusOverloaded is Anthropic's non-standard "overloaded" status.
	statusOverloaded = 529
)

// Config configures the Anthropic client.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration

	// MaxRetries bounds extra attempts after a rate limit or overload.
	// Negative disables retries.
	MaxRetries int

	// Backoff is the first retry delay; it doubles per attempt unless the
	// server sends retry-after.
	Backoff time.Duration

	InputPricePerMTok  float64
	OutputPricePerMTok float64
}

// ErrorKind classifies API failures so callers can pick a message for the shopper.
type ErrorKind string

const (
	KindRateLimited ErrorKind = "rate_limited"
	KindOverloaded  ErrorKind = "overloaded"
	KindAuth        ErrorKind = "authentication"
	KindBadRequest  ErrorKind = "invalid_request"
	KindServer      ErrorKind = "server"
)

// APIError is a non-200 answer from the Messages API.
type APIError struct {
	Status     int
	Kind       ErrorKind
	Message    string
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("anthropic: %s (status %d): %s", e.Kind, e.Status, e.Message)
}

// Temporary reports whether the same request may succeed later.
func (e *APIError) Temporary() bool {
	return e.Kind == KindRateLimited || e.Kind == KindOverloaded || e.Kind == KindServer
}

// Usage accumulates token counts over the client's lifetime.
type Usage struct {
	Calls        int
	Failed       int
	InputTokens  int
	OutputTokens int
	CostUSD      float64
}

// LLMService is a driven.LLMService backed by Anthropic.
type LLMService struct {
	client      *http.Client
	baseURL     string
	apiKey      string
	model       string
	maxRetries  int
	backoff     time.Duration
	inputPrice  float64
	outputPrice float64

	mu    sync.Mutex
	usage Usage

	sleep func(context.Context, time.Duration) error
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesRequest struct {
	Model       string    `json:"model"`
	System      string    `json:"system,omitempty"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature *float64  `json:"temperature,omitempty"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type errorEnvelope struct {
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewLLMService validates cfg and fills defaults.
func NewLLMService(cfg Config) (*LLMService, error) {
	if cfg.APIKey == "" {
		return nil, domain.NewError("anthropic client", "api_key", domain.ErrInvalidInput, errors.New("required"))
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	switch {
	case cfg.MaxRetries == 0:
		cfg.MaxRetries = DefaultMaxRetries
	case cfg.MaxRetries < 0:
		cfg.MaxRetries = 0
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = DefaultBackoff
	}
	if cfg.InputPricePerMTok <= 0 {
		cfg.InputPricePerMTok = DefaultInputPrice
	}
	if cfg.OutputPricePerMTok <= 0 {
		cfg.OutputPricePerMTok = DefaultOutputPrice
	}

	return &LLMService{
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		maxRetries:  cfg.MaxRetries,
		backoff:     cfg.Backoff,
		inputPrice:  cfg.InputPricePerMTok,
		outputPrice: cfg.OutputPricePerMTok,
		sleep:       sleepContext,
	}, nil
}

// Chat sends the grounding system prompt with the alternating transcript and
// returns the reply text. Rate limits and overloads are retried with backoff.
func (s *LLMService) Chat(
	ctx context.Context, system string, messages []driven.ChatMessage, opts driven.ChatOptions,
) (string, error) {
	if len(messages) == 0 {
		return "", domain.NewError("anthropic chat", "messages", domain.ErrInvalidInput, errors.New("empty transcript"))
	}

	payload := messagesRequest{
		Model:     s.model,
		System:    system,
		Messages:  make([]message, len(messages)),
		MaxTokens: opts.MaxTokens,
	}
	for i, m := range messages {
		payload.Messages[i] = message{Role: m.Role, Content: m.Content}
	}
	if payload.MaxTokens <= 0 {
		payload.MaxTokens = DefaultMaxTokens
	}
	if opts.Temperature > 0 {
		temp := opts.Temperature
		payload.Temperature = &temp
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("anthropic: encode request: %w", err)
	}

	started := time.Now()
	var resp *messagesResponse
	for attempt := 0; ; attempt++ {
		resp, err = s.send(ctx, body)
		if err == nil {
			break
		}
		var apiErr *APIError
		if !errors.As(err, &apiErr) || !apiErr.Temporary() || attempt >= s.maxRetries {
			s.record(nil)
			return "", err
		}
		wait := apiErr.RetryAfter
		if wait <= 0 {
			wait = s.backoff << attempt
		}
		logger.Warn("Anthropic %s, retrying in %s (attempt %d/%d)", apiErr.Kind, wait, attempt+1, s.maxRetries)
		if err := s.sleep(ctx, wait); err != nil {
			s.record(nil)
			return "", err
		}
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		s.record(nil)
		return "", fmt.Errorf("anthropic: reply has no text (stop reason %q)", resp.StopReason)
	}

	cost := s.record(resp)
	logger.Debug("Anthropic reply: %d in / %d out tokens, $%.4f, %s",
		resp.Usage.InputTokens, resp.Usage.OutputTokens, cost, time.Since(started).Round(time.Millisecond))
	if resp.StopReason == "max_tokens" {
		logger.Warn("Anthropic reply truncated at %d tokens", payload.MaxTokens)
	}
	return text.String(), nil
}

func (s *LLMService) send(ctx context.Context, body []byte) (*messagesResponse, error) {
	req, err := s.newRequest(ctx, http.MethodPost, "/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("anthropic: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, readAPIError(resp)
	}

	var decoded messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("anthropic: decode response: %w", err)
	}
	return &decoded, nil
}

// record adds a call to the usage tally and returns its cost. A nil
// response counts as a failed call.
func (s *LLMService) record(resp *messagesResponse) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.usage.Calls++
	if resp == nil {
		s.usage.Failed++
		return 0
	}
	cost := (float64(resp.Usage.InputTokens)*s.inputPrice + float64(resp.Usage.OutputTokens)*s.outputPrice) / 1e6
	s.usage.InputTokens += resp.Usage.InputTokens
	s.usage.OutputTokens += resp.Usage.OutputTokens
	s.usage.CostUSD += cost
	return cost
}

// Usage returns a snapshot of the token and cost tally.
func (s *LLMService) Usage() Usage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usage
}

// ModelName returns the configured model.
func (s *LLMService) ModelName() string {
	return s.model
}

// Ping looks up the configured model, checking the key and model name
// without generating tokens.
func (s *LLMService) Ping(ctx context.Context) error {
	req, err := s.newRequest(ctx, http.MethodGet, "/v1/models/"+url.PathEscape(s.model), http.NoBody)
	if err != nil {
		return err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("anthropic: ping: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return readAPIError(resp)
	}
	return nil
}

// Close drops idle connections.
func (s *LLMService) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func (s *LLMService) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("anthropic: build request: %w", err)
	}
	req.Header.Set("x-api-key", s.apiKey)
	req.Header.Set("anthropic-version", apiVersion)
	return req, nil
}

func readAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, errBodyLimit))
	apiErr := &APIError{
		Status:     resp.StatusCode,
		Kind:       kindOf(resp.StatusCode),
		Message:    strings.TrimSpace(string(raw)),
		RetryAfter: retryAfter(resp.Header.Get("retry-after")),
	}

	var env errorEnvelope
	if json.Unmarshal(raw, &env) == nil && env.Error != nil {
		apiErr.Message = env.Error.Message
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

func kindOf(status int) ErrorKind {
	switch {
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status == statusOverloaded:
		return KindOverloaded
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuth
	case status >= http.StatusInternalServerError:
		return KindServer
	default:
		return KindBadRequest
	}
}

// retryAfter parses the header's delay in seconds; other forms are ignored.
func retryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
