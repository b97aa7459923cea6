// Package openai embeds product and query text through an OpenAI compatible
// /embeddings endpoint.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/custodia-labs/vetrina/internal/core/domain"
	"github.com/custodia-labs/vetrina/internal/core/ports/driven"
)

var _ driven.EmbeddingService = (*EmbeddingService)(nil)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "text-embedding-3-small"
	DefaultTimeout = 60 * time.Second

	// MaxInputsPerRequest is the API limit on inputs in one call.
	MaxInputsPerRequest = 2048

	fallbackDimensions = 1536
	errBodyLimit       = 2048
)

// nativeDimensions lists output sizes of known models. Only the v3 models
// accept a reduced "dimensions" parameter.
var nativeDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// Config configures the OpenAI embedder.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration

	// Dimensions requests a shortened vector from v3 models. For other
	// models it must match the native size or be zero.
	Dimensions int

	// ChunkSize caps inputs per request. Zero or anything above
	// MaxInputsPerRequest uses the limit.
	ChunkSize int
}

// APIError is a non-200 answer from the API.
type APIError struct {
	Status  int
	Type    string
	Message string
}

func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("openai: status %d (%s): %s", e.Status, e.Type, e.Message)
	}
	return fmt.Sprintf("openai: status %d: %s", e.Status, e.Message)
}

// Temporary reports whether retrying later may succeed.
func (e *APIError) Temporary() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= http.StatusInternalServerError
}

// EmbeddingService calls the /embeddings endpoint.
type EmbeddingService struct {
	client        *http.Client
	baseURL       string
	apiKey        string
	model         string
	dimensions    int
	sendDimension bool
	chunkSize     int
}

type embeddingRequest struct {
	Model          string   `json:"model"`
	Input          []string `json:"input"`
	Dimensions     int      `json:"dimensions,omitempty"`
	EncodingFormat string   `json:"encoding_format"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

type errorEnvelope struct {
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// NewEmbeddingService validates cfg and returns an embedder.
func NewEmbeddingService(cfg Config) (*EmbeddingService, error) {
	if cfg.APIKey == "" {
		return nil, domain.NewError("openai embedder", "api_key", domain.ErrInvalidInput, errors.New("required"))
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
	if cfg.ChunkSize <= 0 || cfg.ChunkSize > MaxInputsPerRequest {
		cfg.ChunkSize = MaxInputsPerRequest
	}

	native, known := nativeDimensions[cfg.Model]
	shortenable := strings.HasPrefix(cfg.Model, "text-embedding-3-")
	dims := cfg.Dimensions
	switch {
	case dims <= 0 && known:
		dims = native
	case dims <= 0:
		dims = fallbackDimensions
	case known && !shortenable && dims != native:
		return nil, domain.NewError("openai embedder", "dimensions", domain.ErrDimensionMismatch,
			fmt.Errorf("model %s always returns %d values, got %d", cfg.Model, native, dims))
	}

	return &EmbeddingService{
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:        cfg.APIKey,
		model:         cfg.Model,
		dimensions:    dims,
		sendDimension: shortenable,
		chunkSize:     cfg.ChunkSize,
	}, nil
}

// Embed returns the vector for one text.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds texts in input order. Blank texts are rejected up front
// because the API refuses them and fails the whole request.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			return nil, domain.NewError("openai embed", fmt.Sprintf("text %d", i), domain.ErrInvalidInput,
				errors.New("blank text"))
		}
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += s.chunkSize {
		end := min(start+s.chunkSize, len(texts))
		vectors, err := s.embedChunk(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vectors...)
	}
	return out, nil
}

func (s *EmbeddingService) embedChunk(ctx context.Context, texts []string) ([][]float32, error) {
	payload := embeddingRequest{Model: s.model, Input: texts, EncodingFormat: "float"}
	if s.sendDimension {
		payload.Dimensions = s.dimensions
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("openai: encode request: %w", err)
	}

	req, err := s.newRequest(ctx, http.MethodPost, "/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai: embed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, readAPIError(resp)
	}

	var decoded embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("openai: decode response: %w", err)
	}

	// Items carry their input index and may arrive out of order.
	vectors := make([][]float32, len(texts))
	for _, item := range decoded.Data {
		if item.Index < 0 || item.Index >= len(texts) {
			return nil, fmt.Errorf("openai: response index %d outside batch of %d", item.Index, len(texts))
		}
		if len(item.Embedding) != s.dimensions {
			return nil, fmt.Errorf("openai: input %d: %w: got %d values, want %d",
				item.Index, domain.ErrDimensionMismatch, len(item.Embedding), s.dimensions)
		}
		vectors[item.Index] = item.Embedding
	}
	for i, v := range vectors {
		if v == nil {
			return nil, fmt.Errorf("openai: no vector returned for input %d", i)
		}
	}
	return vectors, nil
}

// Dimensions returns the vector size this embedder produces.
func (s *EmbeddingService) Dimensions() int {
	return s.dimensions
}

// ModelName returns the model recorded in catalog metadata.
func (s *EmbeddingService) ModelName() string {
	return s.model
}

// Ping fetches the configured model, which checks the key and the model
// name without spending tokens.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	req, err := s.newRequest(ctx, http.MethodGet, "/models/"+url.PathEscape(s.model), http.NoBody)
	if err != nil {
		return err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("openai: ping: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, errBodyLimit))

	if resp.StatusCode != http.StatusOK {
		return &APIError{Status: resp.StatusCode, Message: "model " + s.model + " not available"}
	}
	return nil
}

// Close drops idle connections.
func (s *EmbeddingService) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func (s *EmbeddingService) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("openai: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	return req, nil
}

func readAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, errBodyLimit))
	apiErr := &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(raw))}

	var env errorEnvelope
	if json.Unmarshal(raw, &env) == nil && env.Error != nil {
		apiErr.Message = env.Error.Message
		apiErr.Type = env.Error.Type
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
