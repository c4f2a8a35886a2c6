// Package gemini implements the outbound embedding provider port against the
// Gemini embedding HTTP API.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"docingest/internal/application/common/slogger"
	"docingest/internal/port/outbound"
)

const (
	// DefaultModel is the default Gemini embedding model.
	DefaultModel = "gemini-embedding-001"

	// DefaultDimensions is the output dimensionality of DefaultModel.
	DefaultDimensions = 768
)

// ClientConfig holds the configuration for the Gemini API client.
type ClientConfig struct {
	APIKey     string        `json:"api_key"`
	BaseURL    string        `json:"base_url"`
	Model      string        `json:"model"`
	Timeout    time.Duration `json:"timeout"`
	MaxRetries int           `json:"max_retries"`
	Dimensions int           `json:"dimensions"`
	UserAgent  string        `json:"user_agent"`
}

// Validate validates the client configuration.
func (c *ClientConfig) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return errors.New("API key cannot be empty")
	}
	if c.BaseURL != "" {
		if _, err := url.Parse(c.BaseURL); err != nil || !strings.HasPrefix(c.BaseURL, "http") {
			return errors.New("invalid base URL")
		}
	}
	if c.Timeout < 0 {
		return errors.New("timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return errors.New("max retries cannot be negative")
	}
	if c.Dimensions < 0 {
		return errors.New("dimensions cannot be negative")
	}
	return nil
}

// applyConfigDefaults creates a new config with defaults applied.
func applyConfigDefaults(config *ClientConfig) *ClientConfig {
	finalConfig := *config
	finalConfig.APIKey = strings.TrimSpace(config.APIKey)

	if finalConfig.BaseURL == "" {
		finalConfig.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if finalConfig.Model == "" {
		finalConfig.Model = DefaultModel
	}
	if finalConfig.Timeout == 0 {
		finalConfig.Timeout = 30 * time.Second
	}
	if finalConfig.MaxRetries == 0 {
		finalConfig.MaxRetries = 3
	}
	if finalConfig.Dimensions == 0 {
		finalConfig.Dimensions = DefaultDimensions
	}
	if finalConfig.UserAgent == "" {
		finalConfig.UserAgent = "docingest-gemini-client/1.0.0"
	}
	return &finalConfig
}

// Client implements outbound.EmbeddingProvider against the Gemini API.
type Client struct {
	config     *ClientConfig
	httpClient *http.Client
}

// NewClient creates a new Gemini API client with the provided configuration.
func NewClient(config *ClientConfig) (*Client, error) {
	if config == nil {
		return nil, errors.New("config cannot be nil")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	finalConfig := applyConfigDefaults(config)

	return &Client{
		config:     finalConfig,
		httpClient: newHTTPClient(finalConfig.Timeout),
	}, nil
}

// NewClientFromEnv creates a client, reading the API key from GEMINI_API_KEY
// or GOOGLE_API_KEY when the config does not provide one.
func NewClientFromEnv(config *ClientConfig) (*Client, error) {
	if config == nil {
		config = &ClientConfig{}
	}
	envConfig := *config
	if envConfig.APIKey == "" {
		if key := strings.TrimSpace(os.Getenv("GEMINI_API_KEY")); key != "" {
			envConfig.APIKey = key
		} else if key := strings.TrimSpace(os.Getenv("GOOGLE_API_KEY")); key != "" {
			envConfig.APIKey = key
		}
	}
	if strings.TrimSpace(envConfig.APIKey) == "" {
		return nil, errors.New("API key not found in config or environment variables")
	}
	return NewClient(&envConfig)
}

// newHTTPClient creates an HTTP client with tuned transport configuration.
func newHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		MaxConnsPerHost:       50,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
		CheckRedirect: func(_ *http.Request, _ []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// ModelInfo returns the configured model identifier and dimensionality.
func (c *Client) ModelInfo() (string, int) {
	return c.config.Model, c.config.Dimensions
}

// GenerateEmbeddings generates one vector per input text via the
// batchEmbedContents endpoint, preserving input order. Retryable provider
// errors are retried with exponential backoff up to MaxRetries.
func (c *Client) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return [][]float64{}, nil
	}
	for i, text := range texts {
		if text == "" {
			return nil, &outbound.EmbeddingError{
				Code:    "empty_text",
				Type:    "validation",
				Message: fmt.Sprintf("text at index %d is empty", i),
			}
		}
	}

	body, err := c.serializeBatchRequest(texts)
	if err != nil {
		return nil, err
	}

	var lastErr error
	backoff := time.Second
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			slogger.Warn(ctx, "Retrying embedding request", slogger.Fields{
				"attempt": attempt,
				"backoff": backoff.String(),
				"error":   lastErr.Error(),
			})
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		vectors, err := c.doBatchRequest(ctx, body)
		if err == nil {
			if len(vectors) != len(texts) {
				return nil, &outbound.EmbeddingError{
					Code:    "count_mismatch",
					Type:    "server",
					Message: fmt.Sprintf("requested %d embeddings, received %d", len(texts), len(vectors)),
				}
			}
			return vectors, nil
		}

		lastErr = err
		var embErr *outbound.EmbeddingError
		if !errors.As(err, &embErr) || !embErr.Retryable {
			return nil, err
		}
	}
	return nil, lastErr
}

type embedPart struct {
	Text string `json:"text"`
}

type embedContent struct {
	Parts []embedPart `json:"parts"`
}

type embedRequest struct {
	Model                string       `json:"model"`
	Content              embedContent `json:"content"`
	TaskType             string       `json:"taskType"`
	OutputDimensionality int          `json:"outputDimensionality,omitempty"`
}

type batchEmbedRequest struct {
	Requests []embedRequest `json:"requests"`
}

type embedValues struct {
	Values []float64 `json:"values"`
}

type batchEmbedResponse struct {
	Embeddings []embedValues `json:"embeddings"`
}

func (c *Client) serializeBatchRequest(texts []string) ([]byte, error) {
	request := batchEmbedRequest{
		Requests: make([]embedRequest, len(texts)),
	}
	for i, text := range texts {
		request.Requests[i] = embedRequest{
			Model:                "models/" + c.config.Model,
			Content:              embedContent{Parts: []embedPart{{Text: text}}},
			TaskType:             "RETRIEVAL_DOCUMENT",
			OutputDimensionality: c.config.Dimensions,
		}
	}

	data, err := json.Marshal(request)
	if err != nil {
		return nil, &outbound.EmbeddingError{
			Code:    "serialization_error",
			Type:    "validation",
			Message: "failed to serialize batch request",
			Cause:   err,
		}
	}
	return data, nil
}

func (c *Client) doBatchRequest(ctx context.Context, body []byte) ([][]float64, error) {
	endpoint := fmt.Sprintf("%s/models/%s:batchEmbedContents",
		strings.TrimSuffix(c.config.BaseURL, "/"), c.config.Model)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("X-Goog-Api-Key", c.config.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.config.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &outbound.EmbeddingError{
			Code:      "network_error",
			Type:      "server",
			Message:   "embedding request failed",
			Retryable: true,
			Cause:     err,
		}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &outbound.EmbeddingError{
			Code:      "read_error",
			Type:      "server",
			Message:   "failed to read embedding response",
			Retryable: true,
			Cause:     err,
		}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, classifyHTTPError(resp.StatusCode, data)
	}

	var response batchEmbedResponse
	if err := json.Unmarshal(data, &response); err != nil {
		return nil, &outbound.EmbeddingError{
			Code:    "parse_error",
			Type:    "server",
			Message: "failed to parse embedding response JSON",
			Cause:   err,
		}
	}

	vectors := make([][]float64, len(response.Embeddings))
	for i, embedding := range response.Embeddings {
		if len(embedding.Values) == 0 {
			return nil, &outbound.EmbeddingError{
				Code:    "missing_embedding",
				Type:    "server",
				Message: fmt.Sprintf("response embedding %d is empty", i),
			}
		}
		vectors[i] = embedding.Values
	}
	return vectors, nil
}

// classifyHTTPError maps a non-200 response to a structured embedding error.
func classifyHTTPError(statusCode int, body []byte) *outbound.EmbeddingError {
	preview := string(body)
	if len(preview) > 200 {
		preview = preview[:200]
	}

	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return &outbound.EmbeddingError{
			Code:    "invalid_api_key",
			Type:    "auth",
			Message: "authentication failed: " + preview,
		}
	case statusCode == http.StatusTooManyRequests:
		return &outbound.EmbeddingError{
			Code:      "rate_limit_exceeded",
			Type:      "quota",
			Message:   "rate limit exceeded: " + preview,
			Retryable: true,
		}
	case statusCode >= 500:
		return &outbound.EmbeddingError{
			Code:      "server_error",
			Type:      "server",
			Message:   fmt.Sprintf("provider returned %d: %s", statusCode, preview),
			Retryable: true,
		}
	default:
		return &outbound.EmbeddingError{
			Code:    "bad_request",
			Type:    "validation",
			Message: fmt.Sprintf("provider returned %d: %s", statusCode, preview),
		}
	}
}
