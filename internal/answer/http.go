package answer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultQAModel = "distilbert-base-uncased-distilled-squad"
	DefaultQAURL   = "https://api-inference.huggingface.co/models/" + DefaultQAModel
)

// HTTPClient calls a question-answering inference endpoint that selects a
// span of the context.
type HTTPClient struct {
	url        string
	apiKey     string
	model      string
	httpClient *http.Client
}

func NewHTTPClient(url, apiKey, model string, timeout time.Duration) *HTTPClient {
	if url == "" {
		url = DefaultQAURL
	}
	if model == "" {
		model = DefaultQAModel
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &HTTPClient{
		url:    url,
		apiKey: apiKey,
		model:  model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *HTTPClient) Model() string { return c.model }

type qaInputs struct {
	Question string `json:"question"`
	Context  string `json:"context"`
}

type qaRequest struct {
	Inputs qaInputs `json:"inputs"`
}

type qaResponse struct {
	Answer string  `json:"answer"`
	Score  float64 `json:"score"`
	Start  int     `json:"start"`
	End    int     `json:"end"`
	Error  string  `json:"error,omitempty"`
}

// Infer sends the question and context and returns the selected span.
func (c *HTTPClient) Infer(ctx context.Context, question, contextText string) (Result, error) {
	body, err := json.Marshal(qaRequest{Inputs: qaInputs{Question: question, Context: contextText}})
	if err != nil {
		return Result{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("qa api: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Result{}, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return Result{}, &RetryableError{
			StatusCode: resp.StatusCode,
			Message:    string(respBody),
		}
	}
	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("qa api status %d: %s", resp.StatusCode, truncate(string(respBody), 200))
	}

	qa, err := decodeQAResponse(respBody)
	if err != nil {
		return Result{}, err
	}
	if qa.Error != "" {
		return Result{}, fmt.Errorf("qa error: %s", qa.Error)
	}
	return Result{Text: strings.TrimSpace(qa.Answer), Score: qa.Score}, nil
}

// decodeQAResponse accepts a single answer object or a list of candidates,
// best first.
func decodeQAResponse(body []byte) (qaResponse, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []qaResponse
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return qaResponse{}, fmt.Errorf("decode response: %w", err)
		}
		if len(list) == 0 {
			return qaResponse{}, nil
		}
		return list[0], nil
	}
	var one qaResponse
	if err := json.Unmarshal(trimmed, &one); err != nil {
		return qaResponse{}, fmt.Errorf("decode response: %w (raw: %s)", err, truncate(string(trimmed), 200))
	}
	return one, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// RetryableError indicates a transient failure that can be retried.
type RetryableError struct {
	StatusCode int
	Message    string
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable error (status %d): %s", e.StatusCode, truncate(e.Message, 200))
}

// Close releases resources.
func (c *HTTPClient) Close() {
	c.httpClient.CloseIdleConnections()
}
