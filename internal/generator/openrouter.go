package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ignite/campaign-autopilot/internal/pkg/httpretry"
)

// OpenRouterClient generates content through OpenRouter's OpenAI-compatible
// chat completions endpoint. Any model id OpenRouter routes is accepted.
type OpenRouterClient struct {
	baseURL string
	apiKey  string
	client  httpretry.HTTPDoer
}

// NewOpenRouterClient creates an OpenRouter generator. timeout bounds a
// single HTTP call and maxRetries caps the HTTP-level retries for transient
// failures (429/5xx), which is separate from the dispatcher's slot-level
// retry envelope.
func NewOpenRouterClient(baseURL, apiKey string, timeout time.Duration, maxRetries int) *OpenRouterClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OpenRouterClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  httpretry.NewRetryClient(&http.Client{Timeout: timeout}, maxRetries),
	}
}

type chatRequest struct {
	Model            string        `json:"model"`
	Messages         []chatMessage `json:"messages"`
	Temperature      float64       `json:"temperature"`
	MaxTokens        int           `json:"max_tokens"`
	TopP             float64       `json:"top_p"`
	PresencePenalty  float64       `json:"presence_penalty"`
	FrequencyPenalty float64       `json:"frequency_penalty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Code    any    `json:"code"`
	} `json:"error"`
}

// Generate sends the prompt as a single user message. The sampling
// parameters bias toward varied output across a campaign's sequence:
// high temperature plus presence/frequency penalties against reuse.
func (c *OpenRouterClient) Generate(ctx context.Context, prompt, modelID string) (string, error) {
	body, _ := json.Marshal(chatRequest{
		Model:            modelID,
		Messages:         []chatMessage{{Role: "user", Content: prompt}},
		Temperature:      0.8,
		MaxTokens:        500,
		TopP:             0.9,
		PresencePenalty:  0.2,
		FrequencyPenalty: 0.3,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", &Error{Backend: "openrouter", ModelID: modelID, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &Error{Backend: "openrouter", ModelID: modelID, Err: err}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", &Error{
			Backend: "openrouter",
			ModelID: modelID,
			Err:     fmt.Errorf("status %d: %s", resp.StatusCode, truncate(respBody, 300)),
		}
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", &Error{Backend: "openrouter", ModelID: modelID, Err: fmt.Errorf("parse response: %w", err)}
	}
	if parsed.Error != nil {
		return "", &Error{Backend: "openrouter", ModelID: modelID, Err: fmt.Errorf("api error: %s", parsed.Error.Message)}
	}
	if len(parsed.Choices) == 0 {
		return "", &Error{Backend: "openrouter", ModelID: modelID, Err: ErrEmptyContent}
	}

	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if content == "" {
		return "", &Error{Backend: "openrouter", ModelID: modelID, Err: ErrEmptyContent}
	}
	return content, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
