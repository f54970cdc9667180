package openaichat

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/venturebuilderai/officesim/internal/interfaces"
)

type chatLLM struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// New returns a chat completions client against the hosted API.
func New(apiKey string) interfaces.LLM {
	return NewWithEndpoint("https://api.openai.com", apiKey, "gpt-4-0125-preview")
}

// NewWithEndpoint allows overriding the base URL and default model, e.g. for
// a compatible local server.
func NewWithEndpoint(baseURL, apiKey, model string) interfaces.LLM {
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	if model == "" {
		model = "gpt-4-0125-preview"
	}
	return &chatLLM{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

type chatRequest struct {
	Model       string               `json:"model"`
	Messages    []interfaces.Message `json:"messages"`
	Temperature float64              `json:"temperature,omitempty"`
	MaxTokens   int                  `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message interfaces.Message `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (c *chatLLM) Chat(messages []interfaces.Message, opts ...interfaces.LLMOption) (string, error) {
	options := interfaces.CollectOptions(opts)

	reqBody := chatRequest{Model: c.model, Messages: messages}
	if m, ok := options["model"].(string); ok && m != "" {
		reqBody.Model = m
	}
	if t, ok := options["temperature"].(float64); ok {
		reqBody.Temperature = t
	}
	if n, ok := options["max_tokens"].(int); ok {
		reqBody.MaxTokens = n
	}

	b, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequest("POST", c.baseURL+"/v1/chat/completions", bytes.NewReader(b))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("post chat completion: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("chat completion returned status %d: %s", resp.StatusCode, string(body))
	}

	var out chatResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("unmarshal chat response: %w", err)
	}
	if out.Error != nil {
		return "", fmt.Errorf("chat completion error: %s", out.Error.Message)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return out.Choices[0].Message.Content, nil
}
