package ollama

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/venturebuilderai/officesim/internal/interfaces"
)

type ollamaLLM struct {
	endpoint string
	model    string
	client   *http.Client
}

// New returns a client configured for the local Ollama HTTP API.
func New() interfaces.LLM {
	return NewWithEndpointModel("http://localhost:11434/api/generate", "tinyllama")
}

// NewWithEndpointModel creates an Ollama client with custom endpoint and model.
func NewWithEndpointModel(endpoint, model string) interfaces.LLM {
	if endpoint == "" {
		endpoint = "http://localhost:11434/api/generate"
	}
	if model == "" {
		model = "tinyllama"
	}
	return &ollamaLLM{endpoint: endpoint, model: model, client: &http.Client{Timeout: 30 * time.Second}}
}

type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaResponse struct {
	Model     string `json:"model"`
	CreatedAt string `json:"created_at"`
	Response  string `json:"response"`
	Done      bool   `json:"done"`
}

func (o *ollamaLLM) Chat(messages []interfaces.Message, opts ...interfaces.LLMOption) (string, error) {
	options := interfaces.CollectOptions(opts)
	model := o.model
	if m, ok := options["model"].(string); ok && m != "" {
		model = m
	}

	reqBody := ollamaRequest{Model: model, Prompt: flatten(messages), Stream: false}
	b, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal ollama request: %w", err)
	}

	resp, err := o.client.Post(o.endpoint, "application/json", bytes.NewReader(b))
	if err != nil {
		return "", fmt.Errorf("post to ollama: %w", err)
	}
	defer resp.Body.Close()

	var out ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode ollama response: %w", err)
	}

	return strings.TrimSpace(out.Response), nil
}

// flatten renders a conversation as a single completion prompt, since the
// generate API takes no message list.
func flatten(messages []interfaces.Message) string {
	var b strings.Builder
	for _, m := range messages {
		switch m.Role {
		case interfaces.RoleSystem:
			b.WriteString(m.Content)
			b.WriteString("\n\n")
		case interfaces.RoleUser:
			b.WriteString("User: ")
			b.WriteString(m.Content)
			b.WriteString("\n")
		case interfaces.RoleAssistant:
			b.WriteString("Assistant: ")
			b.WriteString(m.Content)
			b.WriteString("\n")
		}
	}
	b.WriteString("Assistant:")
	return b.String()
}
