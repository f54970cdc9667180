package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/venturebuilderai/officesim/internal/interfaces"
)

type geminiLLM struct {
	client *genai.Client
	model  string
}

// New connects to the Gemini API with the given key. The default model can
// be overridden per call with interfaces.WithModel.
func New(apiKey, model string) (interfaces.LLM, error) {
	if model == "" {
		model = "gemini-2.5-pro"
	}
	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &geminiLLM{client: client, model: model}, nil
}

func (g *geminiLLM) Chat(messages []interfaces.Message, opts ...interfaces.LLMOption) (string, error) {
	options := interfaces.CollectOptions(opts)

	name := g.model
	if m, ok := options["model"].(string); ok && m != "" {
		name = m
	}
	model := g.client.GenerativeModel(name)
	if t, ok := options["temperature"].(float64); ok {
		model.SetTemperature(float32(t))
	}
	if n, ok := options["max_tokens"].(int); ok {
		model.SetMaxOutputTokens(int32(n))
	}

	// Gemini carries the system prompt separately from the turn history.
	var history []*genai.Content
	var system, last string
	for _, msg := range messages {
		switch msg.Role {
		case interfaces.RoleSystem:
			system = msg.Content
			model.SystemInstruction = &genai.Content{
				Parts: []genai.Part{genai.Text(msg.Content)},
			}
		case interfaces.RoleUser:
			last = msg.Content
			history = append(history, &genai.Content{
				Role:  "user",
				Parts: []genai.Part{genai.Text(msg.Content)},
			})
		case interfaces.RoleAssistant:
			history = append(history, &genai.Content{
				Role:  "model",
				Parts: []genai.Part{genai.Text(msg.Content)},
			})
		}
	}
	if last == "" {
		// A system-only call (e.g. an opening line generated from persona
		// instructions) becomes the prompt itself, since Gemini rejects an
		// empty contents list.
		if system == "" {
			return "", fmt.Errorf("gemini chat requires at least one message")
		}
		model.SystemInstruction = nil
		last = system
	}
	// The final user turn is sent as the message itself, not history.
	if n := len(history); n > 0 && history[n-1].Role == "user" {
		history = history[:n-1]
	}

	chat := model.StartChat()
	chat.History = history

	resp, err := chat.SendMessage(context.Background(), genai.Text(last))
	if err != nil {
		return "", fmt.Errorf("gemini send message: %w", err)
	}
	text := collectText(resp)
	if text == "" {
		return "", fmt.Errorf("gemini returned an empty response")
	}
	return text, nil
}

func collectText(resp *genai.GenerateContentResponse) string {
	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				sb.WriteString(string(t))
			}
		}
	}
	return strings.TrimSpace(sb.String())
}
