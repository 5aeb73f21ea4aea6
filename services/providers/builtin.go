package providers

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Built-in provider keys
const (
	Jules     = "jules"
	OpenAI    = "openai"
	Anthropic = "anthropic"
	Gemini    = "gemini"
	Ollama    = "ollama"
)

// DefaultPriority is the order providers are tried in when no override is configured
var DefaultPriority = []string{Jules, OpenAI, Anthropic, Gemini, Ollama}

const (
	anthropicVersion   = "2023-06-01"
	anthropicMaxTokens = 1024
)

var errEmptyReply = errors.New("reply is empty")

// Builtin returns descriptors for every supported provider, overlaying the
// given per-provider settings on the defaults. Keys missing from configs get
// defaults and no credential.
func Builtin(configs map[string]ProviderConfig) []Descriptor {
	descriptors := []Descriptor{
		{
			Key:                Jules,
			Endpoint:           "https://api.jules.ai/v1/chat/completions",
			Model:              "jules-1.5-pro",
			RequiresCredential: true,
			Auth:               BearerAuth(),
			Build:              buildChatCompletion,
			Extract:            extractChatCompletion,
		},
		{
			Key:                OpenAI,
			Endpoint:           "https://api.openai.com/v1/chat/completions",
			Model:              "gpt-4o",
			RequiresCredential: true,
			Auth:               BearerAuth(),
			Build:              buildChatCompletion,
			Extract:            extractChatCompletion,
		},
		{
			Key:                Anthropic,
			Endpoint:           "https://api.anthropic.com/v1/messages",
			Model:              "claude-3-5-sonnet-latest",
			RequiresCredential: true,
			Auth:               HeaderAuth("x-api-key"),
			Headers:            map[string]string{"anthropic-version": anthropicVersion},
			Build:              buildAnthropicMessages,
			Extract:            extractAnthropicMessages,
		},
		{
			Key:                Gemini,
			Model:              "gemini-1.5-flash",
			RequiresCredential: true,
			Auth:               QueryAuth("key"),
			Build:              buildGeminiContents,
			Extract:            extractGeminiContents,
		},
		{
			Key:      Ollama,
			Endpoint: "http://localhost:11434/api/chat",
			Model:    "llama3",
			Auth:     NoAuth(),
			Build:    buildOllama,
			Extract:  extractOllama,
		},
	}

	for i := range descriptors {
		d := &descriptors[i]
		if cfg, ok := configs[d.Key]; ok {
			d.Credential = cfg.APIKey
			if cfg.Endpoint != "" {
				d.Endpoint = cfg.Endpoint
			}
			if cfg.Model != "" {
				d.Model = cfg.Model
			}
			d.Timeout = cfg.Timeout
		}
		// the Gemini model is part of the URL path
		if d.Key == Gemini && d.Endpoint == "" {
			d.Endpoint = fmt.Sprintf("https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent", d.Model)
		}
	}

	return descriptors
}

// OpenAI-compatible chat completions (jules, openai)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message *struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func buildChatCompletion(model, prompt string) interface{} {
	return chatCompletionRequest{
		Model:    model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	}
}

func extractChatCompletion(body []byte) (string, error) {
	var resp chatCompletionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("response has no choices")
	}
	msg := resp.Choices[0].Message
	if msg == nil || msg.Content == nil {
		return "", errors.New("choices[0].message.content is missing")
	}
	return nonEmpty(*msg.Content)
}

// Anthropic Messages API

type anthropicRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	Messages  []chatMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func buildAnthropicMessages(model, prompt string) interface{} {
	return anthropicRequest{
		Model:     model,
		MaxTokens: anthropicMaxTokens,
		Messages:  []chatMessage{{Role: "user", Content: prompt}},
	}
}

func extractAnthropicMessages(body []byte) (string, error) {
	var resp anthropicResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode messages response: %w", err)
	}

	var (
		sb    strings.Builder
		found bool
	)
	for _, block := range resp.Content {
		if block.Type != "text" {
			continue
		}
		found = true
		sb.WriteString(block.Text)
	}
	if !found {
		return "", errors.New("response has no text content block")
	}
	return nonEmpty(sb.String())
}

// Gemini generateContent

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content *geminiContent `json:"content"`
	} `json:"candidates"`
}

func buildGeminiContents(_ string, prompt string) interface{} {
	return geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}},
	}
}

func extractGeminiContents(body []byte) (string, error) {
	var resp geminiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode generateContent response: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("response has no candidates")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return nonEmpty(sb.String())
}

// Ollama. The payload carries both "prompt" and "messages" so the endpoint
// may point at either /api/generate or /api/chat.

type ollamaRequest struct {
	Model    string        `json:"model"`
	Prompt   string        `json:"prompt"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type ollamaResponse struct {
	Message *struct {
		Content string `json:"content"`
	} `json:"message"`
	Response *string `json:"response"`
}

func buildOllama(model, prompt string) interface{} {
	return ollamaRequest{
		Model:    model,
		Prompt:   prompt,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
		Stream:   false,
	}
}

func extractOllama(body []byte) (string, error) {
	var resp ollamaResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode ollama response: %w", err)
	}
	switch {
	case resp.Message != nil:
		return nonEmpty(resp.Message.Content)
	case resp.Response != nil:
		return nonEmpty(*resp.Response)
	default:
		return "", errors.New("response has neither message.content nor response")
	}
}

func nonEmpty(reply string) (string, error) {
	if strings.TrimSpace(reply) == "" {
		return "", errEmptyReply
	}
	return reply, nil
}
