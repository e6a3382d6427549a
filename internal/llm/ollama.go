package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"
)

// OllamaProvider runs completions on a local Ollama server through its chat endpoint
type OllamaProvider struct {
	api    *jsonAPI
	config Config
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Format   string          `json:"format,omitempty"`
	Options  ollamaOptions   `json:"options"`
}

type ollamaOptions struct {
	Temperature float32 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaChatResponse struct {
	Model           string        `json:"model"`
	Message         ollamaMessage `json:"message"`
	Done            bool          `json:"done"`
	PromptEvalCount int           `json:"prompt_eval_count,omitempty"`
	EvalCount       int           `json:"eval_count,omitempty"`
}

func NewOllamaProvider(config Config) (*OllamaProvider, error) {
	return &OllamaProvider{
		api: &jsonAPI{
			provider: "ollama",
			baseURL:  strings.TrimSuffix(pick(config.BaseURL, "http://localhost:11434"), "/"),
			// local models can be slow on long documents
			client:       newHTTPClient(config, 120*time.Second),
			errorMessage: ollamaErrorMessage,
		},
		config: config,
	}, nil
}

func (p *OllamaProvider) Name() string {
	return "ollama"
}

// IsAvailable checks that the server answers its model listing
func (p *OllamaProvider) IsAvailable(ctx context.Context) bool {
	return p.api.do(ctx, http.MethodGet, "/api/tags", nil, nil) == nil
}

func (p *OllamaProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	model := pick(req.Model, p.config.Model)
	if model == "" {
		return nil, errors.New("ollama model must be specified (e.g., llama3.1:8b, mistral)")
	}

	chat := ollamaChatRequest{
		Model: model,
		Options: ollamaOptions{
			Temperature: req.Temperature,
			NumPredict:  pick(req.MaxTokens, p.config.MaxTokens),
		},
	}
	if req.System != "" {
		chat.Messages = append(chat.Messages, ollamaMessage{Role: "system", Content: req.System})
	}
	chat.Messages = append(chat.Messages, ollamaMessage{Role: "user", Content: req.Prompt})
	if req.JSON {
		chat.Format = "json"
	}

	var resp ollamaChatResponse
	if err := p.api.do(ctx, http.MethodPost, "/api/chat", chat, &resp); err != nil {
		return nil, err
	}

	content := strings.TrimSpace(resp.Message.Content)

	// estimate when the model reports no counts
	tokensUsed := resp.PromptEvalCount + resp.EvalCount
	if tokensUsed == 0 {
		tokensUsed = (len(req.System) + len(req.Prompt) + len(content)) / 4
	}

	return &CompletionResponse{
		Content:    content,
		Model:      pick(resp.Model, model),
		TokensUsed: tokensUsed,
	}, nil
}

func ollamaErrorMessage(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) != nil {
		return ""
	}
	return e.Error
}
