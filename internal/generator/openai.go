package generator

import (
	"context"
	"errors"
	"strings"

	"github.com/dialkit/dialkit/pkg/models"
	openai "github.com/sashabaranov/go-openai"
)

// OpenAIConfig configures the OpenAI-compatible provider.
type OpenAIConfig struct {
	// APIKey authenticates against the API.
	APIKey string

	// BaseURL overrides the API endpoint, for OpenAI-compatible servers.
	BaseURL string

	// Model is the chat model to use. Defaults to gpt-4o-mini.
	Model string
}

// OpenAIProvider implements Generator using the OpenAI chat API.
//
// Thread Safety:
// OpenAIProvider is safe for concurrent use; each Generate call is an
// independent request.
type OpenAIProvider struct {
	client *openai.Client
	model  string
}

var _ Generator = (*OpenAIProvider)(nil)

// NewOpenAIProvider creates a new OpenAI provider.
func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if strings.TrimSpace(cfg.BaseURL) != "" {
		clientCfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIProvider{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
	}
}

// Name returns the provider name.
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// Generate sends a non-streaming chat completion request.
func (p *OpenAIProvider) Generate(ctx context.Context, msgs []Message) (string, error) {
	if len(msgs) == 0 {
		return "", NewProviderError("openai", p.model, errors.New("no messages"))
	}

	req := openai.ChatCompletionRequest{
		Model:    p.model,
		Messages: make([]openai.ChatCompletionMessage, 0, len(msgs)),
	}
	for _, m := range msgs {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    openaiRole(m.Role),
			Content: m.Content,
		})
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		providerErr := NewProviderError("openai", p.model, err)
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			providerErr = providerErr.WithStatus(apiErr.HTTPStatusCode)
		}
		return "", providerErr
	}

	if len(resp.Choices) == 0 {
		return "", NewProviderError("openai", p.model, errors.New("no choices in response"))
	}
	reply := strings.TrimSpace(resp.Choices[0].Message.Content)
	if reply == "" {
		return "", NewProviderError("openai", p.model, errors.New("empty completion"))
	}
	return reply, nil
}

func openaiRole(role models.Role) string {
	switch role {
	case models.RoleSystem:
		return openai.ChatMessageRoleSystem
	case models.RoleAssistant:
		return openai.ChatMessageRoleAssistant
	default:
		return openai.ChatMessageRoleUser
	}
}
