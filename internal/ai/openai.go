package ai

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/tradevisor/tradevisor/internal/chain"
	"github.com/tradevisor/tradevisor/internal/prompt"
)

// OpenAIProvider calls the OpenAI chat completion API. Vision requests pass
// the original image URL through, so the size ceiling on the scratch does
// not apply to this provider.
type OpenAIProvider struct {
	name   string
	model  string
	client *openai.Client
}

func NewOpenAIProvider(apiKey, model string) *OpenAIProvider {
	p := &OpenAIProvider{name: "openai", model: model}
	if apiKey != "" {
		p.client = openai.NewClient(apiKey)
	}
	return p
}

// NewGatewayProvider builds an adapter for any OpenAI-compatible endpoint
// (self-hosted model, proxy, the local stub server). Vision goes through a
// base64 data URL because a private gateway cannot fetch external images.
func NewGatewayProvider(baseURL, apiKey, model string) *GatewayProvider {
	g := &GatewayProvider{name: "gateway", model: model}
	if baseURL != "" {
		cfg := openai.DefaultConfig(apiKey)
		cfg.BaseURL = baseURL
		g.client = openai.NewClientWithConfig(cfg)
	}
	return g
}

func (p *OpenAIProvider) Name() string     { return p.name }
func (p *OpenAIProvider) Configured() bool { return p.client != nil }

func (p *OpenAIProvider) Generate(ctx context.Context, req prompt.Request) (string, error) {
	if p.client == nil {
		return "", fmt.Errorf("%s: %w", p.name, ErrNotConfigured)
	}
	return completeChat(ctx, p.client, p.model, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: req.System},
		{Role: openai.ChatMessageRoleUser, Content: req.User},
	})
}

func (p *OpenAIProvider) Vision(ctx context.Context, req prompt.Request, img *chain.Scratch) (string, error) {
	if p.client == nil {
		return "", fmt.Errorf("%s: %w", p.name, ErrNotConfigured)
	}
	return completeChat(ctx, p.client, p.model, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: req.System},
		{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: req.User},
				{
					Type:     openai.ChatMessagePartTypeImageURL,
					ImageURL: &openai.ChatMessageImageURL{URL: img.URL()},
				},
			},
		},
	})
}

func (p *OpenAIProvider) Polish(ctx context.Context, text string) (string, error) {
	if p.client == nil {
		return "", fmt.Errorf("%s: %w", p.name, ErrNotConfigured)
	}
	return completeChat(ctx, p.client, p.model, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: polishSystem},
		{Role: openai.ChatMessageRoleUser, Content: text},
	})
}

// GatewayProvider shares the OpenAI wire shape with a different base URL and
// byte-level image handling.
type GatewayProvider struct {
	name   string
	model  string
	client *openai.Client
}

func (g *GatewayProvider) Name() string     { return g.name }
func (g *GatewayProvider) Configured() bool { return g.client != nil }

func (g *GatewayProvider) Generate(ctx context.Context, req prompt.Request) (string, error) {
	if g.client == nil {
		return "", fmt.Errorf("%s: %w", g.name, ErrNotConfigured)
	}
	return completeChat(ctx, g.client, g.model, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: req.System},
		{Role: openai.ChatMessageRoleUser, Content: req.User},
	})
}

func (g *GatewayProvider) Vision(ctx context.Context, req prompt.Request, img *chain.Scratch) (string, error) {
	if g.client == nil {
		return "", fmt.Errorf("%s: %w", g.name, ErrNotConfigured)
	}
	b64, err := img.Base64(ctx)
	if errors.Is(err, chain.ErrImageTooLarge) {
		// Too large for byte-dependent providers: empty output lets the
		// chain advance without another download.
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", g.name, err)
	}
	dataURL := fmt.Sprintf("data:%s;base64,%s", img.MIME(), b64)
	return completeChat(ctx, g.client, g.model, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: req.System},
		{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: req.User},
				{
					Type:     openai.ChatMessagePartTypeImageURL,
					ImageURL: &openai.ChatMessageImageURL{URL: dataURL},
				},
			},
		},
	})
}

func (g *GatewayProvider) Polish(ctx context.Context, text string) (string, error) {
	if g.client == nil {
		return "", fmt.Errorf("%s: %w", g.name, ErrNotConfigured)
	}
	return completeChat(ctx, g.client, g.model, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: polishSystem},
		{Role: openai.ChatMessageRoleUser, Content: text},
	})
}

func completeChat(ctx context.Context, client *openai.Client, model string, messages []openai.ChatCompletionMessage) (string, error) {
	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    model,
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no choices in completion response")
	}
	return resp.Choices[0].Message.Content, nil
}
