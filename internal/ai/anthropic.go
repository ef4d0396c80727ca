package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/tradevisor/tradevisor/internal/chain"
	"github.com/tradevisor/tradevisor/internal/prompt"
)

const anthropicMaxTokens = 1024

// AnthropicProvider calls the Anthropic Messages API. Vision requests embed
// the image as base64 from the shared scratch, so an oversized image
// short-circuits this provider to empty output.
type AnthropicProvider struct {
	name       string
	model      string
	client     anthropic.Client
	configured bool
}

func NewAnthropicProvider(apiKey, model string) *AnthropicProvider {
	p := &AnthropicProvider{name: "anthropic", model: model}
	if apiKey != "" {
		p.client = anthropic.NewClient(option.WithAPIKey(apiKey))
		p.configured = true
	}
	return p
}

func (p *AnthropicProvider) Name() string     { return p.name }
func (p *AnthropicProvider) Configured() bool { return p.configured }

func (p *AnthropicProvider) Generate(ctx context.Context, req prompt.Request) (string, error) {
	if !p.configured {
		return "", fmt.Errorf("%s: %w", p.name, ErrNotConfigured)
	}
	return p.message(ctx, req.System, anthropic.NewUserMessage(anthropic.NewTextBlock(req.User)))
}

func (p *AnthropicProvider) Vision(ctx context.Context, req prompt.Request, img *chain.Scratch) (string, error) {
	if !p.configured {
		return "", fmt.Errorf("%s: %w", p.name, ErrNotConfigured)
	}
	b64, err := img.Base64(ctx)
	if errors.Is(err, chain.ErrImageTooLarge) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", p.name, err)
	}
	return p.message(ctx, req.System, anthropic.NewUserMessage(
		anthropic.NewImageBlockBase64(img.MIME(), b64),
		anthropic.NewTextBlock(req.User),
	))
}

func (p *AnthropicProvider) Polish(ctx context.Context, text string) (string, error) {
	if !p.configured {
		return "", fmt.Errorf("%s: %w", p.name, ErrNotConfigured)
	}
	return p.message(ctx, polishSystem, anthropic.NewUserMessage(anthropic.NewTextBlock(text)))
}

func (p *AnthropicProvider) message(ctx context.Context, system string, msgs ...anthropic.MessageParam) (string, error) {
	resp, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: anthropicMaxTokens,
		System:    []anthropic.TextBlockParam{{Text: system}},
		Messages:  msgs,
	})
	if err != nil {
		return "", fmt.Errorf("messages api: %w", err)
	}
	if len(resp.Content) == 0 {
		return "", errors.New("no content blocks in response")
	}
	return resp.Content[0].Text, nil
}
