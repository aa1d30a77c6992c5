// Package anthropic provides a core.Invoker backed by the Anthropic Messages
// API.
package anthropic

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/agentloom/agentloom/core"
)

// Options configure the Anthropic invoker. Per-request model, temperature and
// token settings in the GenerateRequest take precedence over these defaults.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
}

// Invoker wraps the Anthropic Messages API behind core.Invoker.
type Invoker struct {
	client *anthropic.Client
	opts   Options
}

// New creates an Anthropic invoker using the official client.
func New(optFns ...func(o *Options)) *Invoker {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := anthropic.NewClient(clientOpts...)
	return &Invoker{client: &client, opts: opts}
}

// NewFromClient creates an Anthropic invoker from an existing client.
func NewFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Invoker {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Invoker{client: client, opts: opts}
}

// Generate implements core.Invoker.
func (i *Invoker) Generate(ctx context.Context, req core.GenerateRequest) (*core.GenerateResponse, error) {
	model := i.opts.Model
	if req.Model != "" {
		model = anthropic.Model(req.Model)
	}
	temperature := i.opts.Temperature
	if req.Temperature > 0 {
		temperature = req.Temperature
	}
	maxTokens := i.opts.MaxTokens
	if req.MaxTokens > 0 {
		maxTokens = int64(req.MaxTokens)
	}

	params := anthropic.MessageNewParams{
		Model:       model,
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.SystemMessage != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemMessage}}
	}

	resp, err := i.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic api error: %w", err)
	}

	var content string
	for _, block := range resp.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}
	return &core.GenerateResponse{Content: content, Model: string(resp.Model)}, nil
}
