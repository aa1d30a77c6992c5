// Package openai provides a core.Invoker backed by the OpenAI Chat
// Completions API.
package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"

	"github.com/agentloom/agentloom/core"
)

// Options configure the OpenAI invoker. Fields mirror a minimal subset of
// Chat Completion parameters; per-request values take precedence.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
}

// Invoker wraps the OpenAI Chat Completions API behind core.Invoker.
type Invoker struct {
	client *openai.Client
	opts   Options
}

// New creates an OpenAI invoker using the official client.
func New(optFns ...func(o *Options)) *Invoker {
	client := openai.NewClient()
	return NewFromClient(&client, optFns...)
}

// NewFromClient creates an OpenAI invoker from an existing client.
func NewFromClient(client *openai.Client, optFns ...func(o *Options)) *Invoker {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
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
		model = req.Model
	}
	temperature := i.opts.Temperature
	if req.Temperature > 0 {
		temperature = req.Temperature
	}
	maxTokens := i.opts.MaxCompletionTokens
	if req.MaxTokens > 0 {
		maxTokens = int64(req.MaxTokens)
	}

	var messages []openai.ChatCompletionMessageParamUnion
	if req.SystemMessage != "" {
		messages = append(messages, openai.SystemMessage(req.SystemMessage))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	resp, err := i.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:               model,
		Messages:            messages,
		Temperature:         openai.Float(temperature),
		MaxCompletionTokens: openai.Int(maxTokens),
	})
	if err != nil {
		return nil, fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai api returned no choices")
	}
	return &core.GenerateResponse{Content: resp.Choices[0].Message.Content, Model: resp.Model}, nil
}
