package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Anthropic calls the Messages API. It has no response-format switch,
// so the schema travels in the system prompt.
type Anthropic struct {
	client anthropic.Client
	opts   Options
}

func NewAnthropic(opts Options) (*Anthropic, error) {
	if err := requireKey("anthropic", opts.APIKey); err != nil {
		return nil, err
	}

	options := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
	}
	if opts.BaseURL != "" {
		// The SDK expects the base without /v1
		options = append(options, option.WithBaseURL(strings.TrimSuffix(strings.TrimRight(opts.BaseURL, "/"), "/v1")))
	}

	return &Anthropic{client: anthropic.NewClient(options...), opts: opts}, nil
}

func (c *Anthropic) Name() string { return "anthropic/" + c.opts.Model }

func (c *Anthropic) Close() error { return nil }

func (c *Anthropic) Generate(ctx context.Context, req Request) (string, error) {
	system, err := SystemWithSchema(req)
	if err != nil {
		return "", err
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.opts.Model),
		MaxTokens:   int64(c.opts.MaxTokens),
		Temperature: anthropic.Float(c.opts.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic request failed: %w", err)
	}

	var out strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	return out.String(), nil
}

// SystemWithSchema appends the JSON schema to the system text for
// providers that can only be told about it in words
func SystemWithSchema(req Request) (string, error) {
	if req.Schema == nil {
		return req.System, nil
	}
	schema, err := json.MarshalIndent(req.Schema, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode schema: %w", err)
	}
	var b strings.Builder
	if req.System != "" {
		b.WriteString(req.System)
		b.WriteString("\n\n")
	}
	b.WriteString("Respond with exactly one JSON object and nothing else. It must match this JSON schema:\n")
	b.Write(schema)
	return b.String(), nil
}
