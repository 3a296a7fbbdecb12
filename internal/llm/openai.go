package llm

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenAI calls any Chat Completions compatible endpoint (OpenAI,
// OpenRouter, a local proxy) with a json_schema response format
type OpenAI struct {
	client openai.Client
	opts   Options
}

func NewOpenAI(opts Options) (*OpenAI, error) {
	if err := requireKey("openai", opts.APIKey); err != nil {
		return nil, err
	}

	options := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
	}
	if opts.BaseURL != "" {
		options = append(options, option.WithBaseURL(opts.BaseURL))
	}

	return &OpenAI{client: openai.NewClient(options...), opts: opts}, nil
}

func (c *OpenAI) Name() string { return "openai/" + c.opts.Model }

// Close is a no-op; the OpenAI client doesn't need explicit closing
func (c *OpenAI) Close() error { return nil }

func (c *OpenAI) Generate(ctx context.Context, req Request) (string, error) {
	var messages []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(c.opts.Model),
		Messages:            messages,
		MaxCompletionTokens: openai.Int(int64(c.opts.MaxTokens)),
		Temperature:         openai.Float(c.opts.Temperature),
	}
	if req.Schema != nil {
		// Not strict: strict mode demands every property be required,
		// and commandSnippet, contextTip and initScript are optional
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   req.SchemaName,
					Schema: req.Schema,
				},
			},
		}
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}
