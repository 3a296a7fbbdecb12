package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// Gemini calls the Google Gemini API with a declared response schema
type Gemini struct {
	client *genai.Client
	opts   Options
}

func NewGemini(ctx context.Context, opts Options) (*Gemini, error) {
	if err := requireKey("gemini", opts.APIKey); err != nil {
		return nil, err
	}

	cc := &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if opts.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &Gemini{client: client, opts: opts}, nil
}

func (g *Gemini) Name() string { return "gemini/" + g.opts.Model }

// Close is a no-op; genai.Client holds no resources that need releasing
func (g *Gemini) Close() error { return nil }

func (g *Gemini) Generate(ctx context.Context, req Request) (string, error) {
	gc := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   GeminiSchema(req.Schema),
		Temperature:      genai.Ptr(float32(g.opts.Temperature)),
		MaxOutputTokens:  int32(g.opts.MaxTokens),
	}
	if req.System != "" {
		gc.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.opts.Model, genai.Text(req.Prompt), gc)
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}
	return resp.Text(), nil
}

// GeminiSchema converts a JSON-schema map into the genai schema type.
// Only the keywords the rule set schema uses are carried over.
func GeminiSchema(s map[string]any) *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{}
	if t, ok := s["type"].(string); ok {
		out.Type = geminiType(t)
	}
	if d, ok := s["description"].(string); ok {
		out.Description = d
	}
	if props, ok := s["properties"].(map[string]any); ok {
		out.Properties = make(map[string]*genai.Schema, len(props))
		for name, p := range props {
			if pm, ok := p.(map[string]any); ok {
				out.Properties[name] = GeminiSchema(pm)
			}
		}
	}
	if items, ok := s["items"].(map[string]any); ok {
		out.Items = GeminiSchema(items)
	}
	out.Required = stringList(s["required"])
	out.Enum = stringList(s["enum"])
	return out
}

func geminiType(t string) genai.Type {
	switch t {
	case "object":
		return genai.TypeObject
	case "array":
		return genai.TypeArray
	case "string":
		return genai.TypeString
	case "integer":
		return genai.TypeInteger
	case "number":
		return genai.TypeNumber
	case "boolean":
		return genai.TypeBoolean
	}
	return genai.TypeUnspecified
}

func stringList(v any) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
