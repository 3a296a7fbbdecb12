package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"agentlayer/internal/config"
	"agentlayer/internal/logger"
	"agentlayer/internal/rules"
)

func init() {
	logger.Discard()
}

func testRequest() Request {
	return Request{
		System:     "be precise",
		Prompt:     "make rules",
		SchemaName: rules.SchemaName,
		Schema:     rules.Schema(),
	}
}

func TestNew_MissingAPIKey(t *testing.T) {
	for _, provider := range []string{config.ProviderGemini, config.ProviderOpenAI, config.ProviderAnthropic} {
		t.Run(provider, func(t *testing.T) {
			t.Setenv("GEMINI_API_KEY", "")
			t.Setenv("GOOGLE_API_KEY", "")
			t.Setenv("API_KEY", "")
			t.Setenv("OPENAI_API_KEY", "")
			t.Setenv("OPENROUTER_API_KEY", "")
			t.Setenv("ANTHROPIC_API_KEY", "")

			cfg := &config.Config{Provider: provider, MaxTokens: 100}
			_, err := New(context.Background(), cfg)
			assert.True(t, errors.Is(err, ErrMissingAPIKey), "got %v", err)
		})
	}
}

func TestNew_UnknownProvider(t *testing.T) {
	_, err := New(context.Background(), &config.Config{Provider: "bard"})
	assert.Error(t, err)
}

func TestNew_HostedProviders(t *testing.T) {
	gen, err := New(context.Background(), &config.Config{Provider: config.ProviderOpenAI, APIKey: "sk-test", MaxTokens: 100})
	require.NoError(t, err)
	assert.Equal(t, "openai/gpt-4.1-mini", gen.Name())
	assert.NoError(t, gen.Close())

	gen, err = New(context.Background(), &config.Config{Provider: config.ProviderAnthropic, APIKey: "sk-ant", Model: "claude-test", MaxTokens: 100})
	require.NoError(t, err)
	assert.Equal(t, "anthropic/claude-test", gen.Name())
}

func TestNew_LlamaAttachesToBaseURL(t *testing.T) {
	gen, err := New(context.Background(), &config.Config{
		Provider:  config.ProviderLlama,
		BaseURL:   "http://127.0.0.1:9/",
		MaxTokens: 512,
	})
	require.NoError(t, err)

	s, ok := gen.(*LlamaServer)
	require.True(t, ok)
	assert.Equal(t, "llama/http://127.0.0.1:9", s.Name())
	assert.Equal(t, 512, s.MaxTokens)
}

func TestGeminiSchema(t *testing.T) {
	s := GeminiSchema(rules.Schema())

	assert.Equal(t, genai.TypeObject, s.Type)
	assert.ElementsMatch(t, []string{"title", "description", "rules", "logTemplate"}, s.Required)

	list := s.Properties["rules"]
	require.NotNil(t, list)
	assert.Equal(t, genai.TypeArray, list.Type)
	require.NotNil(t, list.Items)
	assert.Equal(t, genai.TypeObject, list.Items.Type)
	assert.Equal(t, []string{"high", "medium", "low"}, list.Items.Properties["importance"].Enum)
	assert.Equal(t, genai.TypeString, list.Items.Properties["category"].Type)
	assert.Equal(t, "A markdown template for logging tasks in GEMINI.md", s.Properties["logTemplate"].Description)

	assert.Nil(t, GeminiSchema(nil))
}

func TestSystemWithSchema(t *testing.T) {
	out, err := SystemWithSchema(testRequest())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "be precise\n\n"))
	assert.Contains(t, out, `"logTemplate"`)

	out, err = SystemWithSchema(Request{System: "plain"})
	require.NoError(t, err)
	assert.Equal(t, "plain", out)
}

func newAttached(t *testing.T, handler http.HandlerFunc) *LlamaServer {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	s := NewLlamaServer("", "", 4096, 0)
	s.Attach(srv.URL)
	return s
}

func TestLlamaServer_Generate(t *testing.T) {
	var got ChatRequest
	s := newAttached(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"  {\"title\":\"t\"}  "}}]}`)
	})

	out, err := s.Generate(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, `{"title":"t"}`, out)
	assert.True(t, s.IsRunning())

	require.Len(t, got.Messages, 2)
	assert.Equal(t, ChatMessage{Role: "system", Content: "be precise"}, got.Messages[0])
	assert.Equal(t, ChatMessage{Role: "user", Content: "make rules"}, got.Messages[1])
	assert.Equal(t, "json_object", got.ResponseFormat["type"])
	assert.NotNil(t, got.ResponseFormat["schema"])

	// attached servers are not ours to kill
	assert.NoError(t, s.Close())
}

func TestLlamaServer_GenerateErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr bool
		want    string
	}{
		{"server error", http.StatusInternalServerError, `{"error":"boom"}`, true, ""},
		{"not json", http.StatusOK, `<html>`, true, ""},
		{"no choices", http.StatusOK, `{"choices":[]}`, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newAttached(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			})

			out, err := s.Generate(context.Background(), testRequest())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestLlamaServer_ContextCancelled(t *testing.T) {
	release := make(chan struct{})
	s := newAttached(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Generate(ctx, testRequest())
	assert.Error(t, err)
}

func TestLlamaServer_StopWhenNotStarted(t *testing.T) {
	s := NewLlamaServer("test", "test", 4096, 9999)
	assert.False(t, s.IsRunning())
	assert.NoError(t, s.Stop())
}

func TestLlamaServer_StartRequiresModelPath(t *testing.T) {
	// port 0 is never open, so Start tries to spawn
	s := NewLlamaServer("nonexistent_binary_that_doesnt_exist", "", 4096, 0)
	assert.Error(t, s.Start(context.Background()))
}

func TestLlamaServer_StartFailsWithBadBinary(t *testing.T) {
	s := NewLlamaServer("nonexistent_binary_that_doesnt_exist", "model.gguf", 4096, 0)
	err := s.Start(context.Background())
	if err == nil {
		s.Stop()
	}
	assert.Error(t, err)
}
