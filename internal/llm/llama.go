package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"agentlayer/internal/logger"
)

// ChatMessage represents a message in the OpenAI chat format
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the request body for /v1/chat/completions
type ChatRequest struct {
	Messages       []ChatMessage  `json:"messages"`
	Temperature    float64        `json:"temperature"`
	MaxTokens      int            `json:"max_tokens,omitempty"`
	ResponseFormat map[string]any `json:"response_format,omitempty"`
}

// LlamaServer implements Generator on a local llama-server. The server
// is spawned on first use unless something already listens on Port.
type LlamaServer struct {
	BinPath     string
	ModelPath   string
	ContextSize int
	Port        int
	MaxTokens   int
	Temperature float64

	// StartupTimeout bounds how long model loading may take
	StartupTimeout time.Duration

	cmd      *exec.Cmd
	running  bool
	attached bool // never spawn, only talk to baseURL
	mu       sync.Mutex
	baseURL  string
	client   *http.Client
}

func NewLlamaServer(binPath, modelPath string, contextSize, port int) *LlamaServer {
	return &LlamaServer{
		BinPath:        binPath,
		ModelPath:      modelPath,
		ContextSize:    contextSize,
		Port:           port,
		MaxTokens:      4096,
		Temperature:    0.2,
		StartupTimeout: 180 * time.Second,
		baseURL:        fmt.Sprintf("http://127.0.0.1:%d", port),
		client:         &http.Client{},
	}
}

// Attach points the provider at an already running server
func (s *LlamaServer) Attach(baseURL string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.baseURL = strings.TrimRight(baseURL, "/")
	s.attached = true
}

func (s *LlamaServer) Name() string { return "llama/" + s.baseURL }

// IsPortOpen checks if a port is already in use (server already running)
func IsPortOpen(port int) bool {
	conn, err := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", port), 1*time.Second)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// Start attaches to a running server or spawns one and waits until the
// model has loaded
func (s *LlamaServer) Start(ctx context.Context) error {
	s.mu.Lock()

	if s.running {
		s.mu.Unlock()
		return nil
	}

	// A server left over from a previous session, or one started by hand
	if s.attached || IsPortOpen(s.Port) {
		logger.Info("llama-server already reachable at %s, attaching", s.baseURL)
		s.running = true
		s.mu.Unlock()
		return nil
	}

	bin := s.BinPath
	if bin == "" {
		bin = "llama-server"
	}
	if s.ModelPath == "" {
		s.mu.Unlock()
		return fmt.Errorf("model_path is required to start llama-server")
	}

	args := []string{
		"-m", s.ModelPath,
		"-c", fmt.Sprintf("%d", s.ContextSize),
		"--host", "127.0.0.1",
		"--port", fmt.Sprintf("%d", s.Port),
	}

	s.cmd = exec.Command(bin, args...)
	// No stdout/stderr piping: a full pipe buffer stalls the server

	if err := s.cmd.Start(); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to start llama-server: %w", err)
	}

	s.running = true
	logger.Info("llama-server started (PID: %d)", s.cmd.Process.Pid)
	cmd := s.cmd
	s.mu.Unlock()

	// Monitor for unexpected exit
	go func() {
		cmd.Wait()
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	if err := s.waitForReady(ctx, s.StartupTimeout); err != nil {
		s.Stop()
		return err
	}

	return nil
}

// waitForReady polls /health until the server reports "ok"
func (s *LlamaServer) waitForReady(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	healthURL := s.baseURL + "/health"
	client := &http.Client{Timeout: 2 * time.Second}

	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return err
		}

		resp, err := client.Get(healthURL)
		if err == nil {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()

			status := gjson.GetBytes(body, "status").String()
			if resp.StatusCode == http.StatusOK && (status == "ok" || status == "") {
				return nil
			}
			if status == "loading model" || resp.StatusCode == http.StatusServiceUnavailable {
				time.Sleep(1 * time.Second)
				continue
			}
		}

		s.mu.Lock()
		alive := s.running
		s.mu.Unlock()
		if !alive {
			return fmt.Errorf("llama-server process died during startup, check model path: %s", s.ModelPath)
		}

		time.Sleep(500 * time.Millisecond)
	}

	return fmt.Errorf("llama-server startup timed out after %v, model may be too large for available RAM", timeout)
}

// Stop kills a server this process spawned. Attached servers are left alone.
func (s *LlamaServer) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	if s.cmd != nil && s.cmd.Process != nil {
		logger.Info("Stopping llama-server (PID: %d)", s.cmd.Process.Pid)
		_ = s.cmd.Process.Kill()
	}

	s.running = false
	return nil
}

func (s *LlamaServer) Close() error { return s.Stop() }

func (s *LlamaServer) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Generate sends one chat completion with the schema as a grammar constraint
func (s *LlamaServer) Generate(ctx context.Context, req Request) (string, error) {
	if err := s.Start(ctx); err != nil {
		return "", err
	}

	var messages []ChatMessage
	if req.System != "" {
		messages = append(messages, ChatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, ChatMessage{Role: "user", Content: req.Prompt})

	reqBody := ChatRequest{
		Messages:    messages,
		Temperature: s.Temperature,
		MaxTokens:   s.MaxTokens,
		ResponseFormat: map[string]any{
			"type": "json_object",
		},
	}
	if req.Schema != nil {
		reqBody.ResponseFormat["schema"] = req.Schema
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("server error %d: %s", resp.StatusCode, string(body))
	}
	if !gjson.ValidBytes(body) {
		return "", fmt.Errorf("failed to parse response: not JSON")
	}

	return strings.TrimSpace(gjson.GetBytes(body, "choices.0.message.content").String()), nil
}
