package synth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"agentlayer/internal/llm"
	"agentlayer/internal/prompt"
	"agentlayer/internal/rules"
	"agentlayer/internal/sysconfig"
)

var (
	// ErrBusy is returned when a synthesis is already in flight
	ErrBusy = errors.New("synthesis already in progress")
	// ErrService wraps failures of the external generation call
	ErrService = errors.New("generation service failed")
)

// Client turns a configuration into a rule set with one generation call
type Client struct {
	gen     llm.Generator
	timeout time.Duration
}

// NewClient wraps gen. A zero timeout lets a call run as long as ctx allows.
func NewClient(gen llm.Generator, timeout time.Duration) *Client {
	return &Client{gen: gen, timeout: timeout}
}

// Request builds the generation request for cfg without sending it
func Request(cfg sysconfig.Config) llm.Request {
	return llm.Request{
		System:     prompt.SystemInstruction(cfg.Persona, cfg.Strictness),
		Prompt:     prompt.Build(cfg),
		SchemaName: rules.SchemaName,
		Schema:     rules.Schema(),
	}
}

// Synthesize sends one request and parses the answer. Nothing is retried.
func (c *Client) Synthesize(ctx context.Context, cfg sysconfig.Config) (*rules.RuleSet, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	log := logrus.WithFields(logrus.Fields{
		"request_id": uuid.NewString(),
		"provider":   c.gen.Name(),
		"shell":      cfg.Shell,
		"persona":    cfg.Persona,
	})
	start := time.Now()
	log.Info("synthesis started")

	raw, err := c.gen.Generate(ctx, Request(cfg))
	if err != nil {
		log.WithError(err).Error("generation call failed")
		return nil, fmt.Errorf("%w: %w", ErrService, err)
	}
	log.WithField("bytes", len(raw)).Debug("response received")

	rs, err := rules.Parse(raw)
	if err != nil {
		log.WithError(err).Error("response rejected")
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"rules":    len(rs.Rules),
		"duration": time.Since(start).Round(time.Millisecond),
	}).Info("synthesis finished")
	return rs, nil
}

// Session holds the configuration and the last good rule set for the
// lifetime of a dashboard, guarded by the loading flag.
type Session struct {
	client *Client

	mu      sync.Mutex
	config  sysconfig.Config
	ruleSet *rules.RuleSet
	loading bool
}

func NewSession(client *Client, cfg sysconfig.Config) *Session {
	return &Session{client: client, config: cfg}
}

// Config returns a copy of the current configuration
func (s *Session) Config() sysconfig.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config
}

// Update applies fn to the configuration in one step
func (s *Session) Update(fn func(*sysconfig.Config)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.config)
}

// RuleSet returns the last successful result, nil before the first one
func (s *Session) RuleSet() *rules.RuleSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ruleSet
}

// Loading reports whether a synthesis is in flight
func (s *Session) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Generate runs one synthesis with the current configuration. A second
// call while one is running gets ErrBusy; it is neither queued nor
// does it cancel the first. On failure the previous rule set stays.
func (s *Session) Generate(ctx context.Context) (*rules.RuleSet, error) {
	s.mu.Lock()
	if s.loading {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	s.loading = true
	cfg := s.config
	s.mu.Unlock()

	var (
		rs  *rules.RuleSet
		err error
	)
	defer func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.loading = false
		if err == nil && rs != nil {
			s.ruleSet = rs
		}
	}()

	rs, err = s.client.Synthesize(ctx, cfg)
	return rs, err
}

// UserMessage is the single notice shown for any synthesis failure
func UserMessage(err error) string {
	if errors.Is(err, ErrBusy) {
		return "Synthesis already running."
	}
	return "Error generating rules. Please check your API key."
}
