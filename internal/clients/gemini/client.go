// Package gemini provides a streaming client for the Google Gemini API
package gemini

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"

	"google.golang.org/genai"

	"github.com/bobmcallan/koru/internal/common"
	"github.com/bobmcallan/koru/internal/interfaces"
	"github.com/bobmcallan/koru/internal/models"
)

const DefaultModel = "gemini-2.0-flash"

// Client implements the GenerationClient interface
type Client struct {
	client      *genai.Client
	model       string
	temperature float32
	baseURL     string
	logger      *common.Logger
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithModel sets the model to use
func WithModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithTemperature sets the fixed sampling temperature
func WithTemperature(t float32) ClientOption {
	return func(c *Client) {
		c.temperature = t
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithBaseURL overrides the API endpoint
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// NewClient creates a new Gemini client
func NewClient(ctx context.Context, apiKey string, opts ...ClientOption) (*Client, error) {
	c := &Client{
		model:       DefaultModel,
		temperature: 0.7,
		logger:      common.NewSilentLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}

	config := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if c.baseURL != "" {
		config.HTTPOptions.BaseURL = c.baseURL
	}

	genaiClient, err := genai.NewClient(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	c.client = genaiClient

	return c, nil
}

// buildContents maps the request history and new message onto genai
// turns, oldest-first with the new message appended last.
func buildContents(req *models.GenerationRequest) []*genai.Content {
	contents := make([]*genai.Content, 0, len(req.History)+1)
	for _, msg := range req.History {
		var role genai.Role = genai.RoleUser
		if msg.Role == models.ChatRoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(msg.Content, role))
	}
	return append(contents, genai.NewContentFromText(req.Message, genai.RoleUser))
}

// GenerateStream starts a streamed generation call with the assembled
// system instructions, prior history (oldest-first), and the new message
// appended last. No per-turn output token cap is set.
func (c *Client) GenerateStream(ctx context.Context, req *models.GenerationRequest) (interfaces.GenerationStream, error) {
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(c.temperature),
	}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	c.logger.Debug().
		Str("model", c.model).
		Int("history", len(req.History)).
		Msg("Starting streamed generation")

	seq := c.client.Models.GenerateContentStream(ctx, c.model, buildContents(req), config)
	next, stop := iter.Pull2(seq)
	st := &stream{next: next, stop: stop}

	// The iterator delivers transport and API failures through its first
	// item, not at call time. Pull it now so the caller can translate
	// provider errors before committing a response.
	chunk, err := st.Next()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return st, nil
		}
		return nil, err
	}
	st.pending = chunk
	st.hasPending = true
	return st, nil
}

// stream adapts the genai response iterator to GenerationStream. The
// first chunk is pulled eagerly by GenerateStream and replayed here.
type stream struct {
	next       func() (*genai.GenerateContentResponse, error, bool)
	stop       func()
	stopped    bool
	pending    string
	hasPending bool
}

func (s *stream) Next() (string, error) {
	if s.hasPending {
		s.hasPending = false
		return s.pending, nil
	}
	for {
		resp, err, ok := s.next()
		if !ok {
			s.Close()
			return "", io.EOF
		}
		if err != nil {
			s.Close()
			return "", err
		}
		text := extractText(resp)
		if text == "" {
			// Chunks carrying only metadata (e.g. usage) are skipped.
			continue
		}
		return text, nil
	}
}

func (s *stream) Close() error {
	if !s.stopped {
		s.stopped = true
		s.stop()
	}
	return nil
}

// extractText concatenates the text parts of a streamed response chunk.
func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	text := ""
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			text += part.Text
		}
	}
	return text
}

// Close closes the client
func (c *Client) Close() error {
	// The genai client doesn't have a Close method
	return nil
}

// Ensure Client implements GenerationClient
var _ interfaces.GenerationClient = (*Client)(nil)
