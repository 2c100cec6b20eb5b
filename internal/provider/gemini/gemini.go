// Package gemini adapts the Gemini API to provider.TextProvider.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/ashureev/modelchat/internal/provider"
)

// Provider implements provider.TextProvider.
type Provider struct {
	client *genai.Client
}

type config struct {
	baseURL string
	timeout time.Duration
}

// Option configures a Provider.
type Option func(*config)

// WithBaseURL overrides the API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// New constructs a Provider. apiKey must be non-empty.
func New(ctx context.Context, apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: apiKey must not be empty")
	}
	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	cc := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.timeout > 0 {
		cc.HTTPClient = &http.Client{Timeout: cfg.timeout}
	}
	if cfg.baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.baseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &Provider{client: client}, nil
}

// Complete implements provider.TextProvider.
func (p *Provider) Complete(ctx context.Context, req provider.CompletionRequest) (*provider.CompletionResult, error) {
	if req.Model == "" {
		return nil, fmt.Errorf("gemini: model must not be empty")
	}
	contents, system, err := convertContents(req)
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}

	gc := &genai.GenerateContentConfig{}
	if system != "" {
		gc.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if req.Temperature != 0 {
		t := float32(req.Temperature)
		gc.Temperature = &t
	}
	if req.MaxTokens > 0 {
		gc.MaxOutputTokens = int32(req.MaxTokens)
	}

	resp, err := p.client.Models.GenerateContent(ctx, req.Model, contents, gc)
	if err != nil {
		return nil, classify(err)
	}
	text := responseText(resp)
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: gemini: no text content", provider.ErrMalformedResponse)
	}
	model := req.Model
	if resp.ModelVersion != "" {
		model = resp.ModelVersion
	}
	return &provider.CompletionResult{Text: text, Model: model}, nil
}

// convertContents maps messages onto Gemini contents. Assistant turns use the
// "model" role and system messages join the system instruction.
func convertContents(req provider.CompletionRequest) ([]*genai.Content, string, error) {
	var system []string
	if req.SystemPrompt != "" {
		system = append(system, req.SystemPrompt)
	}
	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, m := range req.Messages {
		var role string
		switch m.Role {
		case provider.RoleUser:
			role = genai.RoleUser
		case provider.RoleAssistant:
			role = genai.RoleModel
		case provider.RoleSystem:
			system = append(system, m.Content)
			continue
		default:
			return nil, "", fmt.Errorf("unknown message role %q", m.Role)
		}
		contents = append(contents, &genai.Content{
			Parts: []*genai.Part{{Text: m.Content}},
			Role:  role,
		})
	}
	return contents, strings.Join(system, "\n\n"), nil
}

// responseText concatenates non-thought text parts of every candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var sb strings.Builder
	for _, c := range resp.Candidates {
		if c == nil || c.Content == nil {
			continue
		}
		for _, part := range c.Content.Parts {
			if part == nil || part.Thought {
				continue
			}
			sb.WriteString(part.Text)
		}
	}
	return sb.String()
}

func classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return provider.Wrap(provider.ClassifyStatus(apiErr.Code), fmt.Errorf("gemini: %w", err))
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return provider.Wrap(provider.ClassifyStatus(apiErrPtr.Code), fmt.Errorf("gemini: %w", err))
	}
	return provider.Wrap(provider.ErrTransport, fmt.Errorf("gemini: %w", err))
}
