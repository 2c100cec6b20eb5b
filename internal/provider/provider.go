// Package provider defines the collaborators the completion router talks to:
// text completion backends, image synthesizers, an image host and the persona
// backend. Concrete adapters live in sub-packages.
package provider

import (
	"context"
)

// Message is one entry of the ordered message list sent to a text backend.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Roles understood by text backends.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// CompletionRequest is one outbound call to a text backend. SystemPrompt is
// sent ahead of Messages, which are in conversation order with the new user
// message last.
type CompletionRequest struct {
	Model        string
	SystemPrompt string
	Messages     []Message
	Temperature  float64
	MaxTokens    int
}

// CompletionResult is the successful outcome of a CompletionRequest.
type CompletionResult struct {
	Text  string
	Model string
}

// TextProvider completes chat conversations.
type TextProvider interface {
	// Complete fails with errors wrapping ErrRateLimited, ErrTransport or
	// ErrMalformedResponse.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResult, error)
}

// ImageRequest asks a synthesizer for one image.
type ImageRequest struct {
	Model  string
	Prompt string
}

// ImageSynthesizer turns a prompt into encoded image bytes.
type ImageSynthesizer interface {
	// Synthesize fails with errors wrapping ErrTransport, ErrRateLimited or
	// ErrEmptyResult.
	Synthesize(ctx context.Context, req ImageRequest) ([]byte, error)
}

// ImageUploader publishes image bytes and returns a public URL.
type ImageUploader interface {
	// Upload fails with errors wrapping ErrUpload.
	Upload(ctx context.Context, data []byte, suggestedName string) (string, error)
}

// PersonaBackend is the auxiliary conversational backend of the persona model.
type PersonaBackend interface {
	Chat(ctx context.Context, message string, history []Message) (string, error)
}

// TextProviderFunc adapts a function to TextProvider.
type TextProviderFunc func(ctx context.Context, req CompletionRequest) (*CompletionResult, error)

// Complete implements TextProvider.
func (f TextProviderFunc) Complete(ctx context.Context, req CompletionRequest) (*CompletionResult, error) {
	return f(ctx, req)
}
