// Package mock provides recording test doubles for the provider interfaces.
//
// Fields may be set before the first call; mutating them during a concurrent
// call is the caller's responsibility. Call records are guarded and read
// through accessor methods.
//
//	tp := &mock.TextProvider{
//	    Responses: map[string]string{"gpt-4o": "Merhaba!"},
//	    Errs:      map[string]error{"gpt-4o-mini": provider.ErrRateLimited},
//	}
package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ashureev/modelchat/internal/provider"
)

// wait blocks for d or until ctx is done.
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// TextProvider is a mock provider.TextProvider keyed by model id.
type TextProvider struct {
	mu sync.Mutex

	// Responses maps a model id to the reply text.
	Responses map[string]string
	// Errs maps a model id to the error returned for it. Errs wins over Responses.
	Errs map[string]error
	// Default is returned for models absent from both maps. Empty means the
	// reply echoes the model id.
	Default string
	// Delay is waited before answering, honouring ctx.
	Delay time.Duration

	calls []provider.CompletionRequest
}

// Complete implements provider.TextProvider.
func (p *TextProvider) Complete(ctx context.Context, req provider.CompletionRequest) (*provider.CompletionResult, error) {
	p.mu.Lock()
	p.calls = append(p.calls, req)
	err, hasErr := p.Errs[req.Model]
	text, hasText := p.Responses[req.Model]
	def, delay := p.Default, p.Delay
	p.mu.Unlock()

	if werr := wait(ctx, delay); werr != nil {
		return nil, werr
	}
	if hasErr {
		return nil, err
	}
	if !hasText {
		text = def
		if text == "" {
			text = "reply from " + req.Model
		}
	}
	return &provider.CompletionResult{Text: text, Model: req.Model}, nil
}

// Calls returns a copy of every request received, in order.
func (p *TextProvider) Calls() []provider.CompletionRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]provider.CompletionRequest, len(p.calls))
	copy(out, p.calls)
	return out
}

// Models returns the model id of every request received, in order.
func (p *TextProvider) Models() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.calls))
	for i, c := range p.calls {
		out[i] = c.Model
	}
	return out
}

// ImageSynthesizer is a mock provider.ImageSynthesizer.
type ImageSynthesizer struct {
	mu sync.Mutex

	// Image is returned on success.
	Image []byte
	// Err, if non-nil, is returned instead of Image.
	Err error

	calls []provider.ImageRequest
}

// Synthesize implements provider.ImageSynthesizer.
func (s *ImageSynthesizer) Synthesize(ctx context.Context, req provider.ImageRequest) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, req)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Image, nil
}

// Calls returns a copy of every request received.
func (s *ImageSynthesizer) Calls() []provider.ImageRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]provider.ImageRequest, len(s.calls))
	copy(out, s.calls)
	return out
}

// UploadCall records one Upload invocation.
type UploadCall struct {
	Data []byte
	Name string
}

// Uploader is a mock provider.ImageUploader.
type Uploader struct {
	mu sync.Mutex

	// URL is returned on success. Empty means "https://img.example/<name>".
	URL string
	// Err, if non-nil, is returned wrapped in provider.ErrUpload.
	Err error

	calls []UploadCall
}

// Upload implements provider.ImageUploader.
func (u *Uploader) Upload(_ context.Context, data []byte, name string) (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.calls = append(u.calls, UploadCall{Data: data, Name: name})
	if u.Err != nil {
		return "", fmt.Errorf("%w: %w", provider.ErrUpload, u.Err)
	}
	if u.URL != "" {
		return u.URL, nil
	}
	return "https://img.example/" + name, nil
}

// Calls returns a copy of every upload received.
func (u *Uploader) Calls() []UploadCall {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]UploadCall, len(u.calls))
	copy(out, u.calls)
	return out
}

// PersonaCall records one Chat invocation.
type PersonaCall struct {
	Message string
	History []provider.Message
}

// Persona is a mock provider.PersonaBackend.
type Persona struct {
	mu sync.Mutex

	// Reply is returned on success.
	Reply string
	// ReplyFunc, if set, computes the reply and wins over Reply.
	ReplyFunc func(message string) (string, error)
	// Err, if non-nil, is returned instead of Reply.
	Err error

	calls []PersonaCall
}

// Chat implements provider.PersonaBackend.
func (p *Persona) Chat(ctx context.Context, message string, history []provider.Message) (string, error) {
	p.mu.Lock()
	p.calls = append(p.calls, PersonaCall{Message: message, History: history})
	fn, reply, err := p.ReplyFunc, p.Reply, p.Err
	p.mu.Unlock()

	if cerr := ctx.Err(); cerr != nil {
		return "", cerr
	}
	if fn != nil {
		return fn(message)
	}
	if err != nil {
		return "", err
	}
	return reply, nil
}

// Calls returns a copy of every call received.
func (p *Persona) Calls() []PersonaCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]PersonaCall, len(p.calls))
	copy(out, p.calls)
	return out
}
