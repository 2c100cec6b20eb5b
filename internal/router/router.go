// Package router implements the completion router: it sends a chat message to
// the backend of the requested model and recovers from upstream failures with
// an ordered fallback chain, local canned replies and, for image models, an
// inline image when hosting fails.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ashureev/modelchat/internal/domain"
	"github.com/ashureev/modelchat/internal/observe"
	"github.com/ashureev/modelchat/internal/provider"
	"github.com/ashureev/modelchat/internal/resilience"
)

var (
	// ErrEmptyMessage rejects blank input before any outbound call.
	ErrEmptyMessage = errors.New("message must not be empty")
	// ErrUnknownModel is returned for a model id outside the catalog.
	ErrUnknownModel = errors.New("unknown model")
	// ErrNoModels is returned by New when no catalog entry has a backend.
	ErrNoModels = errors.New("no model in the catalog has a configured backend")
)

// Source tells where the text of an Outcome came from.
type Source string

// Outcome sources.
const (
	SourceProvider    Source = "provider"
	SourceFallback    Source = "fallback"
	SourceImage       Source = "image"
	SourcePersona     Source = "persona"
	SourceCanned      Source = "canned"
	SourceUnavailable Source = "unavailable"
)

// Request is one user turn to route.
type Request struct {
	Message string
	// History is prior conversation in order. It is not modified.
	History []domain.Message
	// Model is the requested model id; empty selects the default model.
	Model string
	// Locale selects the language of generated text; empty selects the default.
	Locale Locale
}

// Outcome is the reply to a Request.
type Outcome struct {
	Text string `json:"message"`
	// Notice is the provenance note, set when a fallback model answered.
	Notice string `json:"notice,omitempty"`
	// Model is the model that produced Text.
	Model          string `json:"model"`
	RequestedModel string `json:"requestedModel"`
	Source         Source `json:"source"`
	FallbackUsed   bool   `json:"fallback"`
}

// Render returns the text shown to the user, including any notice.
func (o *Outcome) Render() string {
	if o.Notice == "" {
		return o.Text
	}
	return o.Text + "\n\n" + o.Notice
}

// Backends are the collaborators of a Router. Text and Images are keyed by
// the Provider field of model specs.
type Backends struct {
	Text     map[string]provider.TextProvider
	Images   map[string]provider.ImageSynthesizer
	Uploader provider.ImageUploader
	Persona  provider.PersonaBackend
}

// Options tune a Router. Zero values get defaults where noted.
type Options struct {
	// DefaultModel serves requests without a model. Default: first text model.
	DefaultModel string
	// FallbackModels is the ordered chain tried after a rate limit.
	FallbackModels []string
	// HistoryWindow bounds the history sent to fallback candidates. Default: 6.
	HistoryWindow int
	// CallTimeout bounds every outbound call. Zero disables it.
	CallTimeout time.Duration
	Temperature float64
	MaxTokens   int
	// ImageModel renders image requests sent to the persona model.
	ImageModel string
	// DefaultLocale applies when a request has none. Default: tr.
	DefaultLocale Locale
	// Classifier detects image requests. Default: KeywordImageRequest.
	Classifier Classifier
	// Cache stores optimized prompts. Optional.
	Cache PromptCache
	// Metrics records router activity. Default: observe.DefaultMetrics().
	Metrics *observe.Metrics
	// Breaker is the template of the per-model circuit breakers.
	Breaker resilience.BreakerConfig
}

// Router routes chat messages to model backends.
type Router struct {
	models   map[string]domain.ModelSpec
	order    []domain.ModelSpec
	backends Backends
	opts     Options
	breakers *resilience.BreakerSet
	metrics  *observe.Metrics
}

// New builds a Router over catalog. Models whose backend is missing are
// dropped with a log line; unknown fallback entries are ignored.
func New(catalog []domain.ModelSpec, backends Backends, opts Options) (*Router, error) {
	r := &Router{
		models:   make(map[string]domain.ModelSpec, len(catalog)),
		backends: backends,
	}
	for _, spec := range catalog {
		if !r.hasBackend(spec) {
			slog.Info("model disabled, backend not configured", "model", spec.ID, "provider", spec.Provider)
			continue
		}
		if _, dup := r.models[spec.ID]; dup {
			continue
		}
		r.models[spec.ID] = spec
		r.order = append(r.order, spec)
	}
	if len(r.order) == 0 {
		return nil, ErrNoModels
	}

	if opts.HistoryWindow <= 0 {
		opts.HistoryWindow = 6
	}
	if _, ok := noticeTable[opts.DefaultLocale]; !ok {
		opts.DefaultLocale = LocaleTR
	}
	if opts.Classifier == nil {
		opts.Classifier = KeywordImageRequest
	}
	if _, ok := r.models[opts.DefaultModel]; !ok {
		def := r.order[0].ID
		for _, spec := range r.order {
			if spec.Kind == domain.KindText {
				def = spec.ID
				break
			}
		}
		if opts.DefaultModel != "" {
			slog.Warn("default model unavailable, using another", "configured", opts.DefaultModel, "model", def)
		}
		opts.DefaultModel = def
	}
	if img, ok := r.models[opts.ImageModel]; opts.ImageModel != "" && (!ok || !img.IsImage()) {
		slog.Warn("image model unavailable, persona image requests disabled", "model", opts.ImageModel)
		opts.ImageModel = ""
	}

	r.metrics = opts.Metrics
	if r.metrics == nil {
		r.metrics = observe.DefaultMetrics()
	}
	tmpl := opts.Breaker
	if tmpl.IsFailure == nil {
		tmpl.IsFailure = countsAgainstBreaker
	}
	r.breakers = resilience.NewBreakerSet(tmpl)
	r.opts = opts
	return r, nil
}

// countsAgainstBreaker excludes throttling and caller cancellation, which say
// nothing about backend health.
func countsAgainstBreaker(err error) bool {
	return err != nil && !provider.IsRateLimited(err) && !errors.Is(err, context.Canceled)
}

func (r *Router) hasBackend(spec domain.ModelSpec) bool {
	switch spec.Kind {
	case domain.KindImage:
		return r.backends.Images[spec.Provider] != nil
	case domain.KindPersona:
		return r.backends.Persona != nil
	default:
		return r.backends.Text[spec.Provider] != nil
	}
}

// Models returns the available catalog in configuration order.
func (r *Router) Models() []domain.ModelSpec {
	out := make([]domain.ModelSpec, len(r.order))
	copy(out, r.order)
	return out
}

// DefaultModel returns the model used when a request names none.
func (r *Router) DefaultModel() string {
	return r.opts.DefaultModel
}

// DefaultLocale returns the locale used when a request names none.
func (r *Router) DefaultLocale() Locale {
	return r.opts.DefaultLocale
}

// Model looks up an available model.
func (r *Router) Model(id string) (domain.ModelSpec, bool) {
	spec, ok := r.models[id]
	return spec, ok
}

// Complete routes one message. Upstream failures never surface as errors:
// they degrade to a fallback answer, a canned reply or the unavailable
// message. The returned error is ErrEmptyMessage, ErrUnknownModel or the
// context's error.
func (r *Router) Complete(ctx context.Context, req Request) (*Outcome, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, ErrEmptyMessage
	}
	if req.Model == "" {
		req.Model = r.opts.DefaultModel
	}
	spec, ok := r.models[req.Model]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModel, req.Model)
	}
	if _, ok := noticeTable[req.Locale]; !ok {
		req.Locale = r.opts.DefaultLocale
	}

	ctx, span := observe.StartSpan(ctx, "router.Complete", trace.WithAttributes(
		attribute.String("model", spec.ID),
		attribute.String("kind", string(spec.Kind)),
	))
	defer span.End()

	var (
		out *Outcome
		err error
	)
	switch spec.Kind {
	case domain.KindImage:
		out, err = r.completeImage(ctx, spec, req.Message, req.Locale)
	case domain.KindPersona:
		out, err = r.completePersona(ctx, spec, req)
	default:
		out, err = r.completeText(ctx, spec, req)
	}
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	out.RequestedModel = spec.ID
	span.SetAttributes(
		attribute.String("source", string(out.Source)),
		attribute.String("answered_by", out.Model),
	)
	return out, nil
}

func (r *Router) completeText(ctx context.Context, spec domain.ModelSpec, req Request) (*Outcome, error) {
	res, err := r.callText(ctx, spec, r.buildRequest(spec, req, 0))
	if err == nil {
		return &Outcome{Text: res.Text, Model: spec.ID, Source: SourceProvider}, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if provider.IsRateLimited(err) {
		r.log(ctx).Info("model rate limited, starting fallback chain", "model", spec.ID)
		return r.fallback(ctx, spec, req)
	}
	r.log(ctx).Warn("model failed, replying locally", "model", spec.ID, "error", err)
	return r.canned(ctx, req.Message, spec.ID, req.Locale, provider.Kind(err)), nil
}

// fallback tries the configured chain in order and stops at the first
// success. Candidates see a truncated history.
func (r *Router) fallback(ctx context.Context, requested domain.ModelSpec, req Request) (*Outcome, error) {
	candidates := r.fallbackCandidates(requested.ID)
	res, idx, err := resilience.FirstSuccess(ctx, candidates,
		func(m domain.ModelSpec) string { return m.ID },
		func(ctx context.Context, m domain.ModelSpec) (*provider.CompletionResult, error) {
			return r.callText(ctx, m, r.buildRequest(m, req, r.opts.HistoryWindow))
		},
	)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		r.metrics.RecordFallback(ctx, requested.ID, "exhausted")
		r.log(ctx).Warn("fallback chain exhausted", "model", requested.ID, "candidates", len(candidates), "error", err)
		return &Outcome{Text: UnavailableMessage(req.Locale), Model: requested.ID, Source: SourceUnavailable}, nil
	}

	winner := candidates[idx]
	r.metrics.RecordFallback(ctx, requested.ID, "recovered")
	r.log(ctx).Info("fallback model answered", "requested", requested.ID, "model", winner.ID)
	return &Outcome{
		Text:         res.Text,
		Notice:       FallbackNotice(displayName(requested), displayName(winner), req.Locale),
		Model:        winner.ID,
		Source:       SourceFallback,
		FallbackUsed: true,
	}, nil
}

// fallbackCandidates filters the configured chain to distinct available text
// models other than requested.
func (r *Router) fallbackCandidates(requested string) []domain.ModelSpec {
	seen := map[string]bool{requested: true}
	out := make([]domain.ModelSpec, 0, len(r.opts.FallbackModels))
	for _, id := range r.opts.FallbackModels {
		if seen[id] {
			continue
		}
		seen[id] = true
		spec, ok := r.models[id]
		if !ok || spec.Kind != domain.KindText {
			continue
		}
		out = append(out, spec)
	}
	return out
}

// callText performs one text completion under the model's breaker and the
// per-call timeout.
func (r *Router) callText(ctx context.Context, spec domain.ModelSpec, creq provider.CompletionRequest) (*provider.CompletionResult, error) {
	backend := r.backends.Text[spec.Provider]
	callCtx, cancel := r.callContext(ctx)
	defer cancel()

	start := time.Now()
	var res *provider.CompletionResult
	err := r.breakers.Get(spec.ID).Execute(func() error {
		var err error
		res, err = backend.Complete(callCtx, creq)
		if err == nil && res == nil {
			err = fmt.Errorf("%w: %s returned no result", provider.ErrMalformedResponse, spec.Provider)
		}
		return err
	})
	r.metrics.RecordProviderCall(ctx, spec.Provider, spec.ID, statusOf(err), time.Since(start))
	if err != nil {
		return nil, err
	}
	return res, nil
}

// buildRequest assembles system preamble, history and the new message in
// that order. window > 0 keeps only the most recent window history entries.
func (r *Router) buildRequest(spec domain.ModelSpec, req Request, window int) provider.CompletionRequest {
	history := req.History
	if window > 0 && len(history) > window {
		history = history[len(history)-window:]
	}
	msgs := make([]provider.Message, 0, len(history)+1)
	msgs = append(msgs, toProviderMessages(history)...)
	msgs = append(msgs, provider.Message{Role: provider.RoleUser, Content: req.Message})
	return provider.CompletionRequest{
		Model:        spec.ID,
		SystemPrompt: SystemPrompt(displayName(spec), req.Locale),
		Messages:     msgs,
		Temperature:  r.opts.Temperature,
		MaxTokens:    r.opts.MaxTokens,
	}
}

func toProviderMessages(history []domain.Message) []provider.Message {
	out := make([]provider.Message, 0, len(history))
	for _, m := range history {
		if !m.Role.Valid() {
			continue
		}
		out = append(out, provider.Message{Role: string(m.Role), Content: m.Content})
	}
	return out
}

func (r *Router) canned(ctx context.Context, message, model string, l Locale, reason string) *Outcome {
	r.metrics.RecordCanned(ctx, reason)
	return &Outcome{Text: CannedResponse(message, model, l), Model: model, Source: SourceCanned}
}

func (r *Router) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.opts.CallTimeout > 0 {
		return context.WithTimeout(ctx, r.opts.CallTimeout)
	}
	return context.WithCancel(ctx)
}

func (r *Router) log(ctx context.Context) *slog.Logger {
	return observe.Logger(ctx).With("component", "router")
}

func statusOf(err error) string {
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return "circuit_open"
	}
	return provider.Kind(err)
}

func displayName(spec domain.ModelSpec) string {
	if spec.Name != "" {
		return spec.Name
	}
	return spec.ID
}
