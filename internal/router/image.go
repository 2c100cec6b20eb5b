package router

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ashureev/modelchat/internal/domain"
	"github.com/ashureev/modelchat/internal/provider"
)

// completeImage synthesizes an image for prompt and replies with a markdown
// image. Hosting failure degrades to an inline data URL, synthesis failure to
// a canned reply.
func (r *Router) completeImage(ctx context.Context, spec domain.ModelSpec, prompt string, l Locale) (*Outcome, error) {
	synth := r.backends.Images[spec.Provider]
	callCtx, cancel := r.callContext(ctx)
	start := time.Now()
	data, err := synth.Synthesize(callCtx, provider.ImageRequest{Model: spec.ID, Prompt: prompt})
	cancel()
	if err == nil && len(data) == 0 {
		err = provider.ErrEmptyResult
	}
	r.metrics.RecordProviderCall(ctx, spec.Provider, spec.ID, statusOf(err), time.Since(start))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		r.log(ctx).Warn("image synthesis failed, replying locally", "model", spec.ID, "error", err)
		return r.canned(ctx, prompt, spec.ID, l, "image_"+provider.Kind(err)), nil
	}

	url := r.publish(ctx, data)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	return &Outcome{Text: ImageMarkdown(url), Model: spec.ID, Source: SourceImage}, nil
}

// ImageMarkdown embeds url as a markdown image.
func ImageMarkdown(url string) string {
	return "![Generated Image](" + url + ")"
}

// publish uploads data and returns its public URL, or an inline data URL
// when no uploader is configured or the upload fails.
func (r *Router) publish(ctx context.Context, data []byte) string {
	mime := sniffImageType(data)
	if r.backends.Uploader == nil {
		r.metrics.RecordUpload(ctx, "skipped")
		return DataURL(mime, data)
	}

	name := "image-" + uuid.NewString() + extensionFor(mime)
	callCtx, cancel := r.callContext(ctx)
	defer cancel()
	url, err := r.backends.Uploader.Upload(callCtx, data, name)
	if err != nil || url == "" {
		r.metrics.RecordUpload(ctx, "failed")
		r.log(ctx).Warn("image upload failed, embedding inline", "name", name, "bytes", len(data), "error", err)
		return DataURL(mime, data)
	}
	r.metrics.RecordUpload(ctx, "ok")
	return url
}

// DataURL encodes data as a base64 data URL.
func DataURL(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func sniffImageType(data []byte) string {
	mime := http.DetectContentType(data)
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	if !strings.HasPrefix(mime, "image/") {
		return "image/png"
	}
	return mime
}

func extensionFor(mime string) string {
	switch mime {
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/bmp":
		return ".bmp"
	case "image/svg+xml":
		return ".svg"
	default:
		return ".png"
	}
}

// completePersona serves the persona model. Image requests become an
// optimized prompt for the configured image model; everything else goes to
// the persona backend, degrading to a canned reply.
func (r *Router) completePersona(ctx context.Context, spec domain.ModelSpec, req Request) (*Outcome, error) {
	if img, ok := r.models[r.opts.ImageModel]; ok && r.opts.Classifier.IsImageRequest(req.Message) {
		prompt := r.optimizePrompt(ctx, req.Message)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		r.log(ctx).Info("persona image request", "image_model", img.ID, "prompt", prompt)
		return r.completeImage(ctx, img, prompt, req.Locale)
	}

	callCtx, cancel := r.callContext(ctx)
	start := time.Now()
	reply, err := r.backends.Persona.Chat(callCtx, req.Message, toProviderMessages(req.History))
	cancel()
	if err == nil && strings.TrimSpace(reply) == "" {
		err = provider.ErrMalformedResponse
	}
	r.metrics.RecordProviderCall(ctx, spec.Provider, spec.ID, statusOf(err), time.Since(start))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		r.log(ctx).Warn("persona backend failed, replying locally", "error", err)
		return r.canned(ctx, req.Message, spec.ID, req.Locale, "persona_"+provider.Kind(err)), nil
	}
	return &Outcome{Text: reply, Model: spec.ID, Source: SourcePersona}, nil
}
