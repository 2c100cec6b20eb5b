package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ashureev/modelchat/internal/config"
	"github.com/ashureev/modelchat/internal/provider"
	"github.com/ashureev/modelchat/internal/provider/anthropic"
	"github.com/ashureev/modelchat/internal/provider/cloudflare"
	"github.com/ashureev/modelchat/internal/provider/gemini"
	"github.com/ashureev/modelchat/internal/provider/imgbb"
	"github.com/ashureev/modelchat/internal/provider/openai"
	"github.com/ashureev/modelchat/internal/provider/persona"
	"github.com/ashureev/modelchat/internal/router"
)

// readinessTarget names a backend endpoint probed by /readyz.
type readinessTarget struct {
	name string
	url  string
}

// buildBackends registers every provider whose credentials are configured.
// Providers without credentials are skipped; the router then hides their
// models.
func buildBackends(ctx context.Context, p config.ProvidersConfig) (router.Backends, []readinessTarget, error) {
	b := router.Backends{
		Text:   make(map[string]provider.TextProvider),
		Images: make(map[string]provider.ImageSynthesizer),
	}
	var targets []readinessTarget

	if p.GitHubToken != "" {
		c, err := openai.NewChat("github", p.GitHubToken, openai.WithBaseURL(withSlash(p.GitHubModelsBaseURL)))
		if err != nil {
			return b, nil, fmt.Errorf("github models: %w", err)
		}
		b.Text["github"] = c
	}
	if p.OpenAIAPIKey != "" {
		var opts []openai.Option
		if p.OpenAIBaseURL != "" {
			opts = append(opts, openai.WithBaseURL(withSlash(p.OpenAIBaseURL)))
		}
		c, err := openai.NewChat("openai", p.OpenAIAPIKey, opts...)
		if err != nil {
			return b, nil, fmt.Errorf("openai: %w", err)
		}
		b.Text["openai"] = c
		img, err := openai.NewImages("openai", p.OpenAIAPIKey, opts...)
		if err != nil {
			return b, nil, fmt.Errorf("openai images: %w", err)
		}
		b.Images["openai"] = img
	}
	if p.OllamaBaseURL != "" {
		// Ollama ignores the key but the client requires one.
		c, err := openai.NewChat("ollama", "ollama", openai.WithBaseURL(withSlash(strings.TrimRight(p.OllamaBaseURL, "/")+"/v1")))
		if err != nil {
			return b, nil, fmt.Errorf("ollama: %w", err)
		}
		b.Text["ollama"] = c
		targets = append(targets, readinessTarget{name: "ollama", url: strings.TrimRight(p.OllamaBaseURL, "/") + "/api/version"})
	}
	if p.AnthropicAPIKey != "" {
		c, err := anthropic.New(p.AnthropicAPIKey)
		if err != nil {
			return b, nil, fmt.Errorf("anthropic: %w", err)
		}
		b.Text["anthropic"] = c
	}
	if p.GeminiAPIKey != "" {
		c, err := gemini.New(ctx, p.GeminiAPIKey)
		if err != nil {
			return b, nil, fmt.Errorf("gemini: %w", err)
		}
		b.Text["gemini"] = c
	}
	if p.CloudflareAccountID != "" && p.CloudflareAPIToken != "" {
		var opts []cloudflare.Option
		if p.CloudflareBaseURL != "" {
			opts = append(opts, cloudflare.WithBaseURL(p.CloudflareBaseURL))
		}
		s, err := cloudflare.New(p.CloudflareAccountID, p.CloudflareAPIToken, opts...)
		if err != nil {
			return b, nil, fmt.Errorf("cloudflare: %w", err)
		}
		b.Images["cloudflare"] = s
	}
	if p.ImgBBAPIKey != "" {
		var opts []imgbb.Option
		if p.ImgBBBaseURL != "" {
			opts = append(opts, imgbb.WithBaseURL(p.ImgBBBaseURL))
		}
		u, err := imgbb.New(p.ImgBBAPIKey, opts...)
		if err != nil {
			return b, nil, fmt.Errorf("imgbb: %w", err)
		}
		b.Uploader = u
	}
	if p.PersonaURL != "" {
		c, err := persona.New(p.PersonaURL)
		if err != nil {
			return b, nil, fmt.Errorf("persona: %w", err)
		}
		b.Persona = c
		targets = append(targets, readinessTarget{name: "persona", url: strings.TrimRight(p.PersonaURL, "/") + "/health"})
	}

	slog.Info("Backends configured",
		"text", keys(b.Text),
		"images", keys(b.Images),
		"uploader", b.Uploader != nil,
		"persona", b.Persona != nil,
	)
	return b, targets, nil
}

// probe checks that a self-hosted backend answers at all. Any HTTP response
// counts as reachable.
func probe(client *http.Client, url string) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("unreachable: %w", err)
		}
		_ = resp.Body.Close()
		return nil
	}
}

func withSlash(u string) string {
	if u == "" || strings.HasSuffix(u, "/") {
		return u
	}
	return u + "/"
}

func keys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
