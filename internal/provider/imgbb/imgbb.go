// Package imgbb publishes generated images to ImgBB.
package imgbb

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/ashureev/modelchat/internal/provider"
	"github.com/ashureev/modelchat/internal/resilience"
)

// DefaultBaseURL is the ImgBB API root.
const DefaultBaseURL = "https://api.imgbb.com"

// MaxImageBytes is the largest payload ImgBB accepts.
const MaxImageBytes = 32 << 20

var supportedExt = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".bmp": true, ".svg": true, ".webp": true,
}

// Uploader implements provider.ImageUploader.
type Uploader struct {
	baseURL string
	apiKey  string
	http    *http.Client
	breaker *resilience.Breaker
}

// Option configures an Uploader.
type Option func(*Uploader)

// WithBaseURL overrides DefaultBaseURL.
func WithBaseURL(u string) Option {
	return func(up *Uploader) { up.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(up *Uploader) { up.http = c }
}

// WithBreaker replaces the default circuit breaker.
func WithBreaker(b *resilience.Breaker) Option {
	return func(up *Uploader) { up.breaker = b }
}

// New constructs an Uploader.
func New(apiKey string, opts ...Option) (*Uploader, error) {
	if apiKey == "" {
		return nil, errors.New("imgbb: api key must not be empty")
	}
	up := &Uploader{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 60 * time.Second},
	}
	for _, o := range opts {
		o(up)
	}
	if up.breaker == nil {
		up.breaker = resilience.NewBreaker(resilience.BreakerConfig{Name: "imgbb"})
	}
	return up, nil
}

type uploadResponse struct {
	Success bool `json:"success"`
	Data    struct {
		URL        string `json:"url"`
		DisplayURL string `json:"display_url"`
	} `json:"data"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// CheckImage validates size and file extension before any I/O.
func CheckImage(data []byte, name string) error {
	if len(data) == 0 {
		return errors.New("image is empty")
	}
	if len(data) > MaxImageBytes {
		return fmt.Errorf("image is %d bytes, limit is %d", len(data), MaxImageBytes)
	}
	ext := strings.ToLower(filepath.Ext(name))
	if !supportedExt[ext] {
		return fmt.Errorf("unsupported image format %q", ext)
	}
	return nil
}

// Upload implements provider.ImageUploader. Every error wraps provider.ErrUpload.
func (up *Uploader) Upload(ctx context.Context, data []byte, suggestedName string) (string, error) {
	if err := CheckImage(data, suggestedName); err != nil {
		return "", fmt.Errorf("%w: imgbb: %w", provider.ErrUpload, err)
	}

	var link string
	err := up.breaker.Execute(func() error {
		var err error
		link, err = up.post(ctx, data, suggestedName)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("%w: imgbb: %w", provider.ErrUpload, err)
	}
	return link, nil
}

func (up *Uploader) post(ctx context.Context, data []byte, name string) (string, error) {
	form := url.Values{}
	form.Set("image", base64.StdEncoding.EncodeToString(data))
	form.Set("name", strings.TrimSuffix(name, filepath.Ext(name)))

	endpoint := up.baseURL + "/1/upload?key=" + url.QueryEscape(up.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := up.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var parsed uploadResponse
		_ = json.Unmarshal(body, &parsed)
		msg := parsed.Error.Message
		if msg == "" {
			msg = strings.TrimSpace(string(body))
		}
		return "", &provider.StatusError{Backend: "imgbb", StatusCode: resp.StatusCode, Message: msg}
	}

	var parsed uploadResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if !parsed.Success || parsed.Data.URL == "" {
		return "", errors.New("response carries no url")
	}
	return parsed.Data.URL, nil
}
