package openai

import (
	"context"
	"encoding/base64"
	"fmt"

	oai "github.com/openai/openai-go"

	"github.com/ashureev/modelchat/internal/provider"
)

// Images implements provider.ImageSynthesizer over the image generation
// endpoint.
type Images struct {
	name   string
	client oai.Client
}

// NewImages constructs an image generation client.
func NewImages(name, apiKey string, opts ...Option) (*Images, error) {
	client, err := newClient(name, apiKey, opts)
	if err != nil {
		return nil, err
	}
	return &Images{name: name, client: client}, nil
}

// Synthesize implements provider.ImageSynthesizer.
func (im *Images) Synthesize(ctx context.Context, req provider.ImageRequest) ([]byte, error) {
	resp, err := im.client.Images.Generate(ctx, oai.ImageGenerateParams{
		Prompt:         req.Prompt,
		Model:          oai.ImageModel(req.Model),
		N:              oai.Int(1),
		ResponseFormat: oai.ImageGenerateParamsResponseFormatB64JSON,
	})
	if err != nil {
		return nil, classify(im.name, err)
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return nil, fmt.Errorf("%w: %s: no image data", provider.ErrEmptyResult, im.name)
	}
	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: decode image: %w", provider.ErrMalformedResponse, im.name, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s: decoded image is empty", provider.ErrEmptyResult, im.name)
	}
	return data, nil
}
