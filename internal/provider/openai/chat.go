package openai

import (
	"context"
	"fmt"
	"strings"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/ashureev/modelchat/internal/provider"
)

// Chat implements provider.TextProvider over chat completions.
type Chat struct {
	name   string
	client oai.Client
}

// NewChat constructs a chat completion client. name labels errors and
// metrics, for example "github" or "ollama".
func NewChat(name, apiKey string, opts ...Option) (*Chat, error) {
	client, err := newClient(name, apiKey, opts)
	if err != nil {
		return nil, err
	}
	return &Chat{name: name, client: client}, nil
}

// Complete implements provider.TextProvider.
func (c *Chat) Complete(ctx context.Context, req provider.CompletionRequest) (*provider.CompletionResult, error) {
	params, err := buildParams(req)
	if err != nil {
		return nil, fmt.Errorf("%s: build params: %w", c.name, err)
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, classify(c.name, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: %s: no choices in response", provider.ErrMalformedResponse, c.name)
	}
	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: %s: empty message content", provider.ErrMalformedResponse, c.name)
	}
	model := resp.Model
	if model == "" {
		model = req.Model
	}
	return &provider.CompletionResult{Text: content, Model: model}, nil
}

// buildParams converts a CompletionRequest into SDK params, keeping the
// system prompt first and the messages in order.
func buildParams(req provider.CompletionRequest) (oai.ChatCompletionNewParams, error) {
	if req.Model == "" {
		return oai.ChatCompletionNewParams{}, fmt.Errorf("model must not be empty")
	}

	messages := make([]oai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, oai.SystemMessage(req.SystemPrompt))
	}
	for _, m := range req.Messages {
		msg, err := convertMessage(m)
		if err != nil {
			return oai.ChatCompletionNewParams{}, err
		}
		messages = append(messages, msg)
	}

	params := oai.ChatCompletionNewParams{
		Model:    shared.ChatModel(req.Model),
		Messages: messages,
	}
	if req.Temperature != 0 {
		params.Temperature = param.NewOpt(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = param.NewOpt(int64(req.MaxTokens))
	}
	return params, nil
}

func convertMessage(m provider.Message) (oai.ChatCompletionMessageParamUnion, error) {
	switch m.Role {
	case provider.RoleSystem:
		return oai.SystemMessage(m.Content), nil
	case provider.RoleUser:
		return oai.UserMessage(m.Content), nil
	case provider.RoleAssistant:
		asst := oai.ChatCompletionAssistantMessageParam{}
		asst.Content.OfString = oai.String(m.Content)
		return oai.ChatCompletionMessageParamUnion{OfAssistant: &asst}, nil
	default:
		return oai.ChatCompletionMessageParamUnion{}, fmt.Errorf("unknown message role %q", m.Role)
	}
}
