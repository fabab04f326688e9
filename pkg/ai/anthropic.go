package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// anthropicCompleter forces a single tool call whose input schema is the
// requested output schema; the tool input is the structured result.
type anthropicCompleter struct {
	client anthropic.Client
	opts   CompleterOptions
}

// NewAnthropic creates a Claude completer
func NewAnthropic(opts CompleterOptions) (Completer, error) {
	if opts.APIKey == "" {
		return nil, errors.New("anthropic api key is required")
	}

	ropts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		// retries are handled by the generator
		option.WithMaxRetries(0),
	}
	if opts.BaseURL != "" {
		ropts = append(ropts, option.WithBaseURL(opts.BaseURL))
	}
	if opts.HTTPClient != nil {
		ropts = append(ropts, option.WithHTTPClient(opts.HTTPClient))
	}

	return &anthropicCompleter{client: anthropic.NewClient(ropts...), opts: opts}, nil
}

func (a *anthropicCompleter) Provider() string { return "anthropic" }
func (a *anthropicCompleter) Model() string    { return a.opts.Model }

func (a *anthropicCompleter) Complete(ctx context.Context, req *Request) (*Response, error) {
	schema, err := schemaMap(req.Schema)
	if err != nil {
		return nil, err
	}
	var required []string
	if r, ok := schema["required"].([]any); ok {
		for _, v := range r {
			if s, ok := v.(string); ok {
				required = append(required, s)
			}
		}
	}

	messages := make([]anthropic.MessageParam, 0, len(req.Messages))
	for _, m := range req.Messages {
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == RoleAssistant {
			messages = append(messages, anthropic.NewAssistantMessage(block))
		} else {
			messages = append(messages, anthropic.NewUserMessage(block))
		}
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(a.opts.Model),
		MaxTokens:   int64(a.opts.MaxTokens),
		Messages:    messages,
		Temperature: anthropic.Float(a.opts.Temperature),
		Tools: []anthropic.ToolUnionParam{{
			OfTool: &anthropic.ToolParam{
				Name:        req.SchemaName,
				Description: anthropic.String(req.SchemaDescription),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: schema["properties"],
					Required:   required,
				},
			},
		}},
		ToolChoice: anthropic.ToolChoiceParamOfTool(req.SchemaName),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}

	out := &Response{Usage: Usage{
		PromptTokens:     msg.Usage.InputTokens,
		CompletionTokens: msg.Usage.OutputTokens,
	}}
	for _, block := range msg.Content {
		if block.Type == "tool_use" && block.Name == req.SchemaName {
			out.Content = string(block.Input)
			return out, nil
		}
	}
	return out, fmt.Errorf("%w: no %s tool call in response", ErrContractViolation, req.SchemaName)
}
