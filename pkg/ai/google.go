package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/genai"
)

// CompleterOptions are shared by all backends
type CompleterOptions struct {
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float64
	MaxTokens   int
	HTTPClient  *http.Client
}

type googleCompleter struct {
	client *genai.Client
	opts   CompleterOptions
}

// NewGoogle creates a Gemini completer using JSON-schema constrained output
func NewGoogle(ctx context.Context, opts CompleterOptions) (Completer, error) {
	if opts.APIKey == "" {
		return nil, errors.New("google api key is required")
	}

	cc := &genai.ClientConfig{
		APIKey:     opts.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: opts.HTTPClient,
	}
	if opts.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &googleCompleter{client: client, opts: opts}, nil
}

func (g *googleCompleter) Provider() string { return "google" }
func (g *googleCompleter) Model() string    { return g.opts.Model }

func (g *googleCompleter) Complete(ctx context.Context, req *Request) (*Response, error) {
	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, m := range req.Messages {
		role := genai.Role(genai.RoleUser)
		if m.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}

	temp := float32(g.opts.Temperature)
	cfg := &genai.GenerateContentConfig{
		Temperature:        &temp,
		MaxOutputTokens:    int32(g.opts.MaxTokens),
		ResponseMIMEType:   "application/json",
		ResponseJsonSchema: req.Schema,
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.opts.Model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}

	out := &Response{Content: resp.Text()}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = Usage{
			PromptTokens:     int64(u.PromptTokenCount),
			CompletionTokens: int64(u.CandidatesTokenCount),
		}
	}
	if out.Content == "" {
		return out, fmt.Errorf("%w: empty response", ErrContractViolation)
	}
	return out, nil
}
