package ai

import (
	"context"
	"fmt"
)

// NewCompleter builds the backend named by provider ("google", "anthropic"
// or "openai").
func NewCompleter(ctx context.Context, provider string, opts CompleterOptions) (Completer, error) {
	switch provider {
	case "google":
		return NewGoogle(ctx, opts)
	case "anthropic":
		return NewAnthropic(opts)
	case "openai":
		return NewOpenAI(opts)
	default:
		return nil, fmt.Errorf("unsupported provider %q", provider)
	}
}
