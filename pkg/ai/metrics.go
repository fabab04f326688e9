package ai

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/saint0x/gitfix/pkg/ai"

// usageMetrics counts tokens and structured calls per provider and model
type usageMetrics struct {
	promptTokens     metric.Int64Counter
	completionTokens metric.Int64Counter
	calls            metric.Int64Counter
}

func newUsageMetrics() *usageMetrics {
	meter := otel.Meter(meterName)

	promptTokens, err := meter.Int64Counter("genai.token.prompt",
		metric.WithDescription("The number of prompt tokens used"),
		metric.WithUnit("{tokens}"))
	if err != nil {
		slog.Warn("Failed to create prompt tokens counter", "error", err)
		promptTokens = noop.Int64Counter{}
	}

	completionTokens, err := meter.Int64Counter("genai.token.completion",
		metric.WithDescription("The number of completion tokens used"),
		metric.WithUnit("{tokens}"))
	if err != nil {
		slog.Warn("Failed to create completion tokens counter", "error", err)
		completionTokens = noop.Int64Counter{}
	}

	calls, err := meter.Int64Counter("genai.structured.calls",
		metric.WithDescription("The number of structured completion calls by schema and outcome"),
		metric.WithUnit("{calls}"))
	if err != nil {
		slog.Warn("Failed to create structured call counter", "error", err)
		calls = noop.Int64Counter{}
	}

	return &usageMetrics{
		promptTokens:     promptTokens,
		completionTokens: completionTokens,
		calls:            calls,
	}
}

func (m *usageMetrics) record(ctx context.Context, c Completer, schema string, usage Usage, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	attrs := metric.WithAttributes(
		attribute.String("provider", c.Provider()),
		attribute.String("model", c.Model()),
		attribute.String("schema", schema),
	)

	m.promptTokens.Add(ctx, usage.PromptTokens, attrs)
	m.completionTokens.Add(ctx, usage.CompletionTokens, attrs)
	m.calls.Add(ctx, 1, attrs, metric.WithAttributes(attribute.String("outcome", outcome)))
}
