package analyst

import (
	"context"
	"log/slog"

	"github.com/gyaneshwarpardhi/credscout/internal/event"
	"github.com/gyaneshwarpardhi/credscout/internal/metrics"
)

// Analyst classifies a finding and drafts a public response.
type Analyst struct {
	backend Backend
}

// New creates an Analyst over the given text generation backend.
func New(backend Backend) *Analyst {
	return &Analyst{backend: backend}
}

// Analyze classifies one review. Backend failures (missing credential, non-2xx)
// are returned as errors; malformed model output never is.
func (a *Analyst) Analyze(ctx context.Context, review event.Finding, businessName string, feedback []event.FeedbackEntry) (event.Analysis, error) {
	prompt := BuildPrompt(review, businessName, feedback)

	text, err := a.backend.Complete(ctx, prompt)
	if err != nil {
		metrics.ClassifierErrors.Inc()
		return event.Analysis{}, err
	}

	analysis, stage := ParseResponse(text, review)
	metrics.ClassifierParseStage.WithLabelValues(stage).Inc()
	if stage == StageFallback {
		slog.WarnContext(ctx, "analyst: unparseable model output, using rating fallback",
			"rating", review.Rating, "output_len", len(text))
	}
	return analysis, nil
}
