// Package runner drives the two run modes: the daily summary that finds and
// posts postings, and the analysis pass that picks one unseen company.
package runner

import (
	"context"
	"log/slog"
	"time"

	"github.com/amishk599/a11yjobs/internal/ai"
	"github.com/amishk599/a11yjobs/internal/model"
)

const (
	ModeSummary  = "summary"
	ModeAnalysis = "analysis"
)

// Summarizer produces the day's digest of postings.
type Summarizer interface {
	Summarize(ctx context.Context, day time.Time) (ai.Digest, error)
}

// Analyzer writes the company analysis for one posting.
type Analyzer interface {
	Analyze(ctx context.Context, p model.Posting) (string, error)
}

// ReferenceResolver replaces grounding URLs with their landing page and title.
type ReferenceResolver interface {
	Resolve(ctx context.Context, refs []model.Reference) []model.Reference
}

// deliver fans text out through n and journals every attempt. The notifier
// logs each destination; this reports the totals.
func deliver(ctx context.Context, n model.Notifier, history model.DeliveryLog, mode string, key model.IdentityKey, text string, now time.Time, logger *slog.Logger) int {
	results := n.Deliver(ctx, text)

	delivered := 0
	for _, r := range results {
		rec := model.DeliveryRecord{
			Mode:        mode,
			Key:         key,
			Destination: r.Destination,
			Delivered:   r.Delivered,
			At:          now,
		}
		if r.Delivered {
			delivered++
		} else if r.Err != nil {
			rec.Error = r.Err.Error()
		}
		if err := history.Record(rec); err != nil {
			logger.Warn("recording delivery failed", "destination", r.Destination, "error", err)
		}
	}

	if len(results) > 0 && delivered == 0 {
		logger.Error("message was not delivered to any destination", "destinations", len(results))
	} else {
		logger.Info("message delivered", "delivered", delivered, "destinations", len(results))
	}
	return delivered
}
