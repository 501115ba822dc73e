package runner

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/amishk599/a11yjobs/internal/model"
	"github.com/amishk599/a11yjobs/internal/refs"
)

const (
	summaryHeader  = "*要約結果:*"
	summaryCaution = "※これは本日のウェブサイト情報を Gemini が検索してまとめたものであり、内容の正確性を保証するものではありません。"
)

// SummaryRunner finds today's postings, writes them to the scratch file for
// later analysis runs, and posts the digest.
type SummaryRunner struct {
	summarizer  Summarizer
	resolver    ReferenceResolver
	notifier    model.Notifier
	history     model.DeliveryLog
	summaryPath string
	loc         *time.Location
	now         func() time.Time
	logger      *slog.Logger
}

// NewSummaryRunner wires a summary run. A nil resolver leaves the reference
// block out of the message.
func NewSummaryRunner(
	summarizer Summarizer,
	resolver ReferenceResolver,
	notifier model.Notifier,
	history model.DeliveryLog,
	summaryPath string,
	loc *time.Location,
	logger *slog.Logger,
) *SummaryRunner {
	return &SummaryRunner{
		summarizer:  summarizer,
		resolver:    resolver,
		notifier:    notifier,
		history:     history,
		summaryPath: summaryPath,
		loc:         loc,
		now:         time.Now,
		logger:      logger,
	}
}

// Run executes one summary pass.
func (r *SummaryRunner) Run(ctx context.Context) error {
	now := r.now().In(r.loc)

	digest, err := r.summarizer.Summarize(ctx, now)
	if err != nil {
		return fmt.Errorf("summary: %w", err)
	}

	var refBlock string
	if r.resolver != nil {
		resolved := r.resolver.Resolve(ctx, digest.References)
		refBlock = refs.Format(resolved)
		r.logger.Info("resolved references", "count", len(resolved))
	}

	// The scratch file is written before delivery so analysis has input even
	// when every channel fails.
	if err := writeScratch(r.summaryPath, digest.Text); err != nil {
		return fmt.Errorf("summary: %w", err)
	}
	r.logger.Info("wrote summary file", "path", r.summaryPath)

	message := composeSummary(digest.Text, refBlock)
	deliver(ctx, r.notifier, r.history, ModeSummary, "", message, now, r.logger)
	return nil
}

func composeSummary(digest, refBlock string) string {
	parts := []string{summaryHeader + "\n" + digest}
	if refBlock != "" {
		parts = append(parts, refBlock)
	}
	parts = append(parts, summaryCaution)
	return strings.Join(parts, "\n\n")
}

func writeScratch(path, text string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(text+"\n"), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
