package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/amishk599/a11yjobs/internal/ledger"
	"github.com/amishk599/a11yjobs/internal/model"
	"github.com/amishk599/a11yjobs/internal/posting"
)

const (
	analysisCaution = "※これは本日のウェブサイト情報を Gemini が検索してまとめたものであり、" +
		"内容の正確性を保証するものではありません。興味のある情報はご自身でご確認ください。"

	// Matches the offset-bearing ISO-8601 form already present in ledgers.
	timestampLayout = "2006-01-02T15:04:05.000000-07:00"
)

// AnalysisRunner analyzes the first company from the summary file that is
// not yet in the ledger. One company per run.
type AnalysisRunner struct {
	store       model.LedgerStore
	identifier  model.Identifier
	filter      model.CompanyFilter
	analyzer    Analyzer
	notifier    model.Notifier
	history     model.DeliveryLog
	summaryPath string
	loc         *time.Location
	now         func() time.Time
	logger      *slog.Logger
}

// NewAnalysisRunner wires an analysis run. filter may be nil.
func NewAnalysisRunner(
	store model.LedgerStore,
	identifier model.Identifier,
	filter model.CompanyFilter,
	analyzer Analyzer,
	notifier model.Notifier,
	history model.DeliveryLog,
	summaryPath string,
	loc *time.Location,
	logger *slog.Logger,
) *AnalysisRunner {
	return &AnalysisRunner{
		store:       store,
		identifier:  identifier,
		filter:      filter,
		analyzer:    analyzer,
		notifier:    notifier,
		history:     history,
		summaryPath: summaryPath,
		loc:         loc,
		now:         time.Now,
		logger:      logger,
	}
}

// Run executes one analysis pass. Exhaustion is not an error.
//
// The message is delivered before the ledger is saved, so a crash between
// the two re-analyzes the company on the next run rather than losing it.
func (r *AnalysisRunner) Run(ctx context.Context) error {
	l, err := r.store.Load()
	if err != nil {
		return fmt.Errorf("analysis: %w", err)
	}
	if l == nil {
		l = model.Ledger{}
	}
	if err := ledger.CheckStrategy(l, r.identifier); err != nil {
		return fmt.Errorf("analysis: %w", err)
	}

	raw, err := os.ReadFile(r.summaryPath)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("analysis: %s: %w", r.summaryPath, model.ErrSummaryMissing)
	}
	if err != nil {
		return fmt.Errorf("analysis: reading %s: %w", r.summaryPath, err)
	}
	if strings.TrimSpace(string(raw)) == "" {
		r.logger.Warn("summary file is empty, nothing to do", "path", r.summaryPath)
		return nil
	}

	postings := posting.Split(string(raw))
	sel, ok := ledger.Select(postings, l, r.identifier, r.filter, r.logger)
	if !ok {
		r.logger.Info("all postings already analyzed, nothing to do",
			"postings", len(postings),
			"ledger_entries", len(l),
		)
		return nil
	}
	r.logger.Info("selected posting", "key", sel.Key, "index", sel.Posting.Index)

	analysis, err := r.analyzer.Analyze(ctx, sel.Posting)
	if err != nil {
		return fmt.Errorf("analysis of %q: %w", sel.Key, err)
	}

	now := r.now().In(r.loc)
	deliver(ctx, r.notifier, r.history, ModeAnalysis, sel.Key, analysis+"\n\n"+analysisCaution, now, r.logger)

	l[sel.Key] = model.LedgerEntry{
		Analysis:  analysis,
		Timestamp: now.Format(timestampLayout),
	}
	if err := r.store.Save(l); err != nil {
		return fmt.Errorf("analysis: saving ledger: %w", err)
	}
	r.logger.Info("ledger updated", "key", sel.Key, "ledger_entries", len(l))
	return nil
}
