package ai

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"text/template"

	"github.com/amishk599/a11yjobs/internal/model"
)

// CompanyAnalyzer asks the search model for the background of the company
// behind one posting.
type CompanyAnalyzer struct {
	searcher model.Searcher
	tmpl     *template.Template
	logger   *slog.Logger
}

// NewCompanyAnalyzer creates an analyzer. Pass CompanyAnalysisTemplate
// unless testing.
func NewCompanyAnalyzer(searcher model.Searcher, tmpl *template.Template, logger *slog.Logger) *CompanyAnalyzer {
	return &CompanyAnalyzer{
		searcher: searcher,
		tmpl:     tmpl,
		logger:   logger,
	}
}

// Analyze returns the analysis text for p. An empty answer is an error.
func (a *CompanyAnalyzer) Analyze(ctx context.Context, p model.Posting) (string, error) {
	var promptBuf bytes.Buffer
	if err := a.tmpl.Execute(&promptBuf, struct{ Posting string }{Posting: p.Text}); err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}

	res, err := a.searcher.Search(ctx, promptBuf.String())
	if err != nil {
		return "", fmt.Errorf("llm search: %w", err)
	}
	if res.Text == "" {
		return "", fmt.Errorf("llm returned empty analysis")
	}

	a.logger.Debug("analysis received", "chars", len([]rune(res.Text)), "references", len(res.References))
	return res.Text, nil
}
