package ai

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"text/template"
	"time"

	"github.com/amishk599/a11yjobs/internal/model"
)

// Digest is the day's reformatted postings plus the grounding sources of
// the search that found them.
type Digest struct {
	Text       string
	References []model.Reference
}

// DigestSummarizer searches for today's postings, then has the model
// rewrite the findings into the fixed digest layout.
type DigestSummarizer struct {
	searcher   model.Searcher
	generator  model.Generator
	searchTmpl *template.Template
	digestTmpl *template.Template
	logger     *slog.Logger
}

// NewDigestSummarizer wires a summarizer with the package prompt templates.
func NewDigestSummarizer(searcher model.Searcher, generator model.Generator, logger *slog.Logger) *DigestSummarizer {
	return &DigestSummarizer{
		searcher:   searcher,
		generator:  generator,
		searchTmpl: SearchTemplate,
		digestTmpl: DigestTemplate,
		logger:     logger,
	}
}

// Summarize runs the search for day and returns the digest.
func (s *DigestSummarizer) Summarize(ctx context.Context, day time.Time) (Digest, error) {
	var searchBuf bytes.Buffer
	if err := s.searchTmpl.Execute(&searchBuf, struct{ Date string }{Date: day.Format("2006-01-02")}); err != nil {
		return Digest{}, fmt.Errorf("render search prompt: %w", err)
	}

	found, err := s.searcher.Search(ctx, searchBuf.String())
	if err != nil {
		return Digest{}, fmt.Errorf("llm search: %w", err)
	}
	s.logger.Info("search complete", "chars", len([]rune(found.Text)), "references", len(found.References))

	var digestBuf bytes.Buffer
	if err := s.digestTmpl.Execute(&digestBuf, struct{ Original string }{Original: found.Text}); err != nil {
		return Digest{}, fmt.Errorf("render digest prompt: %w", err)
	}

	text, err := s.generator.Generate(ctx, digestBuf.String())
	if err != nil {
		return Digest{}, fmt.Errorf("llm digest: %w", err)
	}
	if text == "" {
		return Digest{}, fmt.Errorf("llm returned empty digest")
	}

	return Digest{Text: text, References: found.References}, nil
}
