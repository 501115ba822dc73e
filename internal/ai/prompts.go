package ai

import (
	_ "embed"
	"text/template"
)

var (
	//go:embed prompts/search.md
	searchPromptRaw string

	//go:embed prompts/digest.md
	digestPromptRaw string

	//go:embed prompts/company_analysis.md
	companyAnalysisPromptRaw string
)

// Prompt templates, parsed once at package init.
var (
	// SearchTemplate asks for today's postings. Data: struct{ Date string }.
	SearchTemplate = template.Must(template.New("search").Parse(searchPromptRaw))

	// DigestTemplate reformats search output into the blank-line separated
	// digest that analysis mode splits. Data: struct{ Original string }.
	DigestTemplate = template.Must(template.New("digest").Parse(digestPromptRaw))

	// CompanyAnalysisTemplate asks for one company's background.
	// Data: struct{ Posting string }.
	CompanyAnalysisTemplate = template.Must(template.New("company_analysis").Parse(companyAnalysisPromptRaw))
)
