package model

import "context"

// Posting is one job advertisement's text block, as cut out of the summary
// file. Postings are rebuilt from the summary text on every run.
type Posting struct {
	Index int    // zero-based position in the summary
	Text  string // trimmed, never empty
}

// IdentityKey is the deduplication key derived from a posting: either a
// company name or a hex content digest, depending on the identity strategy.
type IdentityKey string

// Identifier derives identity keys from postings.
type Identifier interface {
	// Strategy returns the strategy name ("name" or "hash").
	Strategy() string
	// Identify returns the key for p, or ok=false if p carries no identity.
	Identify(p Posting) (key IdentityKey, ok bool)
	// Owns reports whether key has the shape this strategy produces.
	Owns(key IdentityKey) bool
}

// CompanyFilter decides whether an identified posting may be analyzed.
type CompanyFilter interface {
	Match(key IdentityKey) bool
}

// Reference is one grounding source returned by the search model.
type Reference struct {
	URL   string
	Title string
}

// SearchResult is the free text returned by the language model plus the
// grounding sources it cited, if any.
type SearchResult struct {
	Text       string
	References []Reference
}

// Searcher runs a prompt against the language model with web search enabled.
type Searcher interface {
	Search(ctx context.Context, prompt string) (SearchResult, error)
}

// Generator runs a prompt against the language model without tools.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
