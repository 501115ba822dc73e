// Package posting cuts the summary text into postings and derives the
// identity key used to deduplicate them.
package posting

import (
	"strings"

	"github.com/amishk599/a11yjobs/internal/model"
)

// recordSeparator is the blank line the summarizer puts between postings.
//
// A posting whose own text contains a blank line is split in two. Changing
// the separator changes which keys get derived, so existing ledgers would
// need migrating first.
const recordSeparator = "\n\n"

// Split partitions raw summary text into postings. Each posting is trimmed
// and empty pieces are dropped; order is preserved.
func Split(text string) []model.Posting {
	var postings []model.Posting
	for _, piece := range strings.Split(strings.TrimSpace(text), recordSeparator) {
		piece = strings.TrimSpace(piece)
		if piece == "" {
			continue
		}
		postings = append(postings, model.Posting{Index: len(postings), Text: piece})
	}
	return postings
}
