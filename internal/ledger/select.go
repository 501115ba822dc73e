package ledger

import (
	"log/slog"

	"github.com/amishk599/a11yjobs/internal/model"
)

// Selection is the posting chosen for analysis together with its key.
type Selection struct {
	Key     model.IdentityKey
	Posting model.Posting
}

// Select scans postings in order and returns the first one whose key is not
// yet in the ledger. ok=false means there is nothing left to do, which is
// the normal state once the day's postings are exhausted.
//
// Postings without an identity are skipped with a warning. A nil filter
// admits every key.
func Select(postings []model.Posting, l model.Ledger, id model.Identifier, filter model.CompanyFilter, logger *slog.Logger) (Selection, bool) {
	for _, p := range postings {
		key, ok := id.Identify(p)
		if !ok {
			logger.Warn("no identity in posting, skipping", "index", p.Index, "first_line", firstLine(p.Text))
			continue
		}
		if filter != nil && !filter.Match(key) {
			logger.Info("company excluded by filter, skipping", "key", key)
			continue
		}
		if l.Has(key) {
			logger.Debug("already analyzed, skipping", "key", key)
			continue
		}
		return Selection{Key: key, Posting: p}, true
	}
	return Selection{}, false
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}
