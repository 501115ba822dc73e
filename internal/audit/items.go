package audit

import (
	"sort"
	"strings"

	"github.com/amishk599/a11yjobs/internal/model"
)

// Entry is one analyzed company from the ledger.
type Entry struct {
	Key       model.IdentityKey
	Timestamp string
	Analysis  string
}

// Pending is a posting from the summary file that has no ledger entry yet.
// HasKey is false when no identity could be extracted; such postings are
// never selected for analysis.
type Pending struct {
	Key      model.IdentityKey
	HasKey   bool
	Excluded bool
	Posting  model.Posting
}

// Entries returns the ledger's entries, newest first. Entries with equal
// timestamps are ordered by key.
func Entries(l model.Ledger) []Entry {
	out := make([]Entry, 0, len(l))
	for k, e := range l {
		out = append(out, Entry{Key: k, Timestamp: e.Timestamp, Analysis: e.Analysis})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp > out[j].Timestamp
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// Queue lists postings that are not in the ledger, in the order analysis
// runs would consider them. filter may be nil.
func Queue(postings []model.Posting, l model.Ledger, id model.Identifier, filter model.CompanyFilter) []Pending {
	var out []Pending
	for _, p := range postings {
		key, ok := id.Identify(p)
		if ok && l.Has(key) {
			continue
		}
		out = append(out, Pending{
			Key:      key,
			HasKey:   ok,
			Excluded: ok && filter != nil && !filter.Match(key),
			Posting:  p,
		})
	}
	return out
}

// Label is the one-line name shown for a pending posting.
func (p Pending) Label() string {
	if p.HasKey {
		return string(p.Key)
	}
	first, _, _ := strings.Cut(p.Posting.Text, "\n")
	return "(no identity) " + first
}
