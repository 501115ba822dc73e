package filter

import (
	"strings"

	"github.com/amishk599/a11yjobs/internal/model"
)

// Ensure CompanyExcluder implements model.CompanyFilter.
var _ model.CompanyFilter = (*CompanyExcluder)(nil)

// CompanyExcluder rejects identity keys that contain any of the configured
// company names. Matching is case-insensitive. An empty list admits every key.
type CompanyExcluder struct {
	excluded []string
}

// NewCompanyExcluder returns a filter that admits every key not matching one
// of the excluded company names (case-insensitive substring).
func NewCompanyExcluder(companies []string) *CompanyExcluder {
	var excluded []string
	for _, c := range companies {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		excluded = append(excluded, strings.ToLower(c))
	}
	return &CompanyExcluder{excluded: excluded}
}

// Match returns true if the key may be selected for analysis.
func (f *CompanyExcluder) Match(key model.IdentityKey) bool {
	lower := strings.ToLower(string(key))
	for _, c := range f.excluded {
		if strings.Contains(lower, c) {
			return false
		}
	}
	return true
}
