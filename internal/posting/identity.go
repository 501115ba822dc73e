package posting

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/amishk599/a11yjobs/internal/model"
)

// Identity strategies. A ledger must only ever be written by one of them.
const (
	StrategyName = "name"
	StrategyHash = "hash"
)

// NewIdentifier returns the identifier for the named strategy.
func NewIdentifier(strategy string) (model.Identifier, error) {
	switch strategy {
	case StrategyName:
		return NameIdentifier{}, nil
	case StrategyHash:
		return HashIdentifier{}, nil
	default:
		return nil, fmt.Errorf("unknown identity strategy %q (want %q or %q)", strategy, StrategyName, StrategyHash)
	}
}

// listMarker matches an ordinal list marker such as "5." or "５．" at the start
// of a line.
var listMarker = regexp.MustCompile(`^\s*[0-9０-９]+[.．](.*)$`)

// NameIdentifier keys postings by the company name on their first line,
// e.g. "5. 🏢 Acme株式会社 - データサイエンティスト" -> "Acme株式会社".
type NameIdentifier struct{}

func (NameIdentifier) Strategy() string { return StrategyName }

// Identify extracts the company name. Postings whose first line does not
// start with a list marker carry no identity.
func (NameIdentifier) Identify(p model.Posting) (model.IdentityKey, bool) {
	first, _, _ := strings.Cut(p.Text, "\n")
	m := listMarker.FindStringSubmatch(first)
	if m == nil {
		return "", false
	}

	rest := strings.TrimLeftFunc(m[1], isDecoration)
	if i := strings.IndexAny(rest, "-–—"); i >= 0 {
		rest = rest[:i]
	}
	name := strings.TrimFunc(rest, isDecoration)
	if name == "" {
		return "", false
	}
	return model.IdentityKey(name), true
}

// Owns reports whether key could be a company name, i.e. is not a digest.
func (NameIdentifier) Owns(key model.IdentityKey) bool {
	return !isDigest(string(key))
}

// isDecoration matches the runes the digest format wraps names in: spaces,
// pictographs like 🏢, variation selectors and markdown emphasis.
func isDecoration(r rune) bool {
	return unicode.IsSpace(r) ||
		unicode.Is(unicode.So, r) ||
		unicode.Is(unicode.Mn, r) ||
		r == '*'
}

// HashIdentifier keys postings by the SHA-256 of their text. Any edit to a
// posting, whitespace included, yields a new key.
type HashIdentifier struct{}

func (HashIdentifier) Strategy() string { return StrategyHash }

// Identify always succeeds.
func (HashIdentifier) Identify(p model.Posting) (model.IdentityKey, bool) {
	sum := sha256.Sum256([]byte(p.Text))
	return model.IdentityKey(hex.EncodeToString(sum[:])), true
}

// Owns reports whether key is a hex SHA-256 digest.
func (HashIdentifier) Owns(key model.IdentityKey) bool {
	return isDigest(string(key))
}

func isDigest(s string) bool {
	if len(s) != sha256.Size*2 {
		return false
	}
	for _, r := range s {
		if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'f') {
			return false
		}
	}
	return true
}
