package model

// LedgerEntry records the analysis delivered for one identity key.
// Entries are written once and never updated.
type LedgerEntry struct {
	Analysis  string `json:"analysis"`
	Timestamp string `json:"timestamp"` // ISO-8601 with offset
}

// Ledger maps identity keys to their completion records. A missing key
// means the posting has not been analyzed yet.
type Ledger map[IdentityKey]LedgerEntry

// Has reports whether key has already been analyzed.
func (l Ledger) Has(key IdentityKey) bool {
	_, ok := l[key]
	return ok
}

// LedgerStore loads and persists the ledger.
type LedgerStore interface {
	Load() (Ledger, error)
	Save(l Ledger) error
}
