package domain

import "math"

// Trade is a normalized swap extracted from a single transaction for one mint.
// Corresponds to the trades table. Never mutated after construction.
type Trade struct {
	Signature  string   `json:"signature"`             // transaction signature, dedup key
	Timestamp  int64    `json:"ts"`                    // block time (unix seconds)
	Mint       string   `json:"mint"`                  // base asset being measured
	BaseDelta  float64  `json:"token_delta"`           // net change of Mint across all owners
	QuoteMint  *string  `json:"quote_mint,omitempty"`  // counter asset (nullable)
	QuoteDelta *float64 `json:"quote_delta,omitempty"` // net change of QuoteMint (nullable)
	Price      *float64 `json:"price,omitempty"`       // quote units per base unit (nullable)
}

// AbsBase returns the traded base amount regardless of direction.
func (t *Trade) AbsBase() float64 {
	return math.Abs(t.BaseDelta)
}

// QuotedIn reports whether the trade carries a price quoted in one of the given mints.
func (t *Trade) QuotedIn(mints StableSet) bool {
	return t.Price != nil && t.QuoteMint != nil && mints.Contains(*t.QuoteMint)
}
