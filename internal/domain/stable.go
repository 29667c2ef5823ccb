package domain

// Well-known mainnet stablecoin mints.
const (
	USDCMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	USDTMint = "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB"
)

// StableSet is a set of mints treated as USD-denominated.
type StableSet map[string]struct{}

// NewStableSet builds a set from the given mints, skipping empty entries.
func NewStableSet(mints ...string) StableSet {
	s := make(StableSet, len(mints))
	for _, m := range mints {
		if m != "" {
			s[m] = struct{}{}
		}
	}
	return s
}

// DefaultStableSet returns the default USDC/USDT set.
func DefaultStableSet() StableSet {
	return NewStableSet(USDCMint, USDTMint)
}

// Contains reports whether mint is in the set.
func (s StableSet) Contains(mint string) bool {
	_, ok := s[mint]
	return ok
}
