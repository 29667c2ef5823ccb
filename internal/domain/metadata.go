package domain

// TokenMetadata represents best-effort token metadata from on-chain accounts.
type TokenMetadata struct {
	Mint        string   `json:"mint"`
	MetadataPDA string   `json:"metadata_pda,omitempty"` // derived Metaplex account
	Name        *string  `json:"name,omitempty"`         // token name (nullable)
	Symbol      *string  `json:"symbol,omitempty"`       // token symbol (nullable)
	Decimals    int      `json:"decimals"`
	Supply      *float64 `json:"supply,omitempty"`     // UI supply (nullable)
	PriceUSD    *float64 `json:"price_usd,omitempty"`  // from price cache (nullable)
	MarketCap   *float64 `json:"market_cap,omitempty"` // supply * price (nullable)
	FetchedAt   int64    `json:"fetched_at"`           // unix seconds
}
