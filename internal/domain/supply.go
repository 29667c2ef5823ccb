package domain

// SupplyInfo is a mint's total supply as reported by the chain.
type SupplyInfo struct {
	Raw            string   `json:"raw"`
	Decimals       int      `json:"decimals"`
	UIAmount       *float64 `json:"ui_amount,omitempty"`
	UIAmountString string   `json:"ui_amount_string"`
}
