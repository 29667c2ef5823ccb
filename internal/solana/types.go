package solana

import (
	"encoding/json"
	"strings"

	"github.com/mr-tron/base58"

	"pumpswap-indexer/internal/domain"
)

// SignatureInfo from getSignaturesForAddress.
type SignatureInfo struct {
	Signature string `json:"signature"`
	Slot      int64  `json:"slot"`
	BlockTime *int64 `json:"blockTime"`
	Err       any    `json:"err"`
}

// SignaturesOpts defines optional pagination parameters for getSignaturesForAddress.
type SignaturesOpts struct {
	Before string // Start searching backwards from this signature
	Until  string // Search until this signature
	Limit  int    // Maximum number of signatures to return
}

// TokenBalance is one row of a transaction's pre or post token balances.
type TokenBalance struct {
	AccountIndex int    `json:"accountIndex"`
	Mint         string `json:"mint"`
	Owner        string `json:"owner,omitempty"`
	// UIAmount is nil when the node omits it; callers treat that as zero.
	UIAmount       *float64 `json:"uiAmount,omitempty"`
	UIAmountString string   `json:"uiAmountString,omitempty"`
	Amount         string   `json:"amount,omitempty"`
	Decimals       int      `json:"decimals"`
}

// Instruction is the subset of a parsed instruction the indexer inspects.
type Instruction struct {
	ProgramID string `json:"programId,omitempty"`
	Program   string `json:"program,omitempty"`
}

// UnmarshalJSON accepts programId either as a plain string or as an object
// carrying the key under "key".
func (i *Instruction) UnmarshalJSON(data []byte) error {
	var raw struct {
		ProgramID json.RawMessage `json:"programId"`
		Program   json.RawMessage `json:"program"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	i.ProgramID = keyOrString(raw.ProgramID)
	i.Program = keyOrString(raw.Program)
	return nil
}

func keyOrString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Key string `json:"key"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.Key
	}
	return ""
}

// ProgramKey returns the program identifier of the instruction, preferring programId.
func (i Instruction) ProgramKey() string {
	if i.ProgramID != "" {
		return i.ProgramID
	}
	return i.Program
}

// InnerInstructionSet groups inner instructions invoked by one top-level instruction.
type InnerInstructionSet struct {
	Index        int           `json:"index"`
	Instructions []Instruction `json:"instructions"`
}

// AccountKey handles accountKeys encoded either as strings or as jsonParsed objects.
type AccountKey string

// UnmarshalJSON implements json.Unmarshaler.
func (k *AccountKey) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*k = AccountKey(s)
		return nil
	}
	var obj struct {
		Pubkey string `json:"pubkey"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*k = AccountKey(obj.Pubkey)
	return nil
}

// TokenSupply is the result of getTokenSupply.
type TokenSupply struct {
	Amount         string   `json:"raw"`
	Decimals       int      `json:"decimals"`
	UIAmount       *float64 `json:"ui_amount,omitempty"`
	UIAmountString string   `json:"ui_amount_string"`
}

// Info converts the supply to its domain form.
func (s *TokenSupply) Info() *domain.SupplyInfo {
	if s == nil {
		return nil
	}
	return &domain.SupplyInfo{
		Raw:            s.Amount,
		Decimals:       s.Decimals,
		UIAmount:       s.UIAmount,
		UIAmountString: s.UIAmountString,
	}
}

// IsValidPubkey reports whether s is a base58 string decoding to 32 bytes.
func IsValidPubkey(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	b, err := base58.Decode(s)
	return err == nil && len(b) == 32
}
