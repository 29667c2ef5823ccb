// Package extractor turns a confirmed transaction into a normalized trade for one mint.
//
// Detection is heuristic: a transaction counts as a venue swap when any
// top-level or inner instruction names a venue program, or when any log line
// mentions a venue program or the word "swap". Instruction data is never decoded.
package extractor

import (
	"strings"

	"github.com/shopspring/decimal"

	"pumpswap-indexer/internal/domain"
	"pumpswap-indexer/internal/solana"
)

// PumpSwapProgramID is the PumpSwap AMM program.
const PumpSwapProgramID = "pAMMBay6oceH9fJKBRHGP5D4bD4sWpmSwMn52FMfXEA"

// Reason explains why Extract produced no trade. The zero value means a trade was produced.
type Reason string

const (
	ReasonAccepted      Reason = ""
	ReasonNoTransaction Reason = "no_transaction"
	ReasonNoBlockTime   Reason = "no_block_time"
	ReasonNoMeta        Reason = "no_meta"
	ReasonNotVenue      Reason = "not_venue"
	ReasonNoBalances    Reason = "no_balances"
	ReasonZeroDelta     Reason = "zero_delta"
)

// Extractor extracts trades for a fixed set of venue programs.
type Extractor struct {
	programs []string
	lowered  []string
}

// New creates an Extractor. With no program IDs it matches PumpSwapProgramID.
func New(programIDs ...string) *Extractor {
	var programs []string
	for _, p := range programIDs {
		if p = strings.TrimSpace(p); p != "" {
			programs = append(programs, p)
		}
	}
	if len(programs) == 0 {
		programs = []string{PumpSwapProgramID}
	}
	lowered := make([]string, len(programs))
	for i, p := range programs {
		lowered[i] = strings.ToLower(p)
	}
	return &Extractor{programs: programs, lowered: lowered}
}

// Programs returns the venue program IDs.
func (e *Extractor) Programs() []string {
	return append([]string(nil), e.programs...)
}

// Extract returns the trade tx represents for mint, or nil and the rejection reason.
// Rejection is an expected outcome, not an error.
func (e *Extractor) Extract(tx *solana.Transaction, mint, signature string) (*domain.Trade, Reason) {
	if tx == nil {
		return nil, ReasonNoTransaction
	}
	if tx.BlockTime == nil {
		return nil, ReasonNoBlockTime
	}
	if tx.Meta == nil {
		return nil, ReasonNoMeta
	}
	if !e.IsVenueSwap(tx) {
		return nil, ReasonNotVenue
	}

	order, deltas := BalanceDeltas(tx.Meta)
	if len(order) == 0 {
		return nil, ReasonNoBalances
	}

	base, ok := deltas[mint]
	if !ok || base.IsZero() {
		return nil, ReasonZeroDelta
	}

	trade := &domain.Trade{
		Signature: signature,
		Timestamp: *tx.BlockTime,
		Mint:      mint,
		BaseDelta: base.InexactFloat64(),
	}

	// Largest-magnitude other mint wins; ties keep the first seen.
	var (
		quoteMint  string
		quoteDelta decimal.Decimal
		found      bool
	)
	for _, m := range order {
		if m == mint {
			continue
		}
		d := deltas[m]
		if !found || d.Abs().GreaterThan(quoteDelta.Abs()) {
			quoteMint, quoteDelta, found = m, d, true
		}
	}

	if found {
		qd := quoteDelta.InexactFloat64()
		price := quoteDelta.Abs().Div(base.Abs()).InexactFloat64()
		trade.QuoteMint = &quoteMint
		trade.QuoteDelta = &qd
		trade.Price = &price
	}

	return trade, ReasonAccepted
}

// ExtractAll runs Extract for every mint touched by tx's balance rows. It
// returns the trades produced and the reason for each mint that produced none.
func (e *Extractor) ExtractAll(tx *solana.Transaction, signature string) ([]*domain.Trade, []Reason) {
	if tx == nil {
		return nil, []Reason{ReasonNoTransaction}
	}
	var (
		out      []*domain.Trade
		rejected []Reason
	)
	for _, m := range tx.Mints() {
		t, reason := e.Extract(tx, m, signature)
		if reason != ReasonAccepted {
			rejected = append(rejected, reason)
			continue
		}
		out = append(out, t)
	}
	return out, rejected
}

// IsVenueSwap applies the venue detection heuristic.
func (e *Extractor) IsVenueSwap(tx *solana.Transaction) bool {
	if tx == nil {
		return false
	}
	if tx.Message != nil {
		for _, ix := range tx.Message.Instructions {
			if e.isVenueProgram(ix.ProgramKey()) {
				return true
			}
		}
	}
	if tx.Meta == nil {
		return false
	}
	for _, set := range tx.Meta.InnerInstructions {
		for _, ix := range set.Instructions {
			if e.isVenueProgram(ix.ProgramKey()) {
				return true
			}
		}
	}
	for _, line := range tx.Meta.LogMessages {
		if line == "" {
			continue
		}
		s := strings.ToLower(line)
		if strings.Contains(s, "swap") {
			return true
		}
		for _, p := range e.lowered {
			if strings.Contains(s, p) {
				return true
			}
		}
	}
	return false
}

func (e *Extractor) isVenueProgram(id string) bool {
	if id == "" {
		return false
	}
	for _, p := range e.programs {
		if id == p {
			return true
		}
	}
	return false
}

// BalanceDeltas sums post minus pre UI amounts per mint across all owners.
// Rows without a UI amount count as zero. order lists mints first-seen over
// pre rows then post rows.
func BalanceDeltas(meta *solana.TransactionMeta) (order []string, deltas map[string]decimal.Decimal) {
	deltas = make(map[string]decimal.Decimal)
	if meta == nil {
		return nil, deltas
	}

	add := func(rows []solana.TokenBalance, sign int64) {
		for _, r := range rows {
			if r.Mint == "" {
				continue
			}
			cur, seen := deltas[r.Mint]
			if !seen {
				order = append(order, r.Mint)
			}
			deltas[r.Mint] = cur.Add(uiAmount(r).Mul(decimal.NewFromInt(sign)))
		}
	}
	add(meta.PreTokenBalances, -1)
	add(meta.PostTokenBalances, 1)
	return order, deltas
}

func uiAmount(r solana.TokenBalance) decimal.Decimal {
	if r.UIAmount == nil {
		return decimal.Zero
	}
	return decimal.NewFromFloat(*r.UIAmount)
}
