package solana

import "context"

// RPCClient defines Solana RPC HTTP interface.
type RPCClient interface {
	// GetTransaction retrieves a transaction by signature.
	// Returns nil, nil if the node has no record of it.
	GetTransaction(ctx context.Context, signature string) (*Transaction, error)

	// GetSignaturesForAddress retrieves signatures for an address with pagination.
	GetSignaturesForAddress(ctx context.Context, address string, opts *SignaturesOpts) ([]SignatureInfo, error)

	// GetAccountData retrieves raw account bytes. Returns nil, nil if the account does not exist.
	GetAccountData(ctx context.Context, pubkey string) ([]byte, error)

	// GetTokenSupply retrieves the total supply of a mint.
	GetTokenSupply(ctx context.Context, mint string) (*TokenSupply, error)
}

// Transaction represents a confirmed Solana transaction fetched with jsonParsed encoding.
type Transaction struct {
	Slot      int64
	Signature string
	BlockTime *int64 // Unix timestamp (seconds); nil when the node does not report it
	Meta      *TransactionMeta
	Message   *TransactionMessage
}

// TransactionMeta contains transaction metadata.
type TransactionMeta struct {
	Err               interface{}
	LogMessages       []string
	PreTokenBalances  []TokenBalance
	PostTokenBalances []TokenBalance
	InnerInstructions []InnerInstructionSet
}

// TransactionMessage contains parsed transaction message.
type TransactionMessage struct {
	AccountKeys  []string
	Instructions []Instruction
}

// Mints returns the distinct mints of the pre and post balance rows in first-seen order.
func (tx *Transaction) Mints() []string {
	if tx == nil || tx.Meta == nil {
		return nil
	}
	seen := make(map[string]struct{})
	var out []string
	for _, rows := range [][]TokenBalance{tx.Meta.PreTokenBalances, tx.Meta.PostTokenBalances} {
		for _, r := range rows {
			if r.Mint == "" {
				continue
			}
			if _, ok := seen[r.Mint]; ok {
				continue
			}
			seen[r.Mint] = struct{}{}
			out = append(out, r.Mint)
		}
	}
	return out
}
