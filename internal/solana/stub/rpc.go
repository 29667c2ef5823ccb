package stub

import (
	"context"
	"sync"

	"pumpswap-indexer/internal/solana"
)

// RPCClient implements solana.RPCClient for testing.
// Missing transactions, accounts and supplies are reported as absent (nil, nil).
type RPCClient struct {
	mu           sync.Mutex
	Transactions map[string]*solana.Transaction
	Signatures   map[string][]solana.SignatureInfo
	Accounts     map[string][]byte
	Supplies     map[string]*solana.TokenSupply

	// Errors maps a signature, address or pubkey to an error returned for it.
	Errors map[string]error
	// Calls counts calls per method.
	Calls map[string]int
}

// NewRPCClient creates a new stub RPC client.
func NewRPCClient() *RPCClient {
	return &RPCClient{
		Transactions: make(map[string]*solana.Transaction),
		Signatures:   make(map[string][]solana.SignatureInfo),
		Accounts:     make(map[string][]byte),
		Supplies:     make(map[string]*solana.TokenSupply),
		Errors:       make(map[string]error),
		Calls:        make(map[string]int),
	}
}

func (c *RPCClient) record(method, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls[method]++
	return c.Errors[key]
}

// GetTransaction retrieves a transaction by signature from the stub store.
func (c *RPCClient) GetTransaction(_ context.Context, signature string) (*solana.Transaction, error) {
	if err := c.record("getTransaction", signature); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Transactions[signature], nil
}

// GetSignaturesForAddress retrieves signatures for an address from the stub store.
func (c *RPCClient) GetSignaturesForAddress(_ context.Context, address string, opts *solana.SignaturesOpts) ([]solana.SignatureInfo, error) {
	if err := c.record("getSignaturesForAddress", address); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	sigs, ok := c.Signatures[address]
	if !ok {
		return nil, nil
	}

	// Apply limit if specified
	if opts != nil && opts.Limit > 0 && opts.Limit < len(sigs) {
		return sigs[:opts.Limit], nil
	}

	return sigs, nil
}

// GetAccountData returns stored account bytes.
func (c *RPCClient) GetAccountData(_ context.Context, pubkey string) ([]byte, error) {
	if err := c.record("getAccountInfo", pubkey); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Accounts[pubkey], nil
}

// GetTokenSupply returns the stored supply for a mint.
func (c *RPCClient) GetTokenSupply(_ context.Context, mint string) (*solana.TokenSupply, error) {
	if err := c.record("getTokenSupply", mint); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Supplies[mint], nil
}

// CallCount returns how many times method was called.
func (c *RPCClient) CallCount(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Calls[method]
}

// AddTransaction adds a transaction to the stub store.
func (c *RPCClient) AddTransaction(tx *solana.Transaction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Transactions[tx.Signature] = tx
}

// AddSignatures adds signatures for an address to the stub store.
func (c *RPCClient) AddSignatures(address string, sigs []solana.SignatureInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Signatures[address] = sigs
}

// SetAccount stores raw account bytes for pubkey.
func (c *RPCClient) SetAccount(pubkey string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Accounts[pubkey] = data
}

// SetError makes every call keyed by key fail with err.
func (c *RPCClient) SetError(key string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Errors[key] = err
}

var _ solana.RPCClient = (*RPCClient)(nil)
