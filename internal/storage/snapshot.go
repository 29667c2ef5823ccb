package storage

import (
	"encoding/json"
	"fmt"

	"pumpswap-indexer/internal/domain"
)

// snapshotVersion is bumped when the snapshot shape changes.
const snapshotVersion = 1

type snapshot struct {
	Version int `json:"v"`
	domain.Trade
}

// EncodeSnapshot serializes t for the raw column.
func EncodeSnapshot(t *domain.Trade) ([]byte, error) {
	data, err := json.Marshal(snapshot{Version: snapshotVersion, Trade: *t})
	if err != nil {
		return nil, fmt.Errorf("encode trade snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshot restores a trade from a raw column. Column values in cols
// fill any field the snapshot does not carry. An empty or undecodable raw
// yields cols unchanged.
func DecodeSnapshot(raw []byte, cols *domain.Trade) *domain.Trade {
	if len(raw) == 0 {
		return cols
	}
	var s snapshot
	if err := json.Unmarshal(raw, &s); err != nil {
		return cols
	}
	t := s.Trade
	if t.Signature == "" {
		t.Signature = cols.Signature
	}
	if t.Mint == "" {
		t.Mint = cols.Mint
	}
	if t.Timestamp == 0 {
		t.Timestamp = cols.Timestamp
	}
	if t.BaseDelta == 0 {
		t.BaseDelta = cols.BaseDelta
	}
	if t.QuoteMint == nil {
		t.QuoteMint = cols.QuoteMint
	}
	if t.QuoteDelta == nil {
		t.QuoteDelta = cols.QuoteDelta
	}
	if t.Price == nil {
		t.Price = cols.Price
	}
	return &t
}
