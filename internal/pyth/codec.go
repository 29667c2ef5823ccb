// Package pyth decodes and encodes the fixed-layout oracle price account
// the indexer reads USD prices from.
package pyth

import (
	"encoding/binary"
	"math"
)

// Magic identifies a price account ("PYTH" read as a little-endian u32 tag).
const Magic uint32 = 0x50595448

// Field offsets. All integers are little-endian.
const (
	offMagic       = 0
	offVersion     = 4
	offType        = 8
	offExponent    = 12
	offPrice       = 16
	offConfidence  = 24
	offStatus      = 32
	offValidSlot   = 36
	offPublishSlot = 44

	// MinLen is the smallest buffer Decode accepts.
	MinLen = 52
)

// Header values of a live price account.
const (
	DefaultVersion uint32 = 2
	DefaultType    uint32 = 2
	StatusTrading  uint32 = 1
)

// MaxPlausiblePrice bounds prices accepted from oracle data.
const MaxPlausiblePrice = 1e12

// PriceAccount is the decoded price record.
type PriceAccount struct {
	Version     uint32
	Type        uint32
	Exponent    int32
	Price       int64
	Confidence  uint64
	Status      uint32
	ValidSlot   uint64
	PublishSlot uint64
}

// Value returns the price as mantissa * 10^exponent.
func (a PriceAccount) Value() float64 {
	return float64(a.Price) * math.Pow10(int(a.Exponent))
}

// NewPriceAccount returns a trading price account header around the given
// mantissa and exponent.
func NewPriceAccount(exponent int32, price int64) PriceAccount {
	return PriceAccount{
		Version:  DefaultVersion,
		Type:     DefaultType,
		Exponent: exponent,
		Price:    price,
		Status:   StatusTrading,
	}
}

// Decode parses buf. It reports false when buf is shorter than MinLen or
// does not start with Magic. Trailing bytes are ignored.
func Decode(buf []byte) (*PriceAccount, bool) {
	if len(buf) < MinLen {
		return nil, false
	}
	le := binary.LittleEndian
	if le.Uint32(buf[offMagic:]) != Magic {
		return nil, false
	}
	return &PriceAccount{
		Version:     le.Uint32(buf[offVersion:]),
		Type:        le.Uint32(buf[offType:]),
		Exponent:    int32(le.Uint32(buf[offExponent:])),
		Price:       int64(le.Uint64(buf[offPrice:])),
		Confidence:  le.Uint64(buf[offConfidence:]),
		Status:      le.Uint32(buf[offStatus:]),
		ValidSlot:   le.Uint64(buf[offValidSlot:]),
		PublishSlot: le.Uint64(buf[offPublishSlot:]),
	}, true
}

// Encode writes a exactly as given into a MinLen buffer; Decode inverts it.
func Encode(a PriceAccount) []byte {
	buf := make([]byte, MinLen)
	le := binary.LittleEndian
	le.PutUint32(buf[offMagic:], Magic)
	le.PutUint32(buf[offVersion:], a.Version)
	le.PutUint32(buf[offType:], a.Type)
	le.PutUint32(buf[offExponent:], uint32(a.Exponent))
	le.PutUint64(buf[offPrice:], uint64(a.Price))
	le.PutUint64(buf[offConfidence:], a.Confidence)
	le.PutUint32(buf[offStatus:], a.Status)
	le.PutUint64(buf[offValidSlot:], a.ValidSlot)
	le.PutUint64(buf[offPublishSlot:], a.PublishSlot)
	return buf
}

// Plausible reports whether p lies in (0, MaxPlausiblePrice).
func Plausible(p float64) bool {
	return p > 0 && p < MaxPlausiblePrice && !math.IsNaN(p)
}
