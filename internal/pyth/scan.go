package pyth

import (
	"encoding/binary"
	"math"
)

// Quality tags how a price was obtained from account bytes.
type Quality int

const (
	// QualityNone means no price could be read.
	QualityNone Quality = iota
	// QualityStructured means the bytes decoded as a price account.
	QualityStructured
	// QualityHeuristic means the price came from ScanPrice and may be wrong.
	QualityHeuristic
)

func (q Quality) String() string {
	switch q {
	case QualityStructured:
		return "structured"
	case QualityHeuristic:
		return "heuristic"
	default:
		return "none"
	}
}

const (
	scanMinExpo   = -20
	scanMaxExpo   = 10
	scanRadius    = 64
	scanMaxAbsVal = 1e18
)

// ScanPrice searches buf for any (exponent, mantissa) pair that yields a
// plausible price: an i32 in [-20, 10] followed or preceded within 64 bytes
// by a non-zero i64 with magnitude at most 1e18. The first hit wins.
//
// This is a last resort for accounts that fail Decode. It can and does
// produce nonsense on arbitrary data.
func ScanPrice(buf []byte) (float64, bool) {
	le := binary.LittleEndian
	n := len(buf)
	for pos := 0; pos < n-4; pos++ {
		expo := int32(le.Uint32(buf[pos:]))
		if expo < scanMinExpo || expo > scanMaxExpo {
			continue
		}
		lo := pos - scanRadius
		if lo < 0 {
			lo = 0
		}
		hi := pos + scanRadius
		if hi > n-8 {
			hi = n - 8
		}
		for j := lo; j <= hi; j++ {
			val := int64(le.Uint64(buf[j:]))
			if val == 0 || math.Abs(float64(val)) > scanMaxAbsVal {
				continue
			}
			price := float64(val) * math.Pow10(int(expo))
			if Plausible(price) {
				return price, true
			}
		}
	}
	return 0, false
}

// ReadPrice tries Decode first and falls back to ScanPrice when heuristic is true.
func ReadPrice(buf []byte, heuristic bool) (float64, Quality) {
	if acc, ok := Decode(buf); ok {
		if p := acc.Value(); Plausible(p) {
			return p, QualityStructured
		}
	}
	if heuristic {
		if p, ok := ScanPrice(buf); ok {
			return p, QualityHeuristic
		}
	}
	return 0, QualityNone
}
